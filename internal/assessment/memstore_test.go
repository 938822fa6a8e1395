package assessment

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skillscan/backend/internal/models"
)

func testSession(id string, userID int64) *models.Session {
	return &models.Session{
		ID:           id,
		UserID:       userID,
		Subject:      "math",
		Status:       models.StatusBetweenQuestions,
		Uncertainty:  1.0,
		AskedItemIDs: []int64{},
		Responses:    []models.Response{},
		MaxQuestions: 20,
		StartedAt:    time.Now().UTC(),
	}
}

func TestMemoryStoreVersioning(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, testSession("s1", 1)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	sess, version, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if version != 1 {
		t.Errorf("initial version = %d, want 1", version)
	}

	sess.Ability = 0.5
	if err := store.Update(ctx, sess, version); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// A writer holding the old version loses
	sess.Ability = -0.5
	err = store.Update(ctx, sess, version)
	if !errors.Is(err, ErrVersionConflict) {
		t.Errorf("stale update: err = %v, want ErrVersionConflict", err)
	}

	fresh, version2, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if version2 != 2 {
		t.Errorf("version after update = %d, want 2", version2)
	}
	if fresh.Ability != 0.5 {
		t.Errorf("ability = %f, lost update should not apply", fresh.Ability)
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, testSession("s1", 1)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	a, _, _ := store.Get(ctx, "s1")
	a.AskedItemIDs = append(a.AskedItemIDs, 99)

	// Mutating the returned copy must not leak into the store
	b, _, _ := store.Get(ctx, "s1")
	if len(b.AskedItemIDs) != 0 {
		t.Errorf("asked ids = %v, caller mutation leaked into store", b.AskedItemIDs)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, _, err := store.Get(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get unknown: err = %v, want ErrSessionNotFound", err)
	}
	if err := store.Update(ctx, testSession("nope", 1), 1); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Update unknown: err = %v, want ErrSessionNotFound", err)
	}
	if err := store.SaveReport(ctx, "nope", []byte("{}")); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("SaveReport unknown: err = %v, want ErrSessionNotFound", err)
	}
}

func TestMemoryStoreReportFirstWriteWins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, testSession("s1", 1)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if payload, err := store.GetReport(ctx, "s1"); err != nil || payload != nil {
		t.Fatalf("GetReport before save = %v, %v; want nil, nil", payload, err)
	}

	first := []byte(`{"winner":1}`)
	if err := store.SaveReport(ctx, "s1", first); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if err := store.SaveReport(ctx, "s1", []byte(`{"winner":2}`)); err != nil {
		t.Fatalf("second SaveReport: %v", err)
	}

	got, err := store.GetReport(ctx, "s1")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if !bytes.Equal(got, first) {
		t.Errorf("report = %s, want the first written payload", got)
	}
}

func TestMemoryStoreLatestCompletedAbility(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// No history yet
	if _, ok, err := store.LatestCompletedAbility(ctx, 1, "math"); err != nil || ok {
		t.Fatalf("empty history: ok = %v, err = %v", ok, err)
	}

	older := testSession("old", 1)
	older.Status = models.StatusComplete
	older.Ability = 0.2
	oldTime := time.Now().UTC().Add(-time.Hour)
	older.CompletedAt = &oldTime

	newer := testSession("new", 1)
	newer.Status = models.StatusComplete
	newer.Ability = 0.9
	newTime := time.Now().UTC()
	newer.CompletedAt = &newTime

	running := testSession("running", 1)
	running.Ability = 5.0

	otherSubject := testSession("sci", 1)
	otherSubject.Subject = "science"
	otherSubject.Status = models.StatusComplete
	otherSubject.Ability = -2.0
	otherSubject.CompletedAt = &newTime

	for _, s := range []*models.Session{older, newer, running, otherSubject} {
		if err := store.Create(ctx, s); err != nil {
			t.Fatalf("Create %s: %v", s.ID, err)
		}
	}

	ability, ok, err := store.LatestCompletedAbility(ctx, 1, "math")
	if err != nil || !ok {
		t.Fatalf("LatestCompletedAbility: ok = %v, err = %v", ok, err)
	}
	if ability != 0.9 {
		t.Errorf("ability = %f, want most recent 0.9", ability)
	}
}
