package assessment

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/skillscan/backend/internal/models"
)

// fakeBank is an in-memory ItemBank for tests.
type fakeBank struct {
	items []models.Item
}

func (b *fakeBank) Query(ctx context.Context, subject string, gradeBand *models.GradeBand, excludedIDs []int64) ([]models.Item, error) {
	excluded := make(map[int64]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = true
	}

	var out []models.Item
	for _, item := range b.items {
		if item.Subject != subject || excluded[item.ID] {
			continue
		}
		if gradeBand != nil && item.GradeBand != *gradeBand {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (b *fakeBank) Get(ctx context.Context, id int64) (*models.Item, error) {
	for i := range b.items {
		if b.items[i].ID == id {
			return &b.items[i], nil
		}
	}
	return nil, fmt.Errorf("item %d not found", id)
}

func (b *fakeBank) Subjects(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, item := range b.items {
		if !seen[item.Subject] {
			seen[item.Subject] = true
			out = append(out, item.Subject)
		}
	}
	return out, nil
}

func mcItem(id int64, subject string, difficulty float64) models.Item {
	return models.Item{
		ID:            id,
		Subject:       subject,
		GradeBand:     models.BandGrade8,
		Difficulty:    difficulty,
		Type:          models.ItemMultipleChoice,
		Prompt:        fmt.Sprintf("question %d", id),
		Options:       []string{"A", "B", "C", "D"},
		CorrectAnswer: "A",
	}
}

func TestSelectClosestDifficulty(t *testing.T) {
	bank := &fakeBank{items: []models.Item{
		mcItem(1, "math", -1.0),
		mcItem(2, "math", 0.2),
		mcItem(3, "math", 1.5),
	}}
	sel := NewSelector(bank)

	got, err := sel.Select(context.Background(), "math", 0.0, nil, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.ID != 2 {
		t.Errorf("Select picked item %d, want 2", got.ID)
	}
}

func TestSelectTieBreaksLowestID(t *testing.T) {
	bank := &fakeBank{items: []models.Item{
		mcItem(7, "math", 0.5),
		mcItem(3, "math", -0.5),
		mcItem(5, "math", 0.5),
	}}
	sel := NewSelector(bank)

	// Items 3, 5, and 7 are all at distance 0.5 from ability 0
	got, err := sel.Select(context.Background(), "math", 0.0, nil, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.ID != 3 {
		t.Errorf("Select picked item %d, want lowest id 3", got.ID)
	}
}

func TestSelectExcludesAskedItems(t *testing.T) {
	bank := &fakeBank{items: []models.Item{
		mcItem(1, "math", 0.0),
		mcItem(2, "math", 0.4),
	}}
	sel := NewSelector(bank)

	got, err := sel.Select(context.Background(), "math", 0.0, nil, []int64{1})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.ID != 2 {
		t.Errorf("Select picked item %d, want 2", got.ID)
	}
}

func TestSelectExhaustedPool(t *testing.T) {
	bank := &fakeBank{items: []models.Item{
		mcItem(1, "math", 0.0),
	}}
	sel := NewSelector(bank)

	_, err := sel.Select(context.Background(), "math", 0.0, nil, []int64{1})
	if !errors.Is(err, ErrNoCandidates) {
		t.Errorf("Select error = %v, want ErrNoCandidates", err)
	}
}

func TestSelectFiltersByGradeBand(t *testing.T) {
	high := mcItem(2, "math", 0.1)
	high.GradeBand = models.BandGrade12
	bank := &fakeBank{items: []models.Item{
		mcItem(1, "math", 0.9),
		high,
	}}
	sel := NewSelector(bank)

	band := models.BandGrade8
	got, err := sel.Select(context.Background(), "math", 0.0, &band, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	// Item 2 is closer but in another band
	if got.ID != 1 {
		t.Errorf("Select picked item %d, want 1", got.ID)
	}
}
