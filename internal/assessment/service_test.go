package assessment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/skillscan/backend/internal/config"
	"github.com/skillscan/backend/internal/models"
	"github.com/skillscan/backend/internal/scorer"
)

func newTestService(bank ItemBank, cfg config.EngineConfig) (*Service, *MemoryStore) {
	store := NewMemoryStore()
	svc := NewService(store, bank, DefaultGradeBandTable(), scorer.Heuristic{}, cfg)
	return svc, store
}

func mathBank(n int) *fakeBank {
	bank := &fakeBank{}
	// Difficulties spread around zero
	for i := 0; i < n; i++ {
		d := float64(i%11)*0.3 - 1.5
		bank.items = append(bank.items, mcItem(int64(i+1), "math", d))
	}
	return bank
}

func startSession(t *testing.T, svc *Service, userID int64, req *models.StartSessionRequest) string {
	t.Helper()
	resp, err := svc.Start(context.Background(), userID, req)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return resp.SessionID
}

func answerNext(t *testing.T, svc *Service, userID int64, sessionID, answer string) (*models.NextQuestionResponse, *models.SubmitAnswerResponse) {
	t.Helper()
	next, err := svc.NextQuestion(context.Background(), userID, sessionID)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if next.SessionComplete {
		return next, nil
	}
	sub, err := svc.SubmitAnswer(context.Background(), userID, sessionID, &models.SubmitAnswerRequest{
		ItemID: next.Item.ID,
		Answer: answer,
	})
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	return next, sub
}

func TestStartValidation(t *testing.T) {
	svc, _ := newTestService(mathBank(5), testEngineConfig())
	ctx := context.Background()

	_, err := svc.Start(ctx, 1, &models.StartSessionRequest{Subject: ""})
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("empty subject: err = %v, want ErrInvalidConfiguration", err)
	}

	_, err = svc.Start(ctx, 1, &models.StartSessionRequest{Subject: "history"})
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("unknown subject: err = %v, want ErrInvalidConfiguration", err)
	}

	bad := models.GradeBand("grade_99")
	_, err = svc.Start(ctx, 1, &models.StartSessionRequest{Subject: "math", TargetGradeBand: &bad})
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("bad grade band: err = %v, want ErrInvalidConfiguration", err)
	}

	_, err = svc.Start(ctx, 1, &models.StartSessionRequest{Subject: "math", MaxQuestions: 1000})
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("excessive max_questions: err = %v, want ErrInvalidConfiguration", err)
	}

	resp, err := svc.Start(ctx, 1, &models.StartSessionRequest{Subject: "math"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if resp.MaxQuestions != testEngineConfig().DefaultMaxQuestions {
		t.Errorf("default max questions = %d, want %d", resp.MaxQuestions, testEngineConfig().DefaultMaxQuestions)
	}
}

func TestStartSeedsPriorFromTargetBand(t *testing.T) {
	svc, _ := newTestService(mathBank(5), testEngineConfig())

	band := models.BandGrade12
	resp, err := svc.Start(context.Background(), 1, &models.StartSessionRequest{
		Subject:         "math",
		TargetGradeBand: &band,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if resp.InitialAbilityEstimate <= 0 {
		t.Errorf("grade 12 prior = %f, want above the default 0", resp.InitialAbilityEstimate)
	}
	if resp.EstimatedGradeBand != band {
		t.Errorf("initial band = %q, want %q", resp.EstimatedGradeBand, band)
	}
}

func TestStartSeedsPriorFromHistory(t *testing.T) {
	cfg := testEngineConfig()
	svc, _ := newTestService(mathBank(20), cfg)
	ctx := context.Background()

	first := startSession(t, svc, 1, &models.StartSessionRequest{Subject: "math", MaxQuestions: 1})
	_, sub := answerNext(t, svc, 1, first, "A")
	next, err := svc.NextQuestion(ctx, 1, first)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if !next.SessionComplete {
		t.Fatal("session should be complete")
	}

	// A new session in the same subject starts from the finished estimate
	resp, err := svc.Start(ctx, 1, &models.StartSessionRequest{Subject: "math"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if resp.InitialAbilityEstimate != sub.NewAbilityEstimate {
		t.Errorf("prior = %f, want previous final estimate %f", resp.InitialAbilityEstimate, sub.NewAbilityEstimate)
	}

	// Another user gets no benefit from it
	resp2, err := svc.Start(ctx, 2, &models.StartSessionRequest{Subject: "math"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if resp2.InitialAbilityEstimate != cfg.InitialAbility {
		t.Errorf("other user's prior = %f, want default %f", resp2.InitialAbilityEstimate, cfg.InitialAbility)
	}
}

func TestLifecycleMaxQuestions(t *testing.T) {
	cfg := testEngineConfig()
	cfg.ConvergenceThreshold = 0.01 // never converges before the cap
	cfg.UncertaintyFloor = 0.05
	svc, _ := newTestService(mathBank(30), cfg)
	ctx := context.Background()

	sessionID := startSession(t, svc, 1, &models.StartSessionRequest{Subject: "math", MaxQuestions: 5})

	seen := map[int64]bool{}
	for i := 0; i < 5; i++ {
		next, sub := answerNext(t, svc, 1, sessionID, "A")
		if next.QuestionNumber != i+1 {
			t.Errorf("question number = %d, want %d", next.QuestionNumber, i+1)
		}
		if seen[next.Item.ID] {
			t.Errorf("item %d served twice", next.Item.ID)
		}
		seen[next.Item.ID] = true
		if !sub.Correct {
			t.Errorf("answer A on item %d graded wrong", next.Item.ID)
		}
		if sub.QuestionsCompleted != i+1 {
			t.Errorf("questions completed = %d, want %d", sub.QuestionsCompleted, i+1)
		}
	}

	next, err := svc.NextQuestion(ctx, 1, sessionID)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if !next.SessionComplete {
		t.Fatal("session should complete after max questions")
	}
	if next.CompletedReason == nil || *next.CompletedReason != models.ReasonMaxQuestions {
		t.Errorf("completed reason = %v, want max_questions", next.CompletedReason)
	}

	// Completion is sticky
	again, err := svc.NextQuestion(ctx, 1, sessionID)
	if err != nil {
		t.Fatalf("NextQuestion after completion: %v", err)
	}
	if !again.SessionComplete {
		t.Error("completed session served another question")
	}
}

func TestLifecycleConvergence(t *testing.T) {
	cfg := testEngineConfig()
	cfg.ConvergenceThreshold = 0.7 // 0.85^3 ≈ 0.614, below threshold at 3 answers
	cfg.MinQuestionsFloor = 3
	svc, _ := newTestService(mathBank(30), cfg)
	ctx := context.Background()

	sessionID := startSession(t, svc, 1, &models.StartSessionRequest{Subject: "math"})

	// Uncertainty decays 1.0 → 0.85 → 0.7225 → 0.614, crossing the
	// threshold at the third answer.
	for i := 0; i < 3; i++ {
		next, _ := answerNext(t, svc, 1, sessionID, "A")
		if next.SessionComplete {
			t.Fatalf("session completed early at question %d", i+1)
		}
	}

	next, err := svc.NextQuestion(ctx, 1, sessionID)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if !next.SessionComplete {
		t.Fatal("session should converge after 3 answers")
	}
	if next.CompletedReason == nil || *next.CompletedReason != models.ReasonConverged {
		t.Errorf("completed reason = %v, want converged", next.CompletedReason)
	}
}

func TestLifecycleBankExhausted(t *testing.T) {
	svc, _ := newTestService(mathBank(2), testEngineConfig())
	ctx := context.Background()

	sessionID := startSession(t, svc, 1, &models.StartSessionRequest{Subject: "math"})

	for i := 0; i < 2; i++ {
		answerNext(t, svc, 1, sessionID, "A")
	}

	next, err := svc.NextQuestion(ctx, 1, sessionID)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if !next.SessionComplete {
		t.Fatal("session should complete when the pool runs out")
	}
	if next.CompletedReason == nil || *next.CompletedReason != models.ReasonBankExhausted {
		t.Errorf("completed reason = %v, want bank_exhausted", next.CompletedReason)
	}
}

func TestBankExhaustedWithZeroAnswers(t *testing.T) {
	// The subject exists, but nothing matches the target band
	bank := &fakeBank{items: []models.Item{mcItem(1, "math", 0)}}
	svc, _ := newTestService(bank, testEngineConfig())
	ctx := context.Background()

	band := models.BandGrade2
	sessionID := startSession(t, svc, 1, &models.StartSessionRequest{
		Subject:         "math",
		TargetGradeBand: &band,
	})

	next, err := svc.NextQuestion(ctx, 1, sessionID)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if !next.SessionComplete {
		t.Fatal("empty pool should complete the session, not error")
	}
	if next.CompletedReason == nil || *next.CompletedReason != models.ReasonBankExhausted {
		t.Errorf("completed reason = %v, want bank_exhausted", next.CompletedReason)
	}

	// The report for a zero-answer session still renders
	payload, err := svc.GetReport(ctx, 1, sessionID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	var report models.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.TotalQuestions != 0 {
		t.Errorf("total questions = %d, want 0", report.TotalQuestions)
	}
}

func TestNextQuestionReservesPendingItem(t *testing.T) {
	svc, _ := newTestService(mathBank(10), testEngineConfig())
	ctx := context.Background()

	sessionID := startSession(t, svc, 1, &models.StartSessionRequest{Subject: "math"})

	first, err := svc.NextQuestion(ctx, 1, sessionID)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	second, err := svc.NextQuestion(ctx, 1, sessionID)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if second.Item.ID != first.Item.ID {
		t.Errorf("re-request served item %d, want pending item %d", second.Item.ID, first.Item.ID)
	}
	if second.QuestionNumber != first.QuestionNumber {
		t.Errorf("re-request question number = %d, want %d", second.QuestionNumber, first.QuestionNumber)
	}
}

func TestSubmitAnswerIdempotent(t *testing.T) {
	svc, _ := newTestService(mathBank(10), testEngineConfig())
	ctx := context.Background()

	sessionID := startSession(t, svc, 1, &models.StartSessionRequest{Subject: "math"})
	next, sub := answerNext(t, svc, 1, sessionID, "A")

	// Same item, same answer → recorded outcome, no second update
	replay, err := svc.SubmitAnswer(ctx, 1, sessionID, &models.SubmitAnswerRequest{
		ItemID: next.Item.ID,
		Answer: "A",
	})
	if err != nil {
		t.Fatalf("replay SubmitAnswer: %v", err)
	}
	if !replay.AlreadyRecorded {
		t.Error("replay should be flagged as already recorded")
	}
	if replay.NewAbilityEstimate != sub.NewAbilityEstimate {
		t.Errorf("replay estimate = %f, want %f", replay.NewAbilityEstimate, sub.NewAbilityEstimate)
	}
	if replay.QuestionsCompleted != sub.QuestionsCompleted {
		t.Errorf("replay questions completed = %d, want %d", replay.QuestionsCompleted, sub.QuestionsCompleted)
	}

	// Same item, different answer → stale
	_, err = svc.SubmitAnswer(ctx, 1, sessionID, &models.SubmitAnswerRequest{
		ItemID: next.Item.ID,
		Answer: "B",
	})
	if !errors.Is(err, ErrStaleSubmission) {
		t.Errorf("conflicting replay: err = %v, want ErrStaleSubmission", err)
	}
}

func TestSubmitAnswerStale(t *testing.T) {
	svc, _ := newTestService(mathBank(10), testEngineConfig())
	ctx := context.Background()

	sessionID := startSession(t, svc, 1, &models.StartSessionRequest{Subject: "math"})

	// No question served yet
	_, err := svc.SubmitAnswer(ctx, 1, sessionID, &models.SubmitAnswerRequest{ItemID: 1, Answer: "A"})
	if !errors.Is(err, ErrStaleSubmission) {
		t.Errorf("submit before serve: err = %v, want ErrStaleSubmission", err)
	}

	next, err := svc.NextQuestion(ctx, 1, sessionID)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}

	// Wrong item id
	_, err = svc.SubmitAnswer(ctx, 1, sessionID, &models.SubmitAnswerRequest{
		ItemID: next.Item.ID + 1000,
		Answer: "A",
	})
	if !errors.Is(err, ErrStaleSubmission) {
		t.Errorf("wrong item: err = %v, want ErrStaleSubmission", err)
	}
}

func TestSessionOwnership(t *testing.T) {
	svc, _ := newTestService(mathBank(10), testEngineConfig())
	ctx := context.Background()

	sessionID := startSession(t, svc, 1, &models.StartSessionRequest{Subject: "math"})

	_, err := svc.NextQuestion(ctx, 2, sessionID)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("other user's NextQuestion: err = %v, want ErrSessionNotFound", err)
	}

	_, err = svc.NextQuestion(ctx, 1, "no-such-session")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown session: err = %v, want ErrSessionNotFound", err)
	}
}

func TestReflectionScoredOnSubmit(t *testing.T) {
	svc, _ := newTestService(mathBank(10), testEngineConfig())
	ctx := context.Background()

	sessionID := startSession(t, svc, 1, &models.StartSessionRequest{Subject: "math"})
	next, err := svc.NextQuestion(ctx, 1, sessionID)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}

	sub, err := svc.SubmitAnswer(ctx, 1, sessionID, &models.SubmitAnswerRequest{
		ItemID: next.Item.ID,
		Answer: "A",
		Reflection: &models.Reflection{
			Reasoning:           "First I eliminated two options because they contradict the premise, then compared the rest.",
			Confidence:          4,
			PerceivedDifficulty: 3,
		},
	})
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if sub.ReflectionScore == nil {
		t.Fatal("reflection score missing")
	}
	if *sub.ReflectionScore <= 0 || *sub.ReflectionScore > 1 {
		t.Errorf("reflection score = %f, want in (0, 1]", *sub.ReflectionScore)
	}
}

func TestGetReport(t *testing.T) {
	svc, _ := newTestService(mathBank(10), testEngineConfig())
	ctx := context.Background()

	sessionID := startSession(t, svc, 1, &models.StartSessionRequest{Subject: "math", MaxQuestions: 3})

	// Not ready before completion
	_, err := svc.GetReport(ctx, 1, sessionID)
	if !errors.Is(err, ErrReportNotReady) {
		t.Errorf("report before completion: err = %v, want ErrReportNotReady", err)
	}

	for i := 0; i < 3; i++ {
		answerNext(t, svc, 1, sessionID, "A")
	}
	final, err := svc.NextQuestion(ctx, 1, sessionID)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if !final.SessionComplete {
		t.Fatal("session should be complete")
	}

	payload, err := svc.GetReport(ctx, 1, sessionID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}

	var report models.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.SessionID != sessionID {
		t.Errorf("report session id = %q, want %q", report.SessionID, sessionID)
	}
	if report.TotalQuestions != 3 {
		t.Errorf("report total questions = %d, want 3", report.TotalQuestions)
	}
	if report.Accuracy != 1.0 {
		t.Errorf("report accuracy = %f, want 1.0 for all-correct", report.Accuracy)
	}
	if len(report.AbilityTrajectory) != 3 {
		t.Errorf("trajectory length = %d, want 3", len(report.AbilityTrajectory))
	}
	if report.CompletedReason != models.ReasonMaxQuestions {
		t.Errorf("report reason = %q, want max_questions", report.CompletedReason)
	}

	// Every read returns identical bytes
	again, err := svc.GetReport(ctx, 1, sessionID)
	if err != nil {
		t.Fatalf("second GetReport: %v", err)
	}
	if !bytes.Equal(payload, again) {
		t.Error("report bytes differ between reads")
	}
}

func TestScoreAnswer(t *testing.T) {
	svc, _ := newTestService(mathBank(1), testEngineConfig())

	mc := mcItem(1, "math", 0)
	if !svc.scoreAnswer(&mc, " a ") {
		t.Error("multiple choice should match case-insensitively after trimming")
	}
	if svc.scoreAnswer(&mc, "B") {
		t.Error("wrong option graded correct")
	}

	pattern := `^(?i)(4|four)$`
	fr := models.Item{
		ID:            2,
		Subject:       "math",
		Type:          models.ItemFreeResponse,
		CorrectAnswer: "4",
		AnswerPattern: &pattern,
	}
	if !svc.scoreAnswer(&fr, "four") {
		t.Error("pattern match rejected")
	}
	if svc.scoreAnswer(&fr, "5") {
		t.Error("non-matching answer graded correct")
	}

	// Invalid pattern falls back to exact comparison
	bad := `([`
	frBad := models.Item{
		ID:            3,
		Subject:       "math",
		Type:          models.ItemFreeResponse,
		CorrectAnswer: "42",
		AnswerPattern: &bad,
	}
	if !svc.scoreAnswer(&frBad, "42") {
		t.Error("fallback exact match rejected")
	}
}

// conflictStore injects version conflicts into the first Update calls.
type conflictStore struct {
	SessionStore
	conflicts int
}

func (c *conflictStore) Update(ctx context.Context, s *models.Session, expectedVersion int64) error {
	if c.conflicts > 0 {
		c.conflicts--
		return ErrVersionConflict
	}
	return c.SessionStore.Update(ctx, s, expectedVersion)
}

func TestUpdateRetriesOnVersionConflict(t *testing.T) {
	cfg := testEngineConfig()
	store := &conflictStore{SessionStore: NewMemoryStore(), conflicts: 2}
	svc := NewService(store, mathBank(10), DefaultGradeBandTable(), scorer.Heuristic{}, cfg)
	ctx := context.Background()

	sessionID := startSession(t, svc, 1, &models.StartSessionRequest{Subject: "math"})

	// Two injected conflicts fit within the configured 3 attempts
	next, err := svc.NextQuestion(ctx, 1, sessionID)
	if err != nil {
		t.Fatalf("NextQuestion with conflicts: %v", err)
	}
	if next.Item == nil {
		t.Fatal("no item served after retries")
	}

	// More conflicts than retries surface the error
	store.conflicts = cfg.StoreRetries
	_, err = svc.SubmitAnswer(ctx, 1, sessionID, &models.SubmitAnswerRequest{
		ItemID: next.Item.ID,
		Answer: "A",
	})
	if !errors.Is(err, ErrVersionConflict) {
		t.Errorf("exhausted retries: err = %v, want ErrVersionConflict", err)
	}
}
