package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skillscan/backend/internal/config"
	"github.com/skillscan/backend/internal/models"
	"github.com/skillscan/backend/internal/scorer"
)

// Service orchestrates the assessment lifecycle: it owns session state
// transitions and delegates the numeric work to the estimator, selector,
// and reporter. All state goes through the SessionStore; the service holds
// nothing in memory, so concurrent submissions are resolved by optimistic
// versioning, not locks.
type Service struct {
	store     SessionStore
	bank      ItemBank
	selector  *Selector
	estimator *Estimator
	reporter  *Reporter
	scorer    scorer.Scorer
	bands     *GradeBandTable
	cfg       config.EngineConfig

	now func() time.Time
}

func NewService(store SessionStore, bank ItemBank, bands *GradeBandTable, sc scorer.Scorer, cfg config.EngineConfig) *Service {
	return &Service{
		store:     store,
		bank:      bank,
		selector:  NewSelector(bank),
		estimator: NewEstimator(cfg),
		reporter:  NewReporter(bands, sc),
		scorer:    sc,
		bands:     bands,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Start validates the requested configuration, seeds the ability prior,
// and creates a new session in the store.
//
// The prior is chosen in order of preference: the user's most recent
// completed session in the same subject, then the midpoint of the target
// grade band, then the configured default.
func (s *Service) Start(ctx context.Context, userID int64, req *models.StartSessionRequest) (*models.StartSessionResponse, error) {
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidConfiguration)
	}

	subjects, err := s.bank.Subjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	known := false
	for _, sub := range subjects {
		if sub == subject {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("%w: no items for subject %q", ErrInvalidConfiguration, subject)
	}

	if req.TargetGradeBand != nil && !models.ValidGradeBands[*req.TargetGradeBand] {
		return nil, fmt.Errorf("%w: unknown grade band %q", ErrInvalidConfiguration, *req.TargetGradeBand)
	}

	maxQuestions := req.MaxQuestions
	if maxQuestions == 0 {
		maxQuestions = s.cfg.DefaultMaxQuestions
	}
	if maxQuestions < 1 || maxQuestions > s.cfg.MaxQuestionsCap {
		return nil, fmt.Errorf("%w: max_questions must be between 1 and %d", ErrInvalidConfiguration, s.cfg.MaxQuestionsCap)
	}

	ability := s.cfg.InitialAbility
	if prior, ok, err := s.store.LatestCompletedAbility(ctx, userID, subject); err != nil {
		return nil, err
	} else if ok {
		ability = prior
	} else if req.TargetGradeBand != nil {
		if mid, ok := s.bands.Midpoint(*req.TargetGradeBand); ok {
			ability = mid
		}
	}

	sess := &models.Session{
		ID:              uuid.NewString(),
		UserID:          userID,
		Subject:         subject,
		TargetGradeBand: req.TargetGradeBand,
		Status:          models.StatusBetweenQuestions,
		Ability:         ability,
		Uncertainty:     s.cfg.InitialUncertainty,
		AskedItemIDs:    []int64{},
		Responses:       []models.Response{},
		MaxQuestions:    maxQuestions,
		StartedAt:       s.now().UTC(),
	}

	if err := s.store.Create(ctx, sess); err != nil {
		return nil, err
	}

	log.Printf("[assessment] session %s started: user=%d subject=%q prior=%.2f max=%d",
		sess.ID, userID, subject, ability, maxQuestions)

	return &models.StartSessionResponse{
		SessionID:              sess.ID,
		Subject:                sess.Subject,
		InitialAbilityEstimate: sess.Ability,
		EstimatedGradeBand:     s.bands.Lookup(sess.Ability),
		MaxQuestions:           sess.MaxQuestions,
	}, nil
}

// NextQuestion advances the session: it either serves the next item, or
// completes the session when a termination condition holds. Calling it
// while an answer is outstanding re-serves the pending item unchanged.
func (s *Service) NextQuestion(ctx context.Context, userID int64, sessionID string) (*models.NextQuestionResponse, error) {
	for attempt := 0; ; attempt++ {
		sess, version, err := s.getOwned(ctx, userID, sessionID)
		if err != nil {
			return nil, err
		}

		if sess.Status == models.StatusComplete {
			return &models.NextQuestionResponse{
				SessionComplete: true,
				CompletedReason: sess.CompletedReason,
				AbilityEstimate: sess.Ability,
			}, nil
		}

		if sess.Status == models.StatusAwaitingAnswer && sess.PendingItemID != nil {
			item, err := s.bank.Get(ctx, *sess.PendingItemID)
			if err != nil {
				return nil, fmt.Errorf("reload pending item %d: %w", *sess.PendingItemID, err)
			}
			presented := item.Presented()
			return &models.NextQuestionResponse{
				Item:            &presented,
				QuestionNumber:  len(sess.Responses) + 1,
				AbilityEstimate: sess.Ability,
				ItemDifficulty:  item.Difficulty,
			}, nil
		}

		answered := len(sess.Responses)
		var reason models.CompletionReason
		var item *models.Item

		switch {
		case answered >= sess.MaxQuestions:
			reason = models.ReasonMaxQuestions
		case answered >= s.cfg.MinQuestionsFloor && sess.Uncertainty <= s.cfg.ConvergenceThreshold:
			reason = models.ReasonConverged
		default:
			item, err = s.selector.Select(ctx, sess.Subject, sess.Ability, sess.TargetGradeBand, sess.AskedItemIDs)
			if errors.Is(err, ErrNoCandidates) {
				reason = models.ReasonBankExhausted
			} else if err != nil {
				return nil, err
			}
		}

		if reason != "" {
			s.complete(sess, reason)
		} else {
			sess.Status = models.StatusAwaitingAnswer
			sess.PendingItemID = &item.ID
			sess.AskedItemIDs = append(sess.AskedItemIDs, item.ID)
		}

		err = s.store.Update(ctx, sess, version)
		if errors.Is(err, ErrVersionConflict) {
			if attempt+1 >= s.cfg.StoreRetries {
				return nil, fmt.Errorf("next question for session %s: %w", sessionID, err)
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		if reason != "" {
			log.Printf("[assessment] session %s complete: reason=%s answered=%d ability=%.2f",
				sess.ID, reason, answered, sess.Ability)
			return &models.NextQuestionResponse{
				SessionComplete: true,
				CompletedReason: sess.CompletedReason,
				AbilityEstimate: sess.Ability,
			}, nil
		}

		presented := item.Presented()
		return &models.NextQuestionResponse{
			Item:            &presented,
			QuestionNumber:  answered + 1,
			AbilityEstimate: sess.Ability,
			ItemDifficulty:  item.Difficulty,
		}, nil
	}
}

// SubmitAnswer records an answer to the pending item, updates the ability
// estimate, and returns the outcome. Submissions are idempotent: replaying
// an already-recorded answer returns the recorded outcome without touching
// the estimate; an answer for any other non-pending item is stale.
func (s *Service) SubmitAnswer(ctx context.Context, userID int64, sessionID string, req *models.SubmitAnswerRequest) (*models.SubmitAnswerResponse, error) {
	for attempt := 0; ; attempt++ {
		sess, version, err := s.getOwned(ctx, userID, sessionID)
		if err != nil {
			return nil, err
		}

		if sess.PendingItemID == nil || *sess.PendingItemID != req.ItemID {
			if recorded := sess.FindResponse(req.ItemID); recorded != nil && recorded.SubmittedAnswer == req.Answer {
				return s.replayResponse(sess, recorded), nil
			}
			return nil, fmt.Errorf("item %d: %w", req.ItemID, ErrStaleSubmission)
		}

		item, err := s.bank.Get(ctx, req.ItemID)
		if err != nil {
			return nil, fmt.Errorf("load item %d: %w", req.ItemID, err)
		}

		correct := s.scoreAnswer(item, req.Answer)

		var reflectionScore *float64
		if req.Reflection != nil {
			score := s.scorer.Score(req.Reflection)
			reflectionScore = &score
		}

		before := sess.Ability
		answered := len(sess.Responses)
		sess.Ability, sess.Uncertainty = s.estimator.Estimate(
			sess.Ability, sess.Uncertainty, item.Difficulty, correct, req.AIHelpUsed, answered)

		sess.Responses = append(sess.Responses, models.Response{
			ItemID:              item.ID,
			SubmittedAnswer:     req.Answer,
			IsCorrect:           correct,
			ResponseTimeSeconds: req.ResponseTimeSeconds,
			AIHelpUsed:          req.AIHelpUsed,
			Reflection:          req.Reflection,
			ReflectionScore:     reflectionScore,
			ItemDifficulty:      item.Difficulty,
			AbilityAfter:        sess.Ability,
			AnsweredAt:          s.now().UTC(),
		})
		sess.PendingItemID = nil
		sess.Status = models.StatusBetweenQuestions

		err = s.store.Update(ctx, sess, version)
		if errors.Is(err, ErrVersionConflict) {
			if attempt+1 >= s.cfg.StoreRetries {
				return nil, fmt.Errorf("submit answer for session %s: %w", sessionID, err)
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		return &models.SubmitAnswerResponse{
			Correct:            correct,
			NewAbilityEstimate: sess.Ability,
			AbilityChange:      sess.Ability - before,
			EstimatedGradeBand: s.bands.Lookup(sess.Ability),
			ReflectionScore:    reflectionScore,
			QuestionsCompleted: len(sess.Responses),
		}, nil
	}
}

// GetReport returns the cached report payload for a completed session,
// building and caching it on first access. The first built payload wins;
// every caller afterwards reads those exact bytes.
func (s *Service) GetReport(ctx context.Context, userID int64, sessionID string) ([]byte, error) {
	sess, _, err := s.getOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.StatusComplete {
		return nil, ErrReportNotReady
	}

	cached, err := s.store.GetReport(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	payload, err := json.Marshal(s.reporter.Build(sess))
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	if err := s.store.SaveReport(ctx, sessionID, payload); err != nil {
		return nil, err
	}

	// Re-read so a concurrent first writer and this caller agree.
	stored, err := s.store.GetReport(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		return stored, nil
	}
	return payload, nil
}

func (s *Service) ListSessions(ctx context.Context, userID int64) (*models.SessionListResponse, error) {
	summaries, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []models.SessionSummary{}
	}
	return &models.SessionListResponse{Sessions: summaries, Total: len(summaries)}, nil
}

// getOwned loads a session and enforces ownership. A session belonging to
// another user is reported as not found rather than forbidden.
func (s *Service) getOwned(ctx context.Context, userID int64, sessionID string) (*models.Session, int64, error) {
	sess, version, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}
	if sess.UserID != userID {
		return nil, 0, ErrSessionNotFound
	}
	return sess, version, nil
}

func (s *Service) complete(sess *models.Session, reason models.CompletionReason) {
	now := s.now().UTC()
	sess.Status = models.StatusComplete
	sess.CompletedReason = &reason
	sess.CompletedAt = &now
	sess.PendingItemID = nil
}

// scoreAnswer grades a submission against the item key. Multiple choice
// compares case-insensitively after trimming; free response matches the
// answer pattern when one is set, falling back to exact comparison.
func (s *Service) scoreAnswer(item *models.Item, answer string) bool {
	submitted := strings.TrimSpace(answer)

	if item.Type == models.ItemFreeResponse && item.AnswerPattern != nil {
		re, err := regexp.Compile(*item.AnswerPattern)
		if err != nil {
			log.Printf("WARN: item %d has invalid answer pattern, using exact match: %v", item.ID, err)
		} else {
			return re.MatchString(submitted)
		}
	}

	return strings.EqualFold(submitted, strings.TrimSpace(item.CorrectAnswer))
}

// replayResponse reconstructs the outcome of an already-recorded
// submission from its snapshot.
func (s *Service) replayResponse(sess *models.Session, recorded *models.Response) *models.SubmitAnswerResponse {
	resp := &models.SubmitAnswerResponse{
		Correct:            recorded.IsCorrect,
		NewAbilityEstimate: recorded.AbilityAfter,
		EstimatedGradeBand: s.bands.Lookup(recorded.AbilityAfter),
		ReflectionScore:    recorded.ReflectionScore,
		AlreadyRecorded:    true,
	}
	for i := range sess.Responses {
		if sess.Responses[i].ItemID == recorded.ItemID {
			resp.QuestionsCompleted = i + 1
			if i > 0 {
				resp.AbilityChange = recorded.AbilityAfter - sess.Responses[i-1].AbilityAfter
			}
			break
		}
	}
	return resp
}
