package models

import "time"

type SessionStatus string

const (
	StatusConfiguring      SessionStatus = "configuring"
	StatusAwaitingAnswer   SessionStatus = "awaiting_answer"
	StatusBetweenQuestions SessionStatus = "between_questions"
	StatusComplete         SessionStatus = "complete"
)

type CompletionReason string

const (
	ReasonMaxQuestions  CompletionReason = "max_questions"
	ReasonConverged     CompletionReason = "converged"
	ReasonBankExhausted CompletionReason = "bank_exhausted"
)

// Reflection is an optional structured self-report submitted with an answer.
type Reflection struct {
	Reasoning           string `json:"reasoning"`
	Strategy            string `json:"strategy,omitempty"`
	Confidence          int    `json:"confidence"`           // 1-5
	PerceivedDifficulty int    `json:"perceived_difficulty"` // 1-5
	Connections         string `json:"connections,omitempty"`
}

// Response is immutable once appended to a session's response log.
type Response struct {
	ItemID              int64       `json:"item_id"`
	SubmittedAnswer     string      `json:"submitted_answer"`
	IsCorrect           bool        `json:"is_correct"`
	ResponseTimeSeconds float64     `json:"response_time_seconds"`
	AIHelpUsed          bool        `json:"ai_help_used"`
	Reflection          *Reflection `json:"reflection,omitempty"`
	ReflectionScore     *float64    `json:"reflection_score,omitempty"`
	ItemDifficulty      float64     `json:"item_difficulty"`
	AbilityAfter        float64     `json:"ability_estimate_after"`
	AnsweredAt          time.Time   `json:"answered_at"`
}

// Session is the mutable aggregate the engine operates on. Exactly one of
// {PendingItemID set and Status == awaiting_answer} or {PendingItemID nil}
// holds at all times.
type Session struct {
	ID              string            `json:"session_id"`
	UserID          int64             `json:"user_id"`
	Subject         string            `json:"subject"`
	TargetGradeBand *GradeBand        `json:"target_grade_band,omitempty"`
	Status          SessionStatus     `json:"status"`
	Ability         float64           `json:"ability_estimate"`
	Uncertainty     float64           `json:"ability_uncertainty"`
	AskedItemIDs    []int64           `json:"asked_item_ids"`
	PendingItemID   *int64            `json:"pending_item_id,omitempty"`
	Responses       []Response        `json:"response_log"`
	MaxQuestions    int               `json:"max_questions"`
	CompletedReason *CompletionReason `json:"completed_reason,omitempty"`
	StartedAt       time.Time         `json:"started_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

// Asked reports whether the item has already been presented in this session.
func (s *Session) Asked(itemID int64) bool {
	for _, id := range s.AskedItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// FindResponse returns the recorded response for an item, if any.
func (s *Session) FindResponse(itemID int64) *Response {
	for i := range s.Responses {
		if s.Responses[i].ItemID == itemID {
			return &s.Responses[i]
		}
	}
	return nil
}

// ── API Request/Response Types ────────────────────────────

type StartSessionRequest struct {
	Subject         string     `json:"subject"`
	TargetGradeBand *GradeBand `json:"target_grade_band,omitempty"`
	MaxQuestions    int        `json:"max_questions"`
}

type StartSessionResponse struct {
	SessionID              string    `json:"session_id"`
	Subject                string    `json:"subject"`
	InitialAbilityEstimate float64   `json:"initial_ability_estimate"`
	EstimatedGradeBand     GradeBand `json:"estimated_grade_band"`
	MaxQuestions           int       `json:"max_questions"`
}

type NextQuestionResponse struct {
	SessionComplete bool              `json:"session_complete"`
	CompletedReason *CompletionReason `json:"completed_reason,omitempty"`

	Item            *PresentedItem `json:"item,omitempty"`
	QuestionNumber  int            `json:"question_number,omitempty"`
	AbilityEstimate float64        `json:"current_ability_estimate"`
	ItemDifficulty  float64        `json:"item_difficulty,omitempty"`
}

type SubmitAnswerRequest struct {
	ItemID              int64       `json:"item_id"`
	Answer              string      `json:"answer"`
	ResponseTimeSeconds float64     `json:"response_time_seconds"`
	AIHelpUsed          bool        `json:"ai_help_used"`
	Reflection          *Reflection `json:"reflection,omitempty"`
}

type SubmitAnswerResponse struct {
	Correct            bool      `json:"correct"`
	NewAbilityEstimate float64   `json:"new_ability_estimate"`
	AbilityChange      float64   `json:"ability_estimate_change"`
	EstimatedGradeBand GradeBand `json:"estimated_grade_band"`
	ReflectionScore    *float64  `json:"reflection_score,omitempty"`
	QuestionsCompleted int       `json:"questions_completed"`
	AlreadyRecorded    bool      `json:"already_recorded,omitempty"`
}

type SessionSummary struct {
	SessionID    string            `json:"session_id"`
	Subject      string            `json:"subject"`
	Status       SessionStatus     `json:"status"`
	Answered     int               `json:"answered"`
	MaxQuestions int               `json:"max_questions"`
	Reason       *CompletionReason `json:"completed_reason,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
	Total    int              `json:"total"`
}
