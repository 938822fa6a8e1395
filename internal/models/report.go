package models

// TrajectoryPoint is one step of the per-question ability progression,
// read back from stored response snapshots.
type TrajectoryPoint struct {
	QuestionNumber  int     `json:"question_number"`
	ItemID          int64   `json:"item_id"`
	ItemDifficulty  float64 `json:"item_difficulty"`
	IsCorrect       bool    `json:"is_correct"`
	AbilityEstimate float64 `json:"ability_estimate"`
}

// Report is the terminal analytics payload for a completed session.
// It is derived once and cached; callers always see identical bytes.
type Report struct {
	SessionID              string            `json:"session_id"`
	Subject                string            `json:"subject"`
	TotalQuestions         int               `json:"total_questions"`
	Accuracy               float64           `json:"accuracy"`
	FinalAbilityEstimate   float64           `json:"final_ability_estimate"`
	EstimatedGradeBand     GradeBand         `json:"estimated_grade_band"`
	AverageResponseTime    float64           `json:"average_response_time"`
	AIHelpPercentage       float64           `json:"ai_help_percentage"`
	ReflectionQualityScore float64           `json:"reflection_quality_score"`
	AbilityTrajectory      []TrajectoryPoint `json:"ability_trajectory"`
	CompletedReason        CompletionReason  `json:"completed_reason"`
	SessionDurationSeconds float64           `json:"session_duration_seconds"`
}
