package assessment

import (
	"github.com/skillscan/backend/internal/models"
	"github.com/skillscan/backend/internal/scorer"
)

// Reporter derives the terminal analytics payload from a completed
// session's response log. It reads only recorded snapshots; it never
// re-runs the estimator.
type Reporter struct {
	bands  *GradeBandTable
	scorer scorer.Scorer
}

func NewReporter(bands *GradeBandTable, sc scorer.Scorer) *Reporter {
	return &Reporter{bands: bands, scorer: sc}
}

func (r *Reporter) Build(sess *models.Session) *models.Report {
	report := &models.Report{
		SessionID:            sess.ID,
		Subject:              sess.Subject,
		TotalQuestions:       len(sess.Responses),
		FinalAbilityEstimate: sess.Ability,
		EstimatedGradeBand:   r.bands.Lookup(sess.Ability),
		AbilityTrajectory:    []models.TrajectoryPoint{},
	}
	if sess.CompletedReason != nil {
		report.CompletedReason = *sess.CompletedReason
	}
	if sess.CompletedAt != nil {
		report.SessionDurationSeconds = sess.CompletedAt.Sub(sess.StartedAt).Seconds()
	}

	if len(sess.Responses) == 0 {
		return report
	}

	var (
		correct         int
		totalTime       float64
		aiHelp          int
		reflectionSum   float64
		reflectionCount int
	)
	for i, resp := range sess.Responses {
		if resp.IsCorrect {
			correct++
		}
		totalTime += resp.ResponseTimeSeconds
		if resp.AIHelpUsed {
			aiHelp++
		}
		if resp.Reflection != nil {
			if resp.ReflectionScore != nil {
				reflectionSum += *resp.ReflectionScore
			} else {
				// Older responses predate score snapshots; grade them now.
				reflectionSum += r.scorer.Score(resp.Reflection)
			}
			reflectionCount++
		}
		report.AbilityTrajectory = append(report.AbilityTrajectory, models.TrajectoryPoint{
			QuestionNumber:  i + 1,
			ItemID:          resp.ItemID,
			ItemDifficulty:  resp.ItemDifficulty,
			IsCorrect:       resp.IsCorrect,
			AbilityEstimate: resp.AbilityAfter,
		})
	}

	n := float64(len(sess.Responses))
	report.Accuracy = float64(correct) / n
	report.AverageResponseTime = totalTime / n
	report.AIHelpPercentage = float64(aiHelp) / n * 100
	if reflectionCount > 0 {
		report.ReflectionQualityScore = reflectionSum / float64(reflectionCount)
	}
	return report
}
