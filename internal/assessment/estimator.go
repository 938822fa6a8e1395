package assessment

import (
	"math"

	"github.com/skillscan/backend/internal/config"
)

// Estimator computes incremental ability updates under a one-parameter
// logistic (Rasch) model. It is a pure component: every output is fully
// determined by its inputs and the configured tunables.
type Estimator struct {
	k0               float64
	aiHelpDiscount   float64
	uncertaintyDecay float64
	uncertaintyFloor float64
}

func NewEstimator(cfg config.EngineConfig) *Estimator {
	return &Estimator{
		k0:               cfg.K0,
		aiHelpDiscount:   cfg.AIHelpDiscount,
		uncertaintyDecay: cfg.UncertaintyDecay,
		uncertaintyFloor: cfg.UncertaintyFloor,
	}
}

// Probability returns the chance a test taker with the given ability answers
// an item of the given difficulty correctly. Equals 0.5 when ability ==
// difficulty and increases monotonically in (ability - difficulty).
func Probability(ability, difficulty float64) float64 {
	return 1.0 / (1.0 + math.Exp(-(ability - difficulty)))
}

// KFactor returns the adjustment strength for the (n+1)th answer of a
// session. Early answers move the estimate more than later ones, which is
// what makes the estimate converge.
func (e *Estimator) KFactor(answered int) float64 {
	return e.k0 / math.Sqrt(float64(answered+1))
}

// Estimate applies one response to the running ability estimate and its
// uncertainty. A correct answer given with AI help counts for less
// (outcome discounted), reflecting reduced confidence that the response
// shows unaided ability. Uncertainty decays geometrically but never drops
// below the configured floor.
func (e *Estimator) Estimate(ability, uncertainty, difficulty float64, correct, aiHelpUsed bool, answered int) (newAbility, newUncertainty float64) {
	outcome := 0.0
	if correct {
		outcome = 1.0
	}
	if aiHelpUsed {
		outcome *= e.aiHelpDiscount
	}

	k := e.KFactor(answered)
	newAbility = ability + k*(outcome-Probability(ability, difficulty))

	newUncertainty = uncertainty * e.uncertaintyDecay
	if newUncertainty < e.uncertaintyFloor {
		newUncertainty = e.uncertaintyFloor
	}

	return newAbility, newUncertainty
}
