package assessment

import (
	"context"

	"github.com/skillscan/backend/internal/models"
)

// SessionStore is durable, keyed storage for session aggregates with
// optimistic concurrency control. Get returns the version the caller must
// present to Update; a mismatched version fails with ErrVersionConflict
// and the caller re-reads. Sessions are independent: no implementation may
// serialize updates across different session ids.
type SessionStore interface {
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, int64, error)
	Update(ctx context.Context, s *models.Session, expectedVersion int64) error

	// SaveReport caches the rendered report payload. The first write wins;
	// later writes are no-ops so every reader sees identical bytes.
	SaveReport(ctx context.Context, sessionID string, payload []byte) error
	GetReport(ctx context.Context, sessionID string) ([]byte, error)

	// LatestCompletedAbility returns the final ability estimate of the
	// user's most recently completed session in a subject, for seeding
	// the prior of a new session.
	LatestCompletedAbility(ctx context.Context, userID int64, subject string) (float64, bool, error)

	ListByUser(ctx context.Context, userID int64) ([]models.SessionSummary, error)
}
