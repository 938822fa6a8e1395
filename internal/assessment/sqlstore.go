package assessment

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/skillscan/backend/internal/models"
)

// SQLStore is the Postgres-backed SessionStore. Each session is one row;
// the response log and asked-id set live in JSONB columns, and a version
// column carries the optimistic-lock token.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Create(ctx context.Context, sess *models.Session) error {
	asked, responses, err := marshalSessionState(sess)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions
		 (id, user_id, subject, target_grade_band, status, ability, uncertainty,
		  pending_item_id, asked_item_ids, responses, max_questions, completed_reason,
		  started_at, completed_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1)`,
		sess.ID, sess.UserID, sess.Subject, sess.TargetGradeBand, sess.Status,
		sess.Ability, sess.Uncertainty, sess.PendingItemID, asked, responses,
		sess.MaxQuestions, sess.CompletedReason, sess.StartedAt, sess.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*models.Session, int64, error) {
	var (
		sess      models.Session
		asked     []byte
		responses []byte
		version   int64
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, subject, target_grade_band, status, ability, uncertainty,
		        pending_item_id, asked_item_ids, responses, max_questions,
		        completed_reason, started_at, completed_at, version
		 FROM sessions WHERE id = $1`,
		id,
	).Scan(&sess.ID, &sess.UserID, &sess.Subject, &sess.TargetGradeBand, &sess.Status,
		&sess.Ability, &sess.Uncertainty, &sess.PendingItemID, &asked, &responses,
		&sess.MaxQuestions, &sess.CompletedReason, &sess.StartedAt, &sess.CompletedAt,
		&version)
	if err == sql.ErrNoRows {
		return nil, 0, ErrSessionNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get session: %w", err)
	}

	if err := json.Unmarshal(asked, &sess.AskedItemIDs); err != nil {
		return nil, 0, fmt.Errorf("decode asked_item_ids: %w", err)
	}
	if err := json.Unmarshal(responses, &sess.Responses); err != nil {
		return nil, 0, fmt.Errorf("decode responses: %w", err)
	}

	return &sess, version, nil
}

func (s *SQLStore) Update(ctx context.Context, sess *models.Session, expectedVersion int64) error {
	asked, responses, err := marshalSessionState(sess)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions
		 SET status = $1, ability = $2, uncertainty = $3, pending_item_id = $4,
		     asked_item_ids = $5, responses = $6, completed_reason = $7,
		     completed_at = $8, version = version + 1
		 WHERE id = $9 AND version = $10`,
		sess.Status, sess.Ability, sess.Uncertainty, sess.PendingItemID,
		asked, responses, sess.CompletedReason, sess.CompletedAt,
		sess.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing row from a lost version race
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM sessions WHERE id = $1)`, sess.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		if !exists {
			return ErrSessionNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (s *SQLStore) SaveReport(ctx context.Context, sessionID string, payload []byte) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET report = $1 WHERE id = $2 AND report IS NULL`,
		payload, sessionID,
	)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	if affected == 0 {
		// Either the row is gone or another writer beat us; both are fine
		// as long as the session exists.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM sessions WHERE id = $1)`, sessionID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("save report: %w", err)
		}
		if !exists {
			return ErrSessionNotFound
		}
	}
	return nil
}

func (s *SQLStore) GetReport(ctx context.Context, sessionID string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM sessions WHERE id = $1`, sessionID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return payload, nil
}

func (s *SQLStore) LatestCompletedAbility(ctx context.Context, userID int64, subject string) (float64, bool, error) {
	var ability float64
	err := s.db.QueryRowContext(ctx,
		`SELECT ability FROM sessions
		 WHERE user_id = $1 AND subject = $2 AND status = $3
		 ORDER BY completed_at DESC LIMIT 1`,
		userID, subject, models.StatusComplete,
	).Scan(&ability)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("latest completed ability: %w", err)
	}
	return ability, true, nil
}

func (s *SQLStore) ListByUser(ctx context.Context, userID int64) ([]models.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject, status, jsonb_array_length(responses), max_questions,
		        completed_reason, started_at, completed_at
		 FROM sessions WHERE user_id = $1
		 ORDER BY started_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []models.SessionSummary
	for rows.Next() {
		var sum models.SessionSummary
		if err := rows.Scan(&sum.SessionID, &sum.Subject, &sum.Status, &sum.Answered,
			&sum.MaxQuestions, &sum.Reason, &sum.StartedAt, &sum.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan session summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func marshalSessionState(sess *models.Session) (asked, responses []byte, err error) {
	askedIDs := sess.AskedItemIDs
	if askedIDs == nil {
		askedIDs = []int64{}
	}
	asked, err = json.Marshal(askedIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("encode asked_item_ids: %w", err)
	}

	entries := sess.Responses
	if entries == nil {
		entries = []models.Response{}
	}
	responses, err = json.Marshal(entries)
	if err != nil {
		return nil, nil, fmt.Errorf("encode responses: %w", err)
	}
	return asked, responses, nil
}
