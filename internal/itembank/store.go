// Package itembank stores and serves the calibrated item pool. Items come
// in through the import endpoint and are read-only afterwards; the engine
// never writes back to them.
package itembank

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/skillscan/backend/internal/models"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const itemCols = `id, subject, grade_band, difficulty, question_type, prompt,
	        options, correct_answer, answer_pattern, estimated_time_seconds, created_at`

func scanItem(row interface{ Scan(...interface{}) error }) (*models.Item, error) {
	var item models.Item
	var options []byte
	err := row.Scan(&item.ID, &item.Subject, &item.GradeBand, &item.Difficulty,
		&item.Type, &item.Prompt, &options, &item.CorrectAnswer,
		&item.AnswerPattern, &item.EstimatedTimeSeconds, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &item.Options); err != nil {
			return nil, fmt.Errorf("decode options for item %d: %w", item.ID, err)
		}
	}
	return &item, nil
}

// Query returns the candidate pool for a subject, optionally narrowed to a
// grade band, minus the excluded ids.
func (s *Store) Query(ctx context.Context, subject string, gradeBand *models.GradeBand, excludedIDs []int64) ([]models.Item, error) {
	if excludedIDs == nil {
		excludedIDs = []int64{}
	}

	query := `SELECT ` + itemCols + `
		 FROM items
		 WHERE subject = $1 AND NOT (id = ANY($2))`
	args := []interface{}{subject, pq.Array(excludedIDs)}

	if gradeBand != nil {
		query += ` AND grade_band = $3`
		args = append(args, *gradeBand)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *Store) Get(ctx context.Context, id int64) (*models.Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+itemCols+` FROM items WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Subjects returns the distinct subjects with at least one item.
func (s *Store) Subjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT subject FROM items ORDER BY subject`)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var sub string
		if err := rows.Scan(&sub); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

// Import inserts items from an envelope, skipping duplicates. A duplicate
// is an existing item with the same subject and prompt.
func (s *Store) Import(ctx context.Context, items []models.ImportItem) (*models.ImportResult, error) {
	result := &models.ImportResult{TotalInPayload: len(items)}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO items
		 (subject, grade_band, difficulty, question_type, prompt, options,
		  correct_answer, answer_pattern, estimated_time_seconds)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (subject, md5(prompt)) DO NOTHING`)
	if err != nil {
		return nil, fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		options, err := json.Marshal(item.Options)
		if err != nil {
			return nil, fmt.Errorf("encode options: %w", err)
		}

		res, err := stmt.ExecContext(ctx,
			item.Subject, item.GradeBand, item.Difficulty, item.Type,
			item.Prompt, options, item.CorrectAnswer, item.AnswerPattern,
			item.EstimatedTimeSeconds)
		if err != nil {
			return nil, fmt.Errorf("insert item %q: %w", item.Prompt, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("insert item: %w", err)
		}
		if affected == 0 {
			result.Skipped++
		} else {
			result.Imported++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}
	return result, nil
}

// Export returns every item wrapped in a versioned envelope.
func (s *Store) Export(ctx context.Context) (*models.ItemEnvelope, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemCols+` FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("export items: %w", err)
	}
	defer rows.Close()

	envelope := &models.ItemEnvelope{Version: 1, Items: []models.ImportItem{}}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		envelope.Items = append(envelope.Items, models.ImportItem{
			Subject:              item.Subject,
			GradeBand:            item.GradeBand,
			Difficulty:           item.Difficulty,
			Type:                 item.Type,
			Prompt:               item.Prompt,
			Options:              item.Options,
			CorrectAnswer:        item.CorrectAnswer,
			AnswerPattern:        item.AnswerPattern,
			EstimatedTimeSeconds: item.EstimatedTimeSeconds,
		})
	}
	return envelope, rows.Err()
}
