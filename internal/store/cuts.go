package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Pending-cut statuses as persisted in the cuts table.
const (
	CutStatusSubmitted = "submitted"
	CutStatusApplied   = "applied"
	CutStatusCancelled = "cancelled"
)

// ErrCutNotFound is returned when no cut row exists for the given id.
var ErrCutNotFound = errors.New("cut not found")

// CutRow is one persisted cut record. Payload is the canonical JSON of
// the cut; timestamps are Unix seconds.
type CutRow struct {
	ID          string
	Payload     string
	SubmittedAt int64
	ReadyAt     int64
	Status      string
}

// InsertCut records a newly submitted cut with status "submitted".
func (s *Store) InsertCut(ctx context.Context, row CutRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cuts (id, payload, submitted_at, ready_at, status)
		VALUES (?, ?, ?, ?, ?)
	`, row.ID, row.Payload, row.SubmittedAt, row.ReadyAt, CutStatusSubmitted)
	if err != nil {
		return fmt.Errorf("insert cut: %w", err)
	}
	return nil
}

// GetCut reads one cut row by id.
func (s *Store) GetCut(ctx context.Context, id string) (CutRow, error) {
	var row CutRow
	err := s.db.QueryRowContext(ctx, `
		SELECT id, payload, submitted_at, ready_at, status
		FROM cuts WHERE id = ?
	`, id).Scan(&row.ID, &row.Payload, &row.SubmittedAt, &row.ReadyAt, &row.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return CutRow{}, ErrCutNotFound
	}
	if err != nil {
		return CutRow{}, fmt.Errorf("get cut: %w", err)
	}
	return row, nil
}

// ListCuts returns cut rows filtered by status ("" means all), in
// submission order.
func (s *Store) ListCuts(ctx context.Context, status string) ([]CutRow, error) {
	query := `
		SELECT id, payload, submitted_at, ready_at, status
		FROM cuts ORDER BY submitted_at, id
	`
	args := []any{}
	if status != "" {
		query = `
			SELECT id, payload, submitted_at, ready_at, status
			FROM cuts WHERE status = ? ORDER BY submitted_at, id
		`
		args = append(args, status)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cuts: %w", err)
	}
	defer rows.Close()

	var out []CutRow
	for rows.Next() {
		var row CutRow
		if err := rows.Scan(&row.ID, &row.Payload, &row.SubmittedAt, &row.ReadyAt, &row.Status); err != nil {
			return nil, fmt.Errorf("list cuts: scan: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cuts: %w", err)
	}
	return out, nil
}

// CancelCut flips a submitted cut to "cancelled". The row is kept for
// audit rather than deleted. Returns ErrCutNotFound if no submitted cut
// with that id exists.
func (s *Store) CancelCut(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cuts SET status = ? WHERE id = ? AND status = ?
	`, CutStatusCancelled, id, CutStatusSubmitted)
	if err != nil {
		return fmt.Errorf("cancel cut: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel cut: rows affected: %w", err)
	}
	if n == 0 {
		return ErrCutNotFound
	}
	return nil
}

// MarkCutApplied flips a submitted cut to "applied" within the batch
// transaction, so the status change commits atomically with the registry
// mutation it describes.
func (t *Tx) MarkCutApplied(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE cuts SET status = ? WHERE id = ? AND status = ?
	`, CutStatusApplied, id, CutStatusSubmitted)
	if err != nil {
		return fmt.Errorf("mark cut applied: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark cut applied: rows affected: %w", err)
	}
	if n == 0 {
		return ErrCutNotFound
	}
	return nil
}

// AppendCutLog inserts the single structured change record for an applied
// batch, within the batch transaction.
func (t *Tx) AppendCutLog(ctx context.Context, cutID string, appliedAt int64, payload string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO cut_log (cut_id, applied_at, payload) VALUES (?, ?, ?)
	`, cutID, appliedAt, payload)
	if err != nil {
		return fmt.Errorf("append cut log: %w", err)
	}
	return nil
}

// CutLogEntry is one applied-batch record from the change journal.
type CutLogEntry struct {
	Seq       int64
	CutID     string
	AppliedAt int64
	Payload   string
}

// ListCutLog returns the change journal in application order.
func (s *Store) ListCutLog(ctx context.Context) ([]CutLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, cut_id, applied_at, payload FROM cut_log ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("list cut log: %w", err)
	}
	defer rows.Close()

	var out []CutLogEntry
	for rows.Next() {
		var e CutLogEntry
		if err := rows.Scan(&e.Seq, &e.CutID, &e.AppliedAt, &e.Payload); err != nil {
			return nil, fmt.Errorf("list cut log: scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cut log: %w", err)
	}
	return out, nil
}
