package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the persistent ledger backend. Appends and merges are
// single-row statements so concurrent workers never serialize on the store;
// Finalize is fenced on outcome='pending' so it can succeed at most once.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Append(ctx context.Context, e Entry) error {
	if e.Outcome == "" {
		e.Outcome = OutcomePending
	}
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_log
			(id, ts, agent, action, entity_id, entity_type, job_id,
			 details, outcome, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.Timestamp, e.Agent, e.Action, e.EntityID, e.EntityType,
		e.JobID, details, string(e.Outcome), e.IP, e.UserAgent)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) MergeDetails(ctx context.Context, id string, details map[string]any) error {
	patch, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE audit_log
		SET details = details || $1::jsonb
		WHERE id = $2`, patch, id)
	if err != nil {
		return fmt.Errorf("merge audit details: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Finalize(ctx context.Context, id string, outcome Outcome) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE audit_log
		SET outcome = $1
		WHERE id = $2 AND outcome = 'pending'`, string(outcome), id)
	if err != nil {
		return fmt.Errorf("finalize audit entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM audit_log WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("finalize audit entry: %w", err)
		}
		if exists {
			return ErrFinalized
		}
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	where := make([]string, 0, 7)
	args := make([]any, 0, 7)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, clause+"$"+strconv.Itoa(len(args)))
	}
	if f.Agent != "" {
		add("agent = ", f.Agent)
	}
	if f.Action != "" {
		add("action = ", f.Action)
	}
	if f.EntityID != "" {
		add("entity_id = ", f.EntityID)
	}
	if f.EntityType != "" {
		add("entity_type = ", f.EntityType)
	}
	if f.Outcome != "" {
		add("outcome = ", string(f.Outcome))
	}
	if !f.StartTime.IsZero() {
		add("ts >= ", f.StartTime)
	}
	if !f.EndTime.IsZero() {
		add("ts <= ", f.EndTime)
	}

	q := `SELECT id, ts, agent, action, entity_id, entity_type, job_id,
	             details, outcome, ip, user_agent
	      FROM audit_log`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	q += " ORDER BY ts DESC LIMIT $" + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Replay(ctx context.Context, jobID string) (Replay, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, ts, agent, action, entity_id, entity_type, job_id,
		       details, outcome, ip, user_agent
		FROM audit_log
		WHERE job_id = $1
		ORDER BY ts ASC, id ASC`, jobID)
	if err != nil {
		return Replay{}, fmt.Errorf("query replay: %w", err)
	}
	defer rows.Close()

	r := Replay{JobID: jobID}
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return Replay{}, err
		}
		r.Entries = append(r.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return Replay{}, err
	}
	sort.SliceStable(r.Entries, func(i, j int) bool {
		return r.Entries[i].Timestamp.Before(r.Entries[j].Timestamp)
	})
	if n := len(r.Entries); n > 0 {
		r.FinalOutcome = r.Entries[n-1].Outcome
	}
	return r, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanEntry(scan func(...any) error) (Entry, error) {
	var (
		e       Entry
		ts      time.Time
		details []byte
		outcome string
	)
	if err := scan(&e.ID, &ts, &e.Agent, &e.Action, &e.EntityID,
		&e.EntityType, &e.JobID, &details, &outcome, &e.IP, &e.UserAgent); err != nil {
		return Entry{}, fmt.Errorf("scan audit row: %w", err)
	}
	e.Timestamp = ts
	e.Outcome = Outcome(outcome)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return Entry{}, fmt.Errorf("decode audit details: %w", err)
		}
	}
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	return e, nil
}
