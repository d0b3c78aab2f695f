package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/affinity"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("database: not found")

// Repository handles database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// PutAssessment creates or replaces the profile of a.Identity.
func (r *Repository) PutAssessment(ctx context.Context, a *Assessment) error {
	competencies, err := json.Marshal(nonNil(a.Bundle.Competencies))
	if err != nil {
		return fmt.Errorf("failed to encode competencies: %w", err)
	}
	outcomes, err := json.Marshal(nonNil(a.Bundle.Outcomes))
	if err != nil {
		return fmt.Errorf("failed to encode outcomes: %w", err)
	}
	talents, err := json.Marshal(nonNil(a.Bundle.Talents))
	if err != nil {
		return fmt.Errorf("failed to encode talents: %w", err)
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now()
	}

	stmt, err := r.db.Stmt(stmtUpsertAssessment)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx,
		a.Identity, string(competencies), string(outcomes), string(talents), string(a.Bundle.Style),
		a.Contact.LinkedIn, a.Contact.X, a.Contact.Instagram, a.Contact.Website,
		a.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}
	return nil
}

// GetAssessment loads the profile of identity.
func (r *Repository) GetAssessment(ctx context.Context, identity string) (*Assessment, error) {
	stmt, err := r.db.Stmt(stmtGetAssessment)
	if err != nil {
		return nil, err
	}

	var (
		a                               Assessment
		competencies, outcomes, talents string
		style                           string
		updatedAt                       int64
	)
	err = stmt.QueryRowContext(ctx, identity).Scan(
		&a.Identity, &competencies, &outcomes, &talents, &style,
		&a.Contact.LinkedIn, &a.Contact.X, &a.Contact.Instagram, &a.Contact.Website, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query assessment: %w", err)
	}

	if err := json.Unmarshal([]byte(competencies), &a.Bundle.Competencies); err != nil {
		return nil, fmt.Errorf("failed to decode competencies: %w", err)
	}
	if err := json.Unmarshal([]byte(outcomes), &a.Bundle.Outcomes); err != nil {
		return nil, fmt.Errorf("failed to decode outcomes: %w", err)
	}
	if err := json.Unmarshal([]byte(talents), &a.Bundle.Talents); err != nil {
		return nil, fmt.Errorf("failed to decode talents: %w", err)
	}
	a.Bundle.Style = affinity.ParseCognitiveStyle(style)
	a.UpdatedAt = time.Unix(0, updatedAt)
	return &a, nil
}

// AddMessage stores a message written by identity.
func (r *Repository) AddMessage(ctx context.Context, identity, body string) (*Message, error) {
	msg := NewMessage(identity, body)

	stmt, err := r.db.Stmt(stmtInsertMessage)
	if err != nil {
		return nil, err
	}
	if _, err := stmt.ExecContext(ctx, msg.ID, msg.Identity, msg.Body, msg.CreatedAt.UnixNano()); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	return msg, nil
}

// RecentMessages returns up to limit message bodies of identity, newest first.
// The limit is capped at affinity.MaxHistory.
func (r *Repository) RecentMessages(ctx context.Context, identity string, limit int) ([]string, error) {
	if limit <= 0 || limit > affinity.MaxHistory {
		limit = affinity.MaxHistory
	}

	stmt, err := r.db.Stmt(stmtRecentMessages)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]string, 0, limit)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, body)
	}
	return messages, rows.Err()
}

// SaveResult upserts the result of a pair and context. Concurrent writers race and the
// last write wins.
func (r *Repository) SaveResult(ctx context.Context, res *StoredResult) error {
	payload, err := json.Marshal(res.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	stmt, err := r.db.Stmt(stmtUpsertResult)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx,
		res.ID, res.Subject, res.Counterpart, string(res.Context),
		res.Result.Composite, res.Result.Heat, string(res.Result.Level), string(res.Result.Band),
		string(payload), res.ComputedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// GetResult loads the stored result of a pair and context.
func (r *Repository) GetResult(ctx context.Context, subject, counterpart string, c affinity.Context) (*StoredResult, error) {
	stmt, err := r.db.Stmt(stmtGetResult)
	if err != nil {
		return nil, err
	}
	res, err := scanResult(stmt.QueryRowContext(ctx, subject, counterpart, string(c)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return res, err
}

// ResultsForSubject lists the stored results of subject, strongest first.
func (r *Repository) ResultsForSubject(ctx context.Context, subject string, limit int) ([]*StoredResult, error) {
	if limit <= 0 {
		limit = 50
	}

	stmt, err := r.db.Stmt(stmtResultsBySubject)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, subject, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []*StoredResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (*StoredResult, error) {
	var (
		res        StoredResult
		ctxName    string
		payload    string
		computedAt int64
	)
	if err := row.Scan(&res.ID, &res.Subject, &res.Counterpart, &ctxName, &payload, &computedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan result: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &res.Result); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	res.Context = affinity.Context(ctxName)
	res.ComputedAt = time.Unix(0, computedAt)
	return &res, nil
}

func nonNil[M ~map[string]float64](m M) M {
	if m == nil {
		return M{}
	}
	return m
}
