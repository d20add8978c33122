package lineage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "solace/pkg/domain"
	"solace/pkg/platform/sentinel"
	txcontext "solace/pkg/platform/tx"
	"solace/pkg/requestcontext"
)

// uniqueViolation is the postgres error code raised by the partial unique
// index on (scope_key, business_key) WHERE is_current. It backstops the
// application-level version check.
const uniqueViolation = "23505"

// Postgres persists version rows in a relational table, one table per record
// family. All tables share the shape declared by TableDDL.
//
// Concurrency control is optimistic: Supersede re-checks the observed version
// inside its transaction and loses cleanly (ErrConflict) when another writer
// closed the row first. No advisory locks, no application mutexes.
type Postgres[T Payload] struct {
	db    *sql.DB
	table string
}

// NewPostgres constructs a store over the named version table. The table name
// comes from a package-level constant in the owning domain package, never
// from user input.
func NewPostgres[T Payload](db *sql.DB, table string) *Postgres[T] {
	return &Postgres[T]{db: db, table: table}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// querier returns the context transaction when one is present so callers can
// compose version writes with their own transactional work.
func (s *Postgres[T]) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const recordColumns = `id, scope_key, business_key, version, valid_from, valid_to, is_current, payload, created_by, created_at, reason`

func (s *Postgres[T]) Create(ctx context.Context, scope id.HomeID, params CreateParams[T]) (Record[T], error) {
	var zero Record[T]
	if scope.IsNil() {
		return zero, fmt.Errorf("create: scope is required")
	}

	businessKey := params.BusinessKey
	if businessKey == uuid.Nil {
		businessKey = uuid.New()
	}
	now := requestcontext.Now(ctx)

	rec := Record[T]{
		ID:          uuid.New(),
		Scope:       scope,
		BusinessKey: businessKey,
		Version:     1,
		ValidFrom:   now,
		IsCurrent:   true,
		Payload:     params.Payload,
		CreatedBy:   params.CreatedBy,
		CreatedAt:   now,
		Reason:      params.Reason,
	}

	payloadBytes, err := json.Marshal(params.Payload)
	if err != nil {
		return zero, fmt.Errorf("marshal %s payload: %w", params.Payload.Kind(), err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, NULL, TRUE, $6, $7, $8, $9)
	`, s.table, recordColumns)
	_, err = s.querier(ctx).ExecContext(ctx, query,
		rec.ID, uuid.UUID(scope), businessKey, rec.Version, rec.ValidFrom,
		payloadBytes, rec.CreatedBy, rec.CreatedAt, rec.Reason,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return zero, fmt.Errorf("%w: business key %s already has a current version", sentinel.ErrConflict, businessKey)
		}
		return zero, fmt.Errorf("insert version 1 into %s: %w", s.table, err)
	}
	return rec, nil
}

func (s *Postgres[T]) Supersede(ctx context.Context, scope id.HomeID, businessKey uuid.UUID, params SupersedeParams[T]) (Record[T], error) {
	var zero Record[T]
	if params.Mutate == nil {
		return zero, fmt.Errorf("supersede: mutator is required")
	}

	// A context transaction composes the close-and-insert with the caller's
	// own work; the caller owns commit and rollback. Otherwise the store
	// opens and commits its own transaction.
	if ctxTx, ok := txcontext.From(ctx); ok {
		return s.supersedeIn(ctx, ctxTx, scope, businessKey, params)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return zero, fmt.Errorf("begin supersede on %s: %w", s.table, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	rec, err := s.supersedeIn(ctx, tx, scope, businessKey, params)
	if err != nil {
		return zero, err
	}
	if err := tx.Commit(); err != nil {
		return zero, fmt.Errorf("commit supersede on %s: %w", s.table, err)
	}
	return rec, nil
}

func (s *Postgres[T]) supersedeIn(ctx context.Context, tx *sql.Tx, scope id.HomeID, businessKey uuid.UUID, params SupersedeParams[T]) (Record[T], error) {
	var zero Record[T]

	current, err := s.scanOne(tx.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE scope_key = $1 AND business_key = $2 AND is_current
	`, recordColumns, s.table), uuid.UUID(scope), businessKey))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, fmt.Errorf("%w: no current version for business key %s", sentinel.ErrNotFound, businessKey)
		}
		return zero, fmt.Errorf("read current version from %s: %w", s.table, err)
	}

	next, err := params.Mutate(current.Payload)
	if err != nil {
		return zero, err
	}

	now := requestcontext.Now(ctx)

	// Close the observed row. Zero rows affected means another writer closed
	// it between our read and this write: abort with the conflict sentinel.
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET valid_to = $1, is_current = FALSE
		WHERE id = $2 AND version = $3 AND is_current
	`, s.table), now, current.ID, current.Version)
	if err != nil {
		return zero, fmt.Errorf("close version %d in %s: %w", current.Version, s.table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return zero, fmt.Errorf("close version %d in %s: %w", current.Version, s.table, err)
	}
	if affected != 1 {
		return zero, fmt.Errorf("%w: version %d was superseded concurrently", sentinel.ErrConflict, current.Version)
	}

	payloadBytes, err := json.Marshal(next)
	if err != nil {
		return zero, fmt.Errorf("marshal %s payload: %w", next.Kind(), err)
	}

	rec := Record[T]{
		ID:          uuid.New(),
		Scope:       scope,
		BusinessKey: businessKey,
		Version:     current.Version + 1,
		ValidFrom:   now,
		IsCurrent:   true,
		Payload:     next,
		CreatedBy:   params.UpdatedBy,
		CreatedAt:   now,
		Reason:      params.Reason,
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, NULL, TRUE, $6, $7, $8, $9)
	`, s.table, recordColumns),
		rec.ID, uuid.UUID(scope), businessKey, rec.Version, rec.ValidFrom,
		payloadBytes, rec.CreatedBy, rec.CreatedAt, rec.Reason,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return zero, fmt.Errorf("%w: version %d was superseded concurrently", sentinel.ErrConflict, current.Version)
		}
		return zero, fmt.Errorf("insert version %d into %s: %w", rec.Version, s.table, err)
	}
	return rec, nil
}

func (s *Postgres[T]) FindCurrent(ctx context.Context, scope id.HomeID, businessKey uuid.UUID) (Record[T], error) {
	rec, err := s.scanOne(s.querier(ctx).QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE scope_key = $1 AND business_key = $2 AND is_current
	`, recordColumns, s.table), uuid.UUID(scope), businessKey))
	if err != nil {
		var zero Record[T]
		if errors.Is(err, sql.ErrNoRows) {
			return zero, fmt.Errorf("%w: no current version for business key %s", sentinel.ErrNotFound, businessKey)
		}
		return zero, fmt.Errorf("find current in %s: %w", s.table, err)
	}
	return rec, nil
}

func (s *Postgres[T]) FindLineage(ctx context.Context, scope id.HomeID, businessKey uuid.UUID) (Lineage[T], error) {
	rows, err := s.querier(ctx).QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE scope_key = $1 AND business_key = $2
		ORDER BY version ASC
	`, recordColumns, s.table), uuid.UUID(scope), businessKey)
	if err != nil {
		return nil, fmt.Errorf("find lineage in %s: %w", s.table, err)
	}
	defer rows.Close()

	var lineage Lineage[T]
	for rows.Next() {
		rec, err := s.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lineage row from %s: %w", s.table, err)
		}
		lineage = append(lineage, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lineage in %s: %w", s.table, err)
	}
	if len(lineage) == 0 {
		return nil, fmt.Errorf("%w: unknown business key %s", sentinel.ErrNotFound, businessKey)
	}
	return lineage, nil
}

func (s *Postgres[T]) FindAsOf(ctx context.Context, scope id.HomeID, businessKey uuid.UUID, at time.Time) (Record[T], error) {
	rec, err := s.scanOne(s.querier(ctx).QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE scope_key = $1 AND business_key = $2
		  AND valid_from <= $3 AND (valid_to IS NULL OR valid_to > $3)
		ORDER BY version DESC LIMIT 1
	`, recordColumns, s.table), uuid.UUID(scope), businessKey, at))
	if err != nil {
		var zero Record[T]
		if errors.Is(err, sql.ErrNoRows) {
			return zero, fmt.Errorf("%w: no version of %s effective at %s", sentinel.ErrNotFound, businessKey, at.Format(time.RFC3339Nano))
		}
		return zero, fmt.Errorf("find as-of in %s: %w", s.table, err)
	}
	return rec, nil
}

func (s *Postgres[T]) ListCurrent(ctx context.Context, scope id.HomeID) ([]Record[T], error) {
	rows, err := s.querier(ctx).QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE scope_key = $1 AND is_current
		ORDER BY business_key ASC
	`, recordColumns, s.table), uuid.UUID(scope))
	if err != nil {
		return nil, fmt.Errorf("list current in %s: %w", s.table, err)
	}
	defer rows.Close()

	var current []Record[T]
	for rows.Next() {
		rec, err := s.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("scan current row from %s: %w", s.table, err)
		}
		current = append(current, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate current rows in %s: %w", s.table, err)
	}
	return current, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Postgres[T]) scanOne(row rowScanner) (Record[T], error) {
	var (
		rec          Record[T]
		scopeKey     uuid.UUID
		validTo      sql.NullTime
		payloadBytes []byte
	)
	err := row.Scan(
		&rec.ID, &scopeKey, &rec.BusinessKey, &rec.Version, &rec.ValidFrom,
		&validTo, &rec.IsCurrent, &payloadBytes, &rec.CreatedBy, &rec.CreatedAt, &rec.Reason,
	)
	if err != nil {
		return rec, err
	}
	rec.Scope = id.HomeID(scopeKey)
	if validTo.Valid {
		t := validTo.Time
		rec.ValidTo = &t
	}
	if err := json.Unmarshal(payloadBytes, &rec.Payload); err != nil {
		return rec, fmt.Errorf("unmarshal payload: %w", err)
	}
	return rec, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
