package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SheetRepository appends and updates ledger rows. Updates address a row by
// the sheet's key column; concurrent updates to different columns of the
// same row are last-write-wins per column.
type SheetRepository interface {
	Append(ctx context.Context, sheet string, row Row) error
	UpdateByKey(ctx context.Context, sheet, key string, updates Row) error
	Get(ctx context.Context, sheet, key string) (Row, error)
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
}

type postgresSheetRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSheetRepository instantiates repository.
func NewPostgresSheetRepository(pool *pgxpool.Pool) SheetRepository {
	return &postgresSheetRepository{pool: pool}
}

func (r *postgresSheetRepository) Append(ctx context.Context, sheet string, row Row) error {
	s, err := LookupSheet(sheet)
	if err != nil {
		return err
	}
	query, args, err := s.insertSQL(row, dollar)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, query, args...)
	return err
}

func (r *postgresSheetRepository) UpdateByKey(ctx context.Context, sheet, key string, updates Row) error {
	s, err := LookupSheet(sheet)
	if err != nil {
		return err
	}
	query, args, err := s.updateSQL(key, updates, dollar)
	if err != nil {
		return err
	}
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s[%s]", ErrRowNotFound, sheet, key)
	}
	return nil
}

func (r *postgresSheetRepository) Get(ctx context.Context, sheet, key string) (Row, error) {
	s, err := LookupSheet(sheet)
	if err != nil {
		return nil, err
	}
	values := make([]string, len(s.Columns))
	dest := make([]any, len(values))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := r.pool.QueryRow(ctx, s.selectSQL(dollar), key).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s[%s]", ErrRowNotFound, sheet, key)
		}
		return nil, err
	}
	return s.scanRow(values), nil
}

func (r *postgresSheetRepository) Migrate(ctx context.Context) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	for _, name := range SheetNames() {
		for _, stmt := range Sheets[name].CreateTableSQL() {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migrate %s: %w", name, err)
			}
		}
	}
	return tx.Commit(ctx)
}

func (r *postgresSheetRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

type memorySheetRepository struct {
	mu   sync.RWMutex
	rows map[string][]Row
}

// NewMemorySheetRepository keeps rows in process memory.
func NewMemorySheetRepository() SheetRepository {
	return &memorySheetRepository{rows: make(map[string][]Row)}
}

func (r *memorySheetRepository) Append(ctx context.Context, sheet string, row Row) error {
	s, err := LookupSheet(sheet)
	if err != nil {
		return err
	}
	if _, err := s.columnsOf(row); err != nil {
		return err
	}
	stored := make(Row, len(s.Columns))
	for _, c := range s.Columns {
		stored[c] = row[c]
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[sheet] = append(r.rows[sheet], stored)
	return nil
}

func (r *memorySheetRepository) UpdateByKey(ctx context.Context, sheet, key string, updates Row) error {
	s, err := LookupSheet(sheet)
	if err != nil {
		return err
	}
	if _, err := s.columnsOf(updates); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := false
	for _, row := range r.rows[sheet] {
		if row[s.KeyColumn] != key {
			continue
		}
		for c, v := range updates {
			row[c] = v
		}
		matched = true
	}
	if !matched {
		return fmt.Errorf("%w: %s[%s]", ErrRowNotFound, sheet, key)
	}
	return nil
}

func (r *memorySheetRepository) Get(ctx context.Context, sheet, key string) (Row, error) {
	s, err := LookupSheet(sheet)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, row := range r.rows[sheet] {
		if row[s.KeyColumn] == key {
			out := make(Row, len(row))
			for c, v := range row {
				out[c] = v
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %s[%s]", ErrRowNotFound, sheet, key)
}

func (r *memorySheetRepository) Migrate(ctx context.Context) error { return nil }

func (r *memorySheetRepository) Ping(ctx context.Context) error { return nil }
