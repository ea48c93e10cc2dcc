package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type sqliteSheetRepository struct {
	db *sql.DB
}

// NewSQLiteSheetRepository stores the ledger in a SQLite database opened
// with the sqlite3 driver.
func NewSQLiteSheetRepository(db *sql.DB) SheetRepository {
	return &sqliteSheetRepository{db: db}
}

func (r *sqliteSheetRepository) Append(ctx context.Context, sheet string, row Row) error {
	s, err := LookupSheet(sheet)
	if err != nil {
		return err
	}
	query, args, err := s.insertSQL(row, question)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to append to %s: %w", sheet, err)
	}
	return nil
}

func (r *sqliteSheetRepository) UpdateByKey(ctx context.Context, sheet, key string, updates Row) error {
	s, err := LookupSheet(sheet)
	if err != nil {
		return err
	}
	query, args, err := s.updateSQL(key, updates, question)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", sheet, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s[%s]", ErrRowNotFound, sheet, key)
	}
	return nil
}

func (r *sqliteSheetRepository) Get(ctx context.Context, sheet, key string) (Row, error) {
	s, err := LookupSheet(sheet)
	if err != nil {
		return nil, err
	}
	values := make([]string, len(s.Columns))
	dest := make([]any, len(values))
	for i := range values {
		dest[i] = &values[i]
	}
	err = r.db.QueryRowContext(ctx, s.selectSQL(question), key).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s[%s]", ErrRowNotFound, sheet, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s row: %w", sheet, err)
	}
	return s.scanRow(values), nil
}

func (r *sqliteSheetRepository) Migrate(ctx context.Context) error {
	for _, name := range SheetNames() {
		for _, stmt := range Sheets[name].CreateTableSQL() {
			if _, err := r.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate %s: %w", name, err)
			}
		}
	}
	return nil
}

func (r *sqliteSheetRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
