package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

func (s *SQLStore) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	q := s.sql.Select("value").
		From("session_values").
		Where(sq.Eq{"session_id": sessionID, "key": key})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build get value query: %w", err)
	}

	var value string
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get value: %w", err)
	}
	return value, true, nil
}

func (s *SQLStore) Set(ctx context.Context, sessionID, key, value string) error {
	q := s.sql.Insert("session_values").
		Columns("session_id", "key", "value", "updated_at").
		Values(sessionID, key, value, nowExpr(s.driver)).
		Suffix("ON CONFLICT(session_id, key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build set value query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("set value: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, sessionID, key string) error {
	q := s.sql.Delete("session_values").Where(sq.Eq{"session_id": sessionID, "key": key})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete value query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("delete value: %w", err)
	}
	return nil
}

func nowExpr(driver string) sq.Sqlizer {
	if driver == "postgres" {
		return sq.Expr("NOW()")
	}
	return sq.Expr("CURRENT_TIMESTAMP")
}
