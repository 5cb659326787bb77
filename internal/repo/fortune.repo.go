package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"fortune-letter/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

func (s *pgStore) GetFortuneByOrderId(ctx context.Context, orderID uuid.UUID) (*domain.Fortune, error) {
	var (
		f       domain.Fortune
		content []byte
		hash    sql.NullString
	)
	err := s.exec.QueryRowContext(ctx,
		`SELECT id, order_id, content, model, prompt_hash, created_at FROM fortunes WHERE order_id = $1`, orderID,
	).Scan(&f.ID, &f.OrderID, &content, &f.Model, &hash, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get fortune for %s: %w", orderID, err)
	}
	if err := json.Unmarshal(content, &f.Content); err != nil {
		return nil, fmt.Errorf("decode fortune content for %s: %w", orderID, err)
	}
	f.PromptHash = hash.String
	return &f, nil
}

func (s *pgStore) InsertFortune(ctx context.Context, f *domain.Fortune) error {
	content, err := json.Marshal(f.Content)
	if err != nil {
		return fmt.Errorf("encode fortune content: %w", err)
	}
	_, err = s.exec.ExecContext(ctx,
		`INSERT INTO fortunes (id, order_id, content, model, prompt_hash, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		f.ID, f.OrderID, string(content), f.Model, f.PromptHash, f.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("insert fortune for %s: %w", f.OrderID, domain.ErrDuplicateFortune)
	}
	if err != nil {
		return fmt.Errorf("insert fortune for %s: %w", f.OrderID, err)
	}
	return nil
}
