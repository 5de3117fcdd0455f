package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/qrloyalty/token-service/internal/models"
	"github.com/qrloyalty/token-service/internal/storage"
)

// SaveToken сохраняет запись выпущенного токена.
// Повторная вставка того же (jti, token_type) молча поглощается —
// ON CONFLICT DO NOTHING делает вставку идемпотентной при гонке/ретрае.
func (s *Storage) SaveToken(ctx context.Context, rec *models.TokenRecord) error {
	const op = "storage.postgres.SaveToken"

	query := `
        INSERT INTO tokens(jti, user_id, token, token_type, expires_at, revoked, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (jti, token_type) DO NOTHING
    `

	_, err := s.db.Exec(ctx, query,
		rec.JTI,
		rec.UserID,
		rec.Token,
		rec.TokenType,
		rec.ExpiresAt,
		rec.Revoked,
		rec.CreatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			// user_id ссылается на несуществующий аккаунт.
			return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// TokenByJTI находит запись токена по jti и типу.
func (s *Storage) TokenByJTI(ctx context.Context, jti string, typ models.TokenType) (*models.TokenRecord, error) {
	const op = "storage.postgres.TokenByJTI"

	query := `
        SELECT jti, user_id, token, token_type, expires_at, revoked, revoked_at, created_at
        FROM tokens
        WHERE jti = $1 AND token_type = $2
    `

	var rec models.TokenRecord
	err := s.db.QueryRow(ctx, query, jti, typ).Scan(
		&rec.JTI,
		&rec.UserID,
		&rec.Token,
		&rec.TokenType,
		&rec.ExpiresAt,
		&rec.Revoked,
		&rec.RevokedAt,
		&rec.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &rec, nil
}

// JTIRevoked сообщает, отозвана ли хотя бы одна запись с данным jti.
// Отсутствие записей — не ошибка: возвращается false.
func (s *Storage) JTIRevoked(ctx context.Context, jti string) (bool, error) {
	const op = "storage.postgres.JTIRevoked"

	query := `
        SELECT EXISTS (
            SELECT 1 FROM tokens
            WHERE jti = $1 AND revoked = TRUE
        )
    `

	var revoked bool
	if err := s.db.QueryRow(ctx, query, jti).Scan(&revoked); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return revoked, nil
}

// RevokeJTIIfActive атомарно отзывает ещё не отозванные записи jti.
// Условный UPDATE гарантирует, что из конкурирующих ротаций одного refresh-токена
// выиграет ровно одна: проигравшая получит (false, nil).
//
// Возвращает:
//
//	(true, nil)  — записи были активны и отозваны сейчас;
//	(false, nil) — записи существуют, но уже были отозваны;
//	(false, ErrNotFound) — записей с таким jti нет.
func (s *Storage) RevokeJTIIfActive(ctx context.Context, jti string, now time.Time) (bool, error) {
	const op = "storage.postgres.RevokeJTIIfActive"

	const upd = `
		UPDATE tokens
		SET revoked = TRUE, revoked_at = $2
		WHERE jti = $1 AND revoked = FALSE
	`

	cmdTag, err := s.db.Exec(ctx, upd, jti, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() > 0 {
		return true, nil
	}

	const sel = `
		SELECT EXISTS (SELECT 1 FROM tokens WHERE jti = $1)
	`

	var exists bool
	if err := s.db.QueryRow(ctx, sel, jti).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if !exists {
		return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return false, nil
}
