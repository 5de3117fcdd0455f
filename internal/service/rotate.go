package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/qrloyalty/token-service/internal/models"
	"github.com/qrloyalty/token-service/internal/pkg/log"
	"github.com/qrloyalty/token-service/internal/storage"
)

// RotateTokens обменивает валидный refresh-токен на новую пару.
//
// Порядок проверок повторяет верификацию (подпись → отзыв → активная запись
// refresh → аккаунт → допуск), после чего старый jti атомарно отзывается
// условным UPDATE (WHERE revoked = FALSE): из конкурирующих ротаций одного
// refresh-токена выигрывает ровно одна, проигравшая получает ErrTokenRevoked.
// Только затем подписывается новая пара с независимым jti. Старый токен
// гарантированно непригоден к повторному использованию даже если запись
// новой пары не удастся — она выполняется fail-open, как при выпуске.
func (s *Service) RotateTokens(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	const op = "service.rotate.RotateTokens"

	if err := s.ready(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	claims, err := s.parseToken(refreshToken, models.TokenTypeRefresh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	jti := claims.ID

	if err := s.checkRevocation(ctx, jti); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rec, err := s.storage.TokenByJTI(ctx, jti, models.TokenTypeRefresh)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if rec.Revoked || expired(rec.ExpiresAt, now) {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}

	user, err := s.eligibleUser(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.claimJTI(ctx, jti); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.IssueTokens(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

// RevokeTokens отзывает пару токенов по refresh-токену (логаут).
// Повторный отзыв уже отозванного jti — ErrTokenRevoked.
func (s *Service) RevokeTokens(ctx context.Context, refreshToken string) error {
	const op = "service.rotate.RevokeTokens"

	if err := s.ready(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	claims, err := s.parseToken(refreshToken, models.TokenTypeRefresh)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.claimJTI(ctx, claims.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// claimJTI атомарно отзывает jti и помечает кэш.
// Переход односторонний: отозванная пара в активное состояние не возвращается.
func (s *Service) claimJTI(ctx context.Context, jti string) error {
	const op = "service.rotate.claimJTI"

	lg := log.From(ctx)

	claimed, err := s.storage.RevokeJTIIfActive(ctx, jti, s.now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if !claimed {
		return fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	if s.rcache != nil {
		if err := s.rcache.MarkRevoked(ctx, jti); err != nil {
			lg.Warn("revocation_cache_mark_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
	}

	lg.Info("token_pair_revoked", slog.String("op", op))

	return nil
}
