package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/qrloyalty/token-service/internal/models"
	"github.com/qrloyalty/token-service/internal/pkg/log"
	"github.com/qrloyalty/token-service/internal/storage"
)

// VerifyAccessToken проверяет access-токен и возвращает его полезную нагрузку.
//
// Проверки выполняются по порядку с остановкой на первой неудаче:
//  1. подпись и срок действия (заложены в схему подписи) — ErrInvalidToken/ErrTokenExpired;
//  2. отзыв по jti — ErrTokenRevoked;
//  3. наличие активной записи access с expires_at строго в будущем — ErrTokenExpired;
//  4. существование аккаунта — ErrUserNotFound;
//  5. статус аккаунта: banned/suspended — ErrAccountRestricted.
//
// Верификация никогда не изменяет состояние.
func (s *Service) VerifyAccessToken(ctx context.Context, tokenStr string) (*models.Claims, error) {
	const op = "service.verify.VerifyAccessToken"

	if err := s.ready(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	claims, err := s.parseToken(tokenStr, models.TokenTypeAccess)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	jti := claims.ID

	if jti != "" {
		if err := s.checkRevocation(ctx, jti); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		rec, err := s.storage.TokenByJTI(ctx, jti, models.TokenTypeAccess)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
			}

			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if rec.Revoked || expired(rec.ExpiresAt, now) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}
	}

	if _, err := s.eligibleUser(ctx, claims.UserID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.Claims{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Role:      claims.Role,
		JTI:       jti,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// parseToken выполняет криптографическую проверку и требует совпадения типа.
// Токен другого типа (refresh вместо access и наоборот) — ErrInvalidToken:
// подпись валидна, но предъявлен не тот член пары.
func (s *Service) parseToken(tokenStr string, want models.TokenType) (*tokenClaims, error) {
	const op = "service.verify.parseToken"

	token, err := jwt.ParseWithClaims(tokenStr, &tokenClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return []byte(s.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(s.cfg.Issuer),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if claims.Type != want {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

// checkRevocation проверяет отзыв jti: сначала кэш, затем БД.
// Кэш консультативен — его ошибка или промах означают поход в хранилище.
func (s *Service) checkRevocation(ctx context.Context, jti string) error {
	const op = "service.verify.checkRevocation"

	lg := log.From(ctx)

	if s.rcache != nil {
		entry, ok, err := s.rcache.Get(ctx, jti)
		if err != nil {
			lg.Warn("revocation_cache_get_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		} else if ok {
			if entry.Revoked {
				return fmt.Errorf("%s: %w", op, ErrTokenRevoked)
			}

			return nil
		}
	}

	revoked, err := s.storage.JTIRevoked(ctx, jti)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if revoked {
		return fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	return nil
}

// eligibleUser загружает аккаунт и проверяет допуск.
func (s *Service) eligibleUser(ctx context.Context, userID int64) (*models.User, error) {
	const op = "service.verify.eligibleUser"

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if user.Restricted() {
		lg := log.From(ctx)
		lg.Warn("account_restricted",
			slog.String("op", op),
			slog.Int64("user_id", user.ID),
			slog.String("status", user.Status),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrAccountRestricted)
	}

	return user, nil
}
