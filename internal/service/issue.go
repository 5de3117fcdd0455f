package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/qrloyalty/token-service/internal/cache"
	"github.com/qrloyalty/token-service/internal/models"
	"github.com/qrloyalty/token-service/internal/pkg/log"
)

// tokenClaims — полезная нагрузка подписываемых токенов.
// Поле Type делает проверку "access против refresh" явной на уровне типа
// записи, а не только строки в хранилище; jti живёт в RegisteredClaims.ID.
type tokenClaims struct {
	UserID int64            `json:"userId"`
	Email  string           `json:"email"`
	Role   string           `json:"role"`
	Type   models.TokenType `json:"type"`
	jwt.RegisteredClaims
}

// IssueTokens выпускает связанную пару access+refresh для проверенного аккаунта.
//
// Подпись — чистая функция без I/O; персистентность — отдельный шаг.
// Ошибка записи в хранилище логируется, но уже подписанные токены всё равно
// возвращаются вызывающему: криптографическая валидность не зависит от
// успеха вставки (осознанный выбор доступности в ущерб согласованности).
func (s *Service) IssueTokens(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	const op = "service.issue.IssueTokens"

	if err := s.ready(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()

	jti, err := newJTI()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	accessToken, err := s.signToken(user, jti, models.TokenTypeAccess, now, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, err := s.signToken(user, jti, models.TokenTypeRefresh, now, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.persistPair(ctx, user.ID, jti, accessToken, refreshToken, now)

	return &models.TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		JTI:             jti,
		AccessExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	}, nil
}

// signToken подписывает токен заданного типа. Без I/O.
func (s *Service) signToken(user *models.User, jti string, typ models.TokenType, now time.Time, ttl time.Duration) (string, error) {
	const op = "service.issue.signToken"

	claims := tokenClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.cfg.Issuer,
			Subject:   fmt.Sprintf("%d", user.ID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// persistPair добавляет две записи (access и refresh) с общим jti.
// Ошибки не прерывают выпуск: фиксируем в логах для сверки.
func (s *Service) persistPair(ctx context.Context, userID int64, jti, accessToken, refreshToken string, now time.Time) {
	const op = "service.issue.persistPair"

	lg := log.From(ctx)

	records := []*models.TokenRecord{
		{
			JTI:       jti,
			UserID:    userID,
			Token:     accessToken,
			TokenType: models.TokenTypeAccess,
			ExpiresAt: now.Add(s.cfg.AccessTokenTTL),
			CreatedAt: now,
		},
		{
			JTI:       jti,
			UserID:    userID,
			Token:     refreshToken,
			TokenType: models.TokenTypeRefresh,
			ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
			CreatedAt: now,
		},
	}

	for _, rec := range records {
		if err := s.storage.SaveToken(ctx, rec); err != nil {
			lg.Error("save_token_record_failed",
				slog.String("op", op),
				slog.String("token_type", string(rec.TokenType)),
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
		}
	}

	if s.rcache != nil {
		entry := &cache.Entry{
			UserID:    userID,
			Revoked:   false,
			ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
		}
		if err := s.rcache.Set(ctx, jti, entry, s.cfg.RefreshTokenTTL); err != nil {
			lg.Warn("revocation_cache_set_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
	}
}

// newJTI возвращает 128-битный случайный идентификатор пары в hex.
func newJTI() (string, error) {
	const op = "service.issue.newJTI"

	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return hex.EncodeToString(b[:]), nil
}
