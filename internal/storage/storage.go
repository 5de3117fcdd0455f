package storage

import (
	"context"
	"errors"
	"time"

	"github.com/qrloyalty/token-service/internal/models"
)

var (
	// ErrNotFound — запись не найдена (пользователь/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (jti+token_type).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции чтения аккаунтов.
// Таблица users принадлежит пользовательской подсистеме; сервис её не изменяет.
type UserStorage interface {
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id int64) (*models.User, error)
}

// TokenStorage выполняет операции над записями выпущенных токенов.
type TokenStorage interface {
	// SaveToken сохраняет запись токена. Вставка идемпотентна:
	// дубликат (jti, token_type) молча поглощается (ON CONFLICT DO NOTHING),
	// чтобы повтор вставки при гонке/ретрае был безопасен.
	SaveToken(ctx context.Context, rec *models.TokenRecord) error
	// TokenByJTI находит запись по jti и типу токена.
	TokenByJTI(ctx context.Context, jti string, typ models.TokenType) (*models.TokenRecord, error)
	// JTIRevoked сообщает, отозвана ли хотя бы одна запись с данным jti.
	JTIRevoked(ctx context.Context, jti string) (bool, error)
	// RevokeJTIIfActive атомарно отзывает все ещё не отозванные записи jti.
	// Возвращает:
	//
	//	(true, nil)  — хотя бы одна запись была активна и отозвана сейчас;
	//	(false, nil) — записи существуют, но уже были отозваны;
	//	(false, ErrNotFound) — записей с таким jti нет.
	RevokeJTIIfActive(ctx context.Context, jti string, now time.Time) (bool, error)
}

// Storage задаёт контракт работы с БД.
type Storage interface {
	UserStorage
	TokenStorage
	Close()
}
