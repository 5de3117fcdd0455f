// service содержит бизнес-логику жизненного цикла токенов:
// выпуск связанной пары access/refresh, верификацию access-токена,
// ротацию пары по refresh-токену и явный отзыв.
//
// Основные аспекты:
//   - Пакет не хранит состояние запроса внутри Service; экземпляр Service
//     безопасен для конкурентного использования из разных горутин при условии,
//     что переданное хранилище (storage.Storage) потокобезопасно.
//   - Верификация никогда не изменяет состояние; единственные мутации —
//     вставка записей при выпуске и отзыв при ротации/логауте.
//   - Ошибки возвращаются сентинелами и далее маппятся HTTP-слоем
//     (см. комментарии к переменным ошибок ниже).
package service

import (
	"errors"
	"time"

	"github.com/qrloyalty/token-service/internal/cache"
	"github.com/qrloyalty/token-service/internal/config"
	"github.com/qrloyalty/token-service/internal/storage"
)

var (
	// ErrInvalidToken — токен некорректен по формату/подписи или имеет не тот тип.
	// Верификация: HTTP 200 {valid:false}; ротация: HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк либо активная запись
	// в хранилище отсутствует. Граница строгая: expires_at == now уже истёк.
	ErrTokenExpired = errors.New("token expired or invalid")

	// ErrTokenRevoked — jti токена отозван (ротация/логаут) и недействителен
	// независимо от срока. Отзыв необратим.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrUserNotFound — аккаунт из полезной нагрузки токена не существует.
	ErrUserNotFound = errors.New("user not found")

	// ErrAccountRestricted — аккаунт заблокирован или приостановлен;
	// отклоняется даже структурно и криптографически валидный токен.
	ErrAccountRestricted = errors.New("account restricted")

	// ErrNotConfigured — не задан секрет подписи или строка подключения к БД.
	// Фатально для запроса (HTTP 500), но процесс продолжает обслуживание.
	ErrNotConfigured = errors.New("service is not configured")
)

// Service описывает бизнес-логику token-service.
type Service struct {
	storage storage.Storage
	cfg     config.AuthConfig
	rcache  cache.RevocationCache // может быть nil, если кэш не сконфигурирован

	now func() time.Time
}

// New создаёт новый экземпляр Service.
// storage может быть nil в деградированном режиме (нет DATABASE_URL) —
// тогда каждая операция вернёт ErrNotConfigured.
func New(storage storage.Storage, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetRevocationCache устанавливает кэш отзыва токенов (опционально).
func (s *Service) SetRevocationCache(c cache.RevocationCache) {
	s.rcache = c
}

// AccessTokenTTL возвращает срок жизни access-токена (нужен транспорту
// для поля expiresIn).
func (s *Service) AccessTokenTTL() time.Duration {
	return s.cfg.AccessTokenTTL
}

// ready проверяет, что сервис полностью сконфигурирован.
func (s *Service) ready() error {
	if s.cfg.JWTSecret == "" || s.storage == nil {
		return ErrNotConfigured
	}

	return nil
}

// expired реализует строгую границу истечения: момент expires_at
// уже считается истёкшим (expires_at > now, строго).
func expired(expiresAt, now time.Time) bool {
	return !expiresAt.After(now)
}
