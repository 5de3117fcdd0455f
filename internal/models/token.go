package models

import "time"

// TokenType различает две половины связанной пары токенов.
type TokenType string

const (
	// TokenTypeAccess — короткоживущий JWT для авторизации запросов к API.
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh — долгоживущий JWT, предъявляемый только для ротации пары.
	TokenTypeRefresh TokenType = "refresh"
)

// TokenRecord — персистентная запись о выпущенном токене.
//
// Инвариант: для одного jti существует не более одной записи access и одной
// refresh; обе создаются вместе и отзываются вместе. Отзыв — одностороннее
// действие: отозванный jti никогда не становится валидным снова. Записи не
// удаляются физически (аудит и обнаружение повторного предъявления).
type TokenRecord struct {
	// JTI — случайный идентификатор, связывающий access- и refresh-токен одной пары.
	JTI string
	// UserID — владелец токена (users.id).
	UserID int64
	// Token — подписанная строка JWT (хранится для аудита).
	Token string
	// TokenType — access или refresh.
	TokenType TokenType
	// ExpiresAt — момент истечения (UTC); запись с expires_at <= now недействительна.
	ExpiresAt time.Time
	// Revoked — признак отзыва.
	Revoked bool
	// RevokedAt — момент отзыва (UTC), nil пока токен не отозван.
	RevokedAt *time.Time
	// CreatedAt — момент выпуска (UTC).
	CreatedAt time.Time
}

// TokenPair — пара токенов, выдаваемая при выпуске/ротации.
type TokenPair struct {
	// AccessToken — JWT для авторизации запросов.
	AccessToken string
	// RefreshToken — JWT для обновления пары.
	RefreshToken string
	// JTI — общий идентификатор пары.
	JTI string
	// AccessExpiresAt — время истечения access-токена (UTC).
	AccessExpiresAt time.Time
}

// Claims — расшифрованное содержимое прошедшего проверку access-токена.
// Это то, что отдается вызывающей стороне после успешной верификации.
type Claims struct {
	UserID    int64
	Email     string
	Role      string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
