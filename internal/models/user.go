package models

// Статусы аккаунта. Жизненным циклом владеет пользовательская подсистема
// платформы; token-service читает статус только для проверки допуска.
const (
	StatusActive    = "active"
	StatusBanned    = "banned"
	StatusSuspended = "suspended"
)

// User — модель аккаунта (таблица users, read-only для этого сервиса).
type User struct {
	ID       int64
	Email    string
	Name     string
	UserType string
	Role     string
	Status   string
}

// Restricted сообщает, запрещено ли аккаунту пользоваться токенами.
// banned и suspended отклоняются даже при криптографически валидном токене.
func (u *User) Restricted() bool {
	return u.Status == StatusBanned || u.Status == StatusSuspended
}
