// transport/http содержит реализацию HTTP-эндпоинтов жизненного цикла токенов.
// Здесь выполняется только маппинг данных и ошибок доменного слоя (service) в HTTP.
// Вся валидация и бизнес-логика находятся в пакете service.
//
// Контракт:
//   - /auth/refresh-token — привилегированная операция: любая аутентификационная
//     неудача — жёсткий 401;
//   - /auth/verify-token — невалидный токен это ожидаемый штатный исход, а не
//     исключение: ответ HTTP 200 c {valid:false, error:<причина>};
//   - отсутствие обязательного поля тела — 400;
//   - отсутствие конфигурации (секрет/БД) — 500 на каждый запрос.
//
// Безопасность: детали внутренних ошибок наружу не утекают — клиент получает
// нейтральное сообщение, подробности уходят в логи через мидлвары.
package http

import (
	"errors"
	"log/slog"
	"net/http"

	logctx "github.com/qrloyalty/token-service/internal/pkg/log"
	"github.com/qrloyalty/token-service/internal/service"
)

// Handlers агрегирует зависимости эндпоинтов.
type Handlers struct {
	svc *service.Service
}

func NewHandlers(svc *service.Service) *Handlers {
	return &Handlers{svc: svc}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

type tokenData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type refreshResponse struct {
	Success bool      `json:"success"`
	Data    tokenData `json:"data"`
}

// verifyPayload — расшифрованная полезная нагрузка для клиента.
type verifyPayload struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	JTI    string `json:"jti"`
	IAT    int64  `json:"iat"`
	EXP    int64  `json:"exp"`
}

type verifyResponse struct {
	Success bool           `json:"success"`
	Valid   bool           `json:"valid"`
	Payload *verifyPayload `json:"payload,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// RefreshToken обменивает refresh-токен на новую пару.
// Маппинг ошибок:
//   - ErrInvalidToken/ErrTokenExpired/ErrTokenRevoked/ErrUserNotFound/
//     ErrAccountRestricted -> 401;
//   - ErrNotConfigured -> 500;
//   - прочее -> 500 (без раскрытия деталей).
func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(r, &in); err != nil || in.RefreshToken == "" {
		errorJSON(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	pair, err := h.svc.RotateTokens(r.Context(), in.RefreshToken)
	if err != nil {
		h.writeAuthError(w, r, err, "Invalid refresh token")
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		Success: true,
		Data: tokenData{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			ExpiresIn:    int64(h.svc.AccessTokenTTL().Seconds()),
		},
	})
}

// VerifyToken проверяет access-токен.
// Контракт: при невалидном/просроченном/отозванном токене HTTP-ошибки нет —
// отдаётся 200 {valid:false, error:<причина>}. 500 только при отсутствии
// конфигурации или внутренней ошибке.
func (h *Handlers) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var in verifyRequest
	if err := decodeStrict(r, &in); err != nil || in.Token == "" {
		errorJSON(w, http.StatusBadRequest, "Token is required")
		return
	}

	claims, err := h.svc.VerifyAccessToken(r.Context(), in.Token)
	if err != nil {
		if reason, ok := authFailureReason(err, "Invalid token"); ok {
			writeJSON(w, http.StatusOK, verifyResponse{Success: true, Valid: false, Error: reason})
			return
		}

		h.writeServerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		Success: true,
		Valid:   true,
		Payload: &verifyPayload{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
			JTI:    claims.JTI,
			IAT:    claims.IssuedAt.Unix(),
			EXP:    claims.ExpiresAt.Unix(),
		},
	})
}

// RevokeToken отзывает пару токенов по refresh-токену (логаут).
func (h *Handlers) RevokeToken(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(r, &in); err != nil || in.RefreshToken == "" {
		errorJSON(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	if err := h.svc.RevokeTokens(r.Context(), in.RefreshToken); err != nil {
		h.writeAuthError(w, r, err, "Invalid refresh token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// authFailureReason возвращает клиентскую причину для аутентификационных
// неудач. invalidMsg подставляется для ErrInvalidToken: verify и refresh
// называют её по-разному.
func authFailureReason(err error, invalidMsg string) (string, bool) {
	switch {
	case errors.Is(err, service.ErrInvalidToken):
		return invalidMsg, true
	case errors.Is(err, service.ErrTokenExpired):
		return "Token expired or invalid", true
	case errors.Is(err, service.ErrTokenRevoked):
		return "Token revoked", true
	case errors.Is(err, service.ErrUserNotFound):
		return "User not found", true
	case errors.Is(err, service.ErrAccountRestricted):
		return "Account restricted", true
	}

	return "", false
}

// writeAuthError — жёсткий маппинг для привилегированных операций:
// аутентификационные неудачи -> 401, остальное -> 500.
func (h *Handlers) writeAuthError(w http.ResponseWriter, r *http.Request, err error, invalidMsg string) {
	if reason, ok := authFailureReason(err, invalidMsg); ok {
		errorJSON(w, http.StatusUnauthorized, reason)
		return
	}

	h.writeServerError(w, r, err)
}

func (h *Handlers) writeServerError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrNotConfigured) {
		logctx.From(r.Context()).Error("not_configured", slog.String("err", err.Error()))
		errorJSON(w, http.StatusInternalServerError, "Server configuration error")
		return
	}

	logctx.From(r.Context()).Error("internal_error", slog.String("err", err.Error()))
	errorJSON(w, http.StatusInternalServerError, "Internal server error")
}
