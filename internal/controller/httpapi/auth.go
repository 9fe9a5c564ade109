package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/Freeeeeet/clinic_portal/internal/service"
)

const actorKey = "actor"

var errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, ErrorBody{
	Error:   "unauthorized",
	Message: "valid bearer token required",
})

// Claims полезная нагрузка токена сессии
type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	DoctorID int64  `json:"doctor_id,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Actor собирает участника из токена
func (c *Claims) Actor() (service.Actor, error) {
	role := service.Role(c.Role)
	if !role.Valid() {
		return service.Actor{}, fmt.Errorf("unknown role %q", c.Role)
	}
	if role == service.RoleDoctor && c.DoctorID <= 0 {
		return service.Actor{}, errors.New("doctor token without doctor_id")
	}

	actor := service.Actor{Role: role, DoctorID: c.DoctorID, Subject: c.Subject}
	if c.Phone != "" {
		phone, err := service.NormalizePhone(c.Phone)
		if err != nil {
			return service.Actor{}, err
		}
		actor.Phone = phone
	}
	return actor, nil
}

// Authenticate разбирает Bearer токен, если он передан.
// Запрос без заголовка идёт дальше анонимно, закрытые маршруты отсекает RequireRole
func Authenticate(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return next(c)
			}

			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || len(secret) == 0 {
				return errUnauthorized
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				return errUnauthorized
			}

			actor, err := claims.Actor()
			if err != nil {
				return errUnauthorized
			}

			c.Set(actorKey, actor)
			return next(c)
		}
	}
}

// ActorFrom возвращает участника текущего запроса
func ActorFrom(c echo.Context) (service.Actor, bool) {
	actor, ok := c.Get(actorKey).(service.Actor)
	return actor, ok
}

// RequireRole пропускает только указанные роли, администратор проходит всегда
func RequireRole(roles ...service.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok {
				return errUnauthorized
			}
			if actor.Role == service.RoleAdmin {
				return next(c)
			}
			for _, role := range roles {
				if actor.Role == role {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, ErrorBody{
				Error:   "forbidden",
				Message: fmt.Sprintf("role %s is not allowed here", actor.Role),
			})
		}
	}
}

// IssueToken подписывает токен сессии для участника
func IssueToken(secret []byte, actor service.Actor, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("jwt secret is empty")
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:     string(actor.Role),
		DoctorID: actor.DoctorID,
		Phone:    actor.Phone,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
