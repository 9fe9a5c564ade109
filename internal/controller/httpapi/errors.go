package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Freeeeeet/clinic_portal/internal/service"
)

// ErrorBody тело ответа с ошибкой
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{service.ErrInvalidCode, http.StatusBadRequest, "invalid_code"},
	{service.ErrCodeExpired, http.StatusGone, "code_expired"},
	{service.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{service.ErrPreconditionFailed, http.StatusPreconditionFailed, "precondition_failed"},
	{service.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable"},
	{service.ErrConfiguration, http.StatusUnprocessableEntity, "configuration_error"},
	{service.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{service.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden"},
	{service.ErrDeliveryFailed, http.StatusBadGateway, "delivery_failed"},
}

// httpError переводит ошибку сервиса в ответ API.
// Неизвестные ошибки отдаются как 500 без подробностей, сама ошибка остаётся во внутреннем поле для лога
func httpError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return echo.NewHTTPError(m.status, ErrorBody{Error: m.code, Message: err.Error()})
		}
	}

	return echo.NewHTTPError(http.StatusInternalServerError, ErrorBody{
		Error:   "internal",
		Message: "internal server error",
	}).SetInternal(err)
}

func badRequest(message string) error {
	return echo.NewHTTPError(http.StatusBadRequest, ErrorBody{Error: "invalid_input", Message: message})
}
