package app

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Freeeeeet/clinic_portal/internal/config"
	"github.com/Freeeeeet/clinic_portal/internal/controller/httpapi"
)

// NewServer собирает echo с общими middleware и маршрутами API
func NewServer(cfg *config.Config, handler *httpapi.Handler, logger *zap.Logger) (*echo.Echo, error) {
	proxies, err := cfg.ProxyRanges()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	// Заголовкам X-Forwarded-For верим только от TRUSTED_PROXIES
	e.IPExtractor = httpapi.ClientIPExtractor(proxies)

	e.Use(httpapi.Recover(logger))
	e.Use(echomw.RequestID())
	e.Use(httpapi.RequestLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
	}))
	if cfg.APIRateRPS > 0 {
		e.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.APIRateRPS))))
	}
	e.Use(httpapi.Authenticate([]byte(cfg.JWTSecret)))

	handler.RegisterRoutes(e)
	return e, nil
}
