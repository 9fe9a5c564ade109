package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RequestLogger пишет одну строку лога на запрос
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)

			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}

			fields := []zap.Field{
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
			}

			switch {
			case status >= http.StatusInternalServerError:
				if he != nil && he.Internal != nil {
					fields = append(fields, zap.Error(he.Internal))
				} else if err != nil {
					fields = append(fields, zap.Error(err))
				}
				logger.Error("request", fields...)
			case err != nil:
				logger.Warn("request", fields...)
			default:
				logger.Info("request", fields...)
			}

			return err
		}
	}
}

// Recover перехватывает панику в обработчике и отвечает 500
func Recover(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					var stack [4096]byte
					n := runtime.Stack(stack[:], false)

					logger.Error("panic recovered",
						zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
						zap.String("panic", fmt.Sprintf("%v", r)),
						zap.ByteString("stack", stack[:n]),
					)

					err = echo.NewHTTPError(http.StatusInternalServerError, ErrorBody{
						Error:   "internal",
						Message: "internal server error",
					})
				}
			}()
			return next(c)
		}
	}
}
