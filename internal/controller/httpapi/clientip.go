package httpapi

import (
	"net"

	"github.com/labstack/echo/v4"
)

// ClientIPExtractor определяет адрес клиента, по которому считаются лимиты.
// Без доверенных прокси берётся адрес соединения, заголовки X-Forwarded-For и X-Real-IP игнорируются.
// С прокси адрес из X-Forwarded-For принимается только от перечисленных сетей
func ClientIPExtractor(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}

	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, ipRange := range trusted {
		opts = append(opts, echo.TrustIPRange(ipRange))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}
