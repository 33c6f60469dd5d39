package middleware

import (
	"github.com/labstack/echo/v4"
)

// hopByHopHeaders are headers that must not be forwarded by proxies.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// CORS returns an Echo middleware that strips hop-by-hop headers from
// incoming requests and marks every response — success or error — as
// cross-origin readable. Content-Length and Content-Range are exposed so
// browser players can range-seek through proxied segments.
//
// Headers are set before the handler runs: the proxy streams bodies, so by
// the time the handler returns the header section is already on the wire.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, h := range hopByHopHeaders {
				c.Request().Header.Del(h)
			}

			header := c.Response().Header()
			header.Set("Access-Control-Allow-Origin", "*")
			header.Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Date")

			return next(c)
		}
	}
}
