package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/uramazingdanc/flowboardeai/domain"
)

const userKey = "user"

// GzipRequestMiddleware decompresses gzip encoded request bodies. Invalid
// gzip payloads are rejected with 400.
func GzipRequestMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !hasGzipEncoding(req.Header.Get(echo.HeaderContentEncoding)) {
				return next(c)
			}
			gr, err := gzip.NewReader(req.Body)
			if err != nil {
				_ = req.Body.Close()
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
			}
			req.Body = &gzipReadCloser{Reader: gr, body: req.Body}
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)
			return next(c)
		}
	}
}

func hasGzipEncoding(header string) bool {
	for _, enc := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			return true
		}
	}
	return false
}

type gzipReadCloser struct {
	*gzip.Reader
	body io.Closer
}

func (g *gzipReadCloser) Close() error {
	err := g.Reader.Close()
	if cerr := g.body.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// RequireUser authenticates the request and stores the user id on the
// context. Event streams cannot set headers, so an access_token query
// parameter is accepted as well.
func RequireUser(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				if token := c.QueryParam("access_token"); token != "" {
					header = "Bearer " + token
				}
			}
			userID, err := auth.UserIDFromAuthHeader(header)
			if err != nil {
				return c.String(http.StatusUnauthorized, err.Error())
			}
			c.Set(userKey, userID)
			return next(c)
		}
	}
}

func userFrom(c echo.Context) (string, error) {
	if id, ok := c.Get(userKey).(string); ok && id != "" {
		return id, nil
	}
	return "", domain.ErrNoUser
}
