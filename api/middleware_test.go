package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func echoBody(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	return c.String(http.StatusOK, string(body))
}

func TestGzipRequestMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(GzipRequestMiddleware())
	e.POST("/", echoBody)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(`{"title":"zipped"}`))
	_ = zw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set(echo.HeaderContentEncoding, "identity, GZIP")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != `{"title":"zipped"}` {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not gzip"))
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid gzip, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("plain"))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Body.String() != "plain" {
		t.Fatalf("plain body altered: %q", rec.Body.String())
	}
}

func TestRequireUser(t *testing.T) {
	e := echo.New()
	e.GET("/", func(c echo.Context) error {
		id, err := userFrom(c)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, id)
	}, RequireUser(headerAuth{}))

	tests := []struct {
		name   string
		target string
		header string
		code   int
		body   string
	}{
		{name: "header", target: "/", header: "Bearer alice", code: http.StatusOK, body: "alice"},
		{name: "query token", target: "/?access_token=bob", code: http.StatusOK, body: "bob"},
		{name: "header wins", target: "/?access_token=bob", header: "Bearer alice", code: http.StatusOK, body: "alice"},
		{name: "anonymous", target: "/", code: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.code || (tt.body != "" && rec.Body.String() != tt.body) {
				t.Fatalf("got %d %q", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRedisDeduper(t *testing.T) {
	mr, rc := newTestRedis(t)
	d := NewRedisDeduper(rc, time.Minute)
	ctx := context.Background()

	added, err := d.Add(ctx, "alice", "k")
	if err != nil || !added {
		t.Fatalf("first add: %v %v", added, err)
	}
	if ttl := mr.TTL("idempotency:alice:k"); ttl != time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}
	if added, _ := d.Add(ctx, "alice", "k"); added {
		t.Fatalf("duplicate key accepted")
	}
	if added, _ := d.Add(ctx, "bob", "k"); !added {
		t.Fatalf("keys must be scoped per user")
	}
	if err := d.Remove(ctx, "alice", "k"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if added, _ := d.Add(ctx, "alice", "k"); !added {
		t.Fatalf("removed key not reusable")
	}
}
