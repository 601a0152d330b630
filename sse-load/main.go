// Command sse-load holds many board streams open against a running service
// and fails when too few events arrive or too many connections drop.
package main

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/uramazingdanc/flowboardeai/api"
)

type counters struct {
	attempts      atomic.Uint64
	failures      atomic.Uint64
	boards        atomic.Uint64
	notifications atomic.Uint64
}

func (c *counters) failureRate() float64 {
	attempts := c.attempts.Load()
	if attempts == 0 {
		return 0
	}
	return float64(c.failures.Load()) / float64(attempts)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// readEvents counts SSE events by name until r ends or ctx is done.
func readEvents(ctx context.Context, r io.Reader, c *counters) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	for scanner.Scan() && ctx.Err() == nil {
		name, ok := strings.CutPrefix(scanner.Text(), "event: ")
		if !ok {
			continue
		}
		switch name {
		case "board":
			c.boards.Add(1)
		case "notification":
			c.notifications.Add(1)
		}
	}
}

func stream(ctx context.Context, client *http.Client, url, token string, c *counters) {
	backoff := time.Second
	for ctx.Err() == nil {
		c.attempts.Add(1)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err == nil {
			req.Header.Set("Authorization", "Bearer "+token)
			var resp *http.Response
			resp, err = client.Do(req)
			if err == nil {
				if resp.StatusCode == http.StatusOK {
					backoff = time.Second
					readEvents(ctx, resp.Body, c)
				}
				resp.Body.Close()
			}
		}
		if ctx.Err() != nil {
			return
		}
		c.failures.Add(1)
		time.Sleep(backoff)
		backoff = min(backoff*2, 5*time.Second)
	}
}

func main() {
	url := envOr("STREAM_URL", "http://localhost:8080/api/stream")
	conns := envInt("SSE_CONNECTIONS", 200)
	users := envInt("SSE_USERS", 20)
	duration := time.Duration(envInt("DURATION_SEC", 120)) * time.Second
	secret := envOr("LOCAL_AUTH_SHARED_SECRET", os.Getenv("TEST_JWT_SECRET"))
	if secret == "" {
		log.Fatal("set LOCAL_AUTH_SHARED_SECRET or TEST_JWT_SECRET")
	}

	tokens := make([]string, users)
	for i := range tokens {
		token, err := api.SignTestToken([]byte(secret), "load-user-"+strconv.Itoa(i), duration+time.Hour)
		if err != nil {
			log.Fatalf("token: %v", err)
		}
		tokens[i] = token
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var c counters
	var wg sync.WaitGroup
	client := &http.Client{}
	for i := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stream(ctx, client, url, tokens[i%users], &c)
		}()
	}
	wg.Wait()

	entry := log.WithFields(log.Fields{
		"connections":   conns,
		"duration_sec":  int(duration.Seconds()),
		"boards":        c.boards.Load(),
		"notifications": c.notifications.Load(),
		"failures":      c.failures.Load(),
	})
	if c.boards.Load() == 0 || c.failureRate() > 0.01 {
		entry.Error("sse load failed")
		os.Exit(1)
	}
	entry.Info("sse load passed")
}
