package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/uramazingdanc/flowboardeai/api"
	"github.com/uramazingdanc/flowboardeai/board"
	"github.com/uramazingdanc/flowboardeai/domain"
	"github.com/uramazingdanc/flowboardeai/gateway"
	"github.com/uramazingdanc/flowboardeai/notify"
)

func envDur(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Fatalf("invalid %s: %q", name, v)
	}
	return d
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Fatalf("invalid %s: %q", name, v)
	}
	return n
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// redisOptions accepts a redis:// URL or an Azure style
// "host:port,password=...,ssl=True" connection string.
func redisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(k) {
		case "password":
			opts.Password = v
		case "ssl":
			if strings.EqualFold(v, "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

// tableSpecs applies the *_TABLE overrides to the default layout.
func tableSpecs() map[string]gateway.TableSpec {
	specs := gateway.DefaultTables()
	for table, env := range map[string]string{
		domain.TableTasks:    "TASKS_TABLE",
		domain.TableProjects: "PROJECTS_TABLE",
		domain.TableProfiles: "PROFILES_TABLE",
		domain.TableMembers:  "MEMBERS_TABLE",
	} {
		if v := os.Getenv(env); v != "" {
			spec := specs[table]
			spec.Name = v
			specs[table] = spec
		}
	}
	return specs
}

func newAuth() *api.Auth {
	if os.Getenv("AUTH0_TEST_MODE") == "1" || os.Getenv("LOCAL_AUTH_MODE") != "" {
		return api.NewAuth(nil, "", "")
	}
	audience := os.Getenv("AUTH0_AUDIENCE")
	authDomain := os.Getenv("AUTH0_DOMAIN")
	if audience == "" || authDomain == "" {
		log.Fatal("missing Auth0 config")
	}
	jwks, err := keyfunc.Get(fmt.Sprintf("https://%s/.well-known/jwks.json", authDomain), keyfunc.Options{})
	if err != nil {
		log.Fatalf("jwks: %v", err)
	}
	return api.NewAuth(jwks, audience, "https://"+authDomain+"/")
}

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		log.SetFormatter(&log.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	rc := redis.NewClient(redisOptions(redisConn))

	var rows gateway.RowStore
	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Warn("STORAGE_CONNECTION_STRING not set, keeping rows in memory")
		rows = gateway.NewMemoryStore(tableSpecs())
	} else {
		store, err := gateway.NewTableStore(connStr, tableSpecs())
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		rows = store
	}
	feed := gateway.NewFeed(rc, os.Getenv("CHANGES_CHANNEL_PREFIX"))
	cache := gateway.NewCache(rc, envDur("PROFILE_CACHE_TTL", time.Minute), domain.TableProfiles)
	gw := gateway.NewRemote(rows, feed, cache)

	hub := notify.NewHub()
	sinks := []notify.Sink{notify.LogSink{Logger: log.StandardLogger()}, hub}
	if queue := os.Getenv("NOTIFICATIONS_QUEUE"); queue != "" && connStr != "" {
		qs, err := notify.NewQueueSink(connStr, queue, envInt("NOTIFICATIONS_BUFFER", 256))
		if err != nil {
			log.Fatalf("notifications queue: %v", err)
		}
		go qs.Run(ctx)
		sinks = append(sinks, qs)
	}

	sessions := board.NewSessions(gw, notify.To(sinks...), envDur("SESSION_IDLE_TIMEOUT", 30*time.Minute))
	defer sessions.Close()
	go sessions.Run(ctx, time.Minute)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{envOr("CORS_ORIGIN", "*")},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Idempotency-Key"},
	}))
	api.Register(e, sessions, hub, newAuth(), api.NewRedisDeduper(rc, envDur("DEDUPER_TTL", 24*time.Hour)), log.StandardLogger())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("shutdown")
		}
	}()

	addr := ":" + envOr("PORT", "8080")
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		addr = ":" + val
	}
	log.WithField("addr", addr).Info("flowboard sync service listening")
	if err := e.Start(addr); err != nil && ctx.Err() == nil {
		log.Fatalf("server: %v", err)
	}
}
