// Command api runs the incident-reporting HTTP server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"reporta.org/internal/httpapi"
	"reporta.org/internal/incidents"
	"reporta.org/internal/notify"
	"reporta.org/internal/obs"
	"reporta.org/internal/users"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	addr := envOr("REPORTA_LISTEN_ADDR", ":8080")
	grpcAddr := os.Getenv("REPORTA_GRPC_ADDR")
	dsn := os.Getenv("REPORTA_PG_DSN")

	var (
		db         *sql.DB
		userStore  users.Store
		incStore   incidents.Store
		directory  notify.Directory
		readyCheck func(ctx context.Context) error
	)
	if dsn != "" {
		var err error
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			fatal("open database", err)
		}
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(time.Hour)

		userStore = users.NewPostgres(db)
		incStore = incidents.NewPostgres(db)
		directory = notify.NewPgDirectory(db)
		readyCheck = func(ctx context.Context) error { return db.PingContext(ctx) }
	} else {
		userStore = users.NewInMemory()
		incStore = incidents.NewInMemory()
		directory = notify.NewMemoryDirectory()
	}

	usersSvc := users.NewService(userStore)

	api := httpapi.New(usersSvc, nil, directory, httpapi.Options{
		Version:    version,
		ReadyCheck: readyCheck,
	})
	notifier := notify.New(directory, api.Sender())
	incidentsSvc := incidents.NewService(incStore, usersSvc, notifier)
	api.SetIncidents(incidentsSvc)

	// No global read/write timeouts: the push channel holds connections
	// open indefinitely and manages its own deadlines.
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	var grpcSrv *httpapi.GRPCHealthServer
	if grpcAddr != "" {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			fatal("listen grpc", err)
		}
		grpcSrv = httpapi.NewGRPCHealthServer()
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				fatal("grpc serve", err)
			}
		}()
	}

	go func() {
		obs.LogEntry(map[string]any{
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
			"level": "info",
			"msg":   "listening",
			"addr":  addr,
		})
		obs.SetReady(true)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("serve", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	obs.SetReady(false)
	if grpcSrv != nil {
		grpcSrv.SetNotServing()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	api.CloseConnections()
	if err := srv.Shutdown(ctx); err != nil {
		obs.LogEntry(map[string]any{
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
			"level": "error",
			"msg":   "shutdown",
			"error": err.Error(),
		})
	}
	if grpcSrv != nil {
		grpcSrv.Stop()
	}
	if db != nil {
		_ = db.Close()
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatal(msg string, err error) {
	obs.LogEntry(map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": "fatal",
		"msg":   msg,
		"error": err.Error(),
	})
	os.Exit(1)
}
