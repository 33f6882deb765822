package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"clinic-scheduler/internal/config"
	"clinic-scheduler/internal/events"
	"clinic-scheduler/internal/grpcweb"
	"clinic-scheduler/internal/handler"
	"clinic-scheduler/internal/kv"
	"clinic-scheduler/internal/logging"
	"clinic-scheduler/internal/middleware"
	"clinic-scheduler/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.Setup("clinic-scheduler", cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openKV(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("store opened", "driver", cfg.Store.Driver)

	var pub events.Publisher = events.Noop{}
	if cfg.NATS.URL != "" {
		np, err := events.NewNatsPublisher(cfg.NATS.URL, log)
		if err != nil {
			return err
		}
		pub = np
		log.Info("publishing events to nats", "url", cfg.NATS.URL)
	}
	defer pub.Close()

	st := store.New(db, store.WithLogger(log))
	h := handler.New(st,
		handler.WithPublisher(pub),
		handler.WithLogger(log),
		handler.WithSessionTTL(cfg.Auth.SessionTTL),
	)

	if cfg.Seed.AdminEmail != "" {
		created, err := h.SeedAdmin(ctx, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword, cfg.Seed.AdminName)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		if created {
			log.Info("seeded superadmin", "email", cfg.Seed.AdminEmail)
		}
	}

	login := handler.FullMethod("Login")
	rl := middleware.NewRateLimiter(cfg.Auth.LoginRPS, cfg.Auth.LoginBurst)
	go rl.Run(ctx)

	srv := grpc.NewServer(
		grpc.ForceServerCodec(handler.Codec{}),
		grpc.ChainUnaryInterceptor(
			middleware.RateLimit(rl, login),
			middleware.Auth(st, log, login),
		),
	)
	handler.Register(srv, h)

	lis, err := net.Listen("tcp", ":"+cfg.App.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	errc := make(chan error, 2)
	go func() {
		log.Info("grpc listening", "port", cfg.App.Port)
		errc <- srv.Serve(lis)
	}()

	var web *http.Server
	if cfg.App.WebPort != "" {
		conn, err := grpc.NewClient("localhost:"+cfg.App.Port, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("bridge dial: %w", err)
		}
		defer conn.Close()

		web = &http.Server{
			Addr:              ":" + cfg.App.WebPort,
			Handler:           grpcweb.New(conn, handler.ServiceName, log).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("grpc-web listening", "port", cfg.App.WebPort)
			if err := web.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errc:
		log.Error("listener failed", "err", err)
	}

	if web != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		web.Shutdown(sctx)
	}
	srv.GracefulStop()
	return err
}

func openKV(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return kv.NewMemory(), nil
	case config.DriverPostgres:
		return kv.OpenPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return kv.OpenSQLite(cfg.Store.SQLitePath)
	}
}
