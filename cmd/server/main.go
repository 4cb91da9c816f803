// Command dk-server starts the DocKeeper HTTP API and its ops health endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/credentials"

	"github.com/and161185/doc-keeper/internal/config"
	"github.com/and161185/doc-keeper/internal/server/httpapi"
	"github.com/and161185/doc-keeper/internal/server/ops"
	"github.com/and161185/doc-keeper/internal/service"
	"github.com/and161185/doc-keeper/internal/session"
	"github.com/and161185/doc-keeper/internal/storage"
	"github.com/and161185/doc-keeper/internal/store"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// main parses configuration, opens the store and serves until SIGINT/SIGTERM.
func main() {
	cfg, err := config.Parse(os.Args[0], os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("opsAddr", cfg.OpsAddr),
		zap.String("dbDriver", cfg.DBDriver),
		zap.String("uploads", cfg.UploadsDir),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	st, err := store.Open(ctx, store.Options{
		Driver:   cfg.DBDriver,
		DSN:      cfg.DBDSN,
		RetryFor: cfg.DBRetry,
		Log:      logger,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	layout, err := storage.New(cfg.UploadsDir)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	// Services
	accounts := service.NewAccountService(st.Users)
	docs := service.NewDocumentService(layout, st.Logs, logger.Named("documents"), cfg.LogTail)
	tokens := service.NewTokens([]byte(cfg.JWTKey), cfg.AccessTTL)
	machine := session.NewMachine(accounts, cfg.MasterPassphrase)

	api := httpapi.New(httpapi.Deps{
		Accounts:       accounts,
		Docs:           docs,
		Machine:        machine,
		Tokens:         tokens,
		Catalog:        layout,
		SessionKey:     []byte(cfg.SessionKey),
		SecureCookie:   cfg.SecureCookie || cfg.TLS(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		LogTail:        cfg.LogTail,
		Log:            logger.Named("http"),
	})
	hs := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var (
		opsSrv *ops.Server
		opsLis net.Listener
	)
	if cfg.OpsAddr != "" {
		opts := ops.Options{Reflection: cfg.Dev}
		if cfg.TLS() {
			creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
			if err != nil {
				return fmt.Errorf("load TLS cert/key: %w", err)
			}
			opts.Creds = creds
		}
		opsLis, err = net.Listen("tcp", cfg.OpsAddr)
		if err != nil {
			return fmt.Errorf("listen ops: %w", err)
		}
		opsSrv = ops.New(logger.Named("ops"), opts)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening (http)", zap.String("addr", cfg.Addr), zap.Bool("tls", cfg.TLS()))
		var err error
		if cfg.TLS() {
			err = hs.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = hs.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	if opsSrv != nil {
		g.Go(func() error {
			logger.Info("listening (grpc health)", zap.String("addr", cfg.OpsAddr))
			return opsSrv.Serve(opsLis)
		})
		g.Go(func() error {
			opsSrv.Watch(gctx, 10*time.Second, st.Users.Ping)
			return nil
		})
	}

	// Wait for stop
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if opsSrv != nil {
			opsSrv.Stop(shutdownTimeout)
		}
		if err := hs.Shutdown(sctx); err != nil {
			_ = hs.Close()
		}
		return nil
	})

	return g.Wait()
}
