package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/arawak/scenes/internal/auth"
	"github.com/arawak/scenes/internal/config"
	"github.com/arawak/scenes/internal/gallery"
	"github.com/arawak/scenes/internal/httpapi"
	"github.com/arawak/scenes/internal/media"
	"github.com/arawak/scenes/internal/store"
	"github.com/arawak/scenes/migrations"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil)).With("version", version)

	db, err := sqlx.Open("mysql", cfg.DBDSN)
	if err != nil {
		logger.Error("failed to open db", "error", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := migrations.Up(cfg.DBDSN); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	storeSvc := store.New(db)
	mediaMgr := media.NewManager(cfg.StorageRoot)
	authSvc := auth.New(storeSvc, cfg.TokenSecret, cfg.TokenTTL)
	gallerySvc := gallery.New(storeSvc, mediaMgr, logger)

	if cfg.SeedFile != "" {
		if err := applySeed(cfg.SeedFile, storeSvc, authSvc, logger); err != nil {
			logger.Error("failed to apply seed file", "path", cfg.SeedFile, "error", err)
			os.Exit(1)
		}
	}

	router := httpapi.NewRouter(cfg, storeSvc, mediaMgr, gallerySvc, authSvc, logger)

	srv := &http.Server{Addr: cfg.Bind, Handler: router}
	go func() {
		logger.Info("server starting", "addr", cfg.Bind)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}
}

func applySeed(path string, storeSvc *store.Store, authSvc *auth.Service, logger *slog.Logger) error {
	seed, err := config.LoadSeed(path)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if seed.Admin.Username != "" {
		userID, err := authSvc.InitializeAdmin(ctx, seed.Admin.Username, seed.Admin.Password)
		if err != nil {
			return err
		}
		if userID != 0 {
			logger.Info("created initial admin user", "username", seed.Admin.Username)
		}
	}
	families := []struct {
		name  string
		modes []string
	}{
		{"collection", seed.DisplayModes.Collection},
		{"relationship", seed.DisplayModes.Relationship},
		{"asset_group", seed.DisplayModes.AssetGroup},
	}
	for _, fam := range families {
		if len(fam.modes) == 0 {
			continue
		}
		if err := storeSvc.EnsureDisplayModes(ctx, fam.name, fam.modes); err != nil {
			return err
		}
	}
	return nil
}
