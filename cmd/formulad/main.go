package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GGmuzem/formula-engine/internal/auth"
	"github.com/GGmuzem/formula-engine/internal/catalog"
	"github.com/GGmuzem/formula-engine/internal/config"
	"github.com/GGmuzem/formula-engine/internal/database"
	"github.com/GGmuzem/formula-engine/internal/engine"
	"github.com/GGmuzem/formula-engine/internal/logger"
	"github.com/GGmuzem/formula-engine/internal/plot"
	"github.com/GGmuzem/formula-engine/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "formulad: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	defer logger.Setup(logger.Config{Level: cfg.LogLevel})()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Каталог: встроенный или из файла с перезагрузкой при изменении
	var snap *catalog.Snapshot
	if cfg.CatalogPath == "" {
		snap, err = catalog.Default()
	} else {
		snap, err = catalog.LoadFile(cfg.CatalogPath)
	}
	if err != nil {
		return err
	}
	store := catalog.NewStore(snap)
	if cfg.CatalogPath != "" && cfg.CatalogWatch {
		if err := store.Watch(ctx, cfg.CatalogPath, log); err != nil {
			return err
		}
	}

	var db database.Database
	if cfg.UseMemoryDB {
		log.Info("database.memory")
		db = database.NewMemoryDB()
	} else {
		sqlite, err := database.New(cfg.DBPath)
		if err != nil {
			return err
		}
		db = sqlite
	}
	defer db.Close()
	if err := db.MigrateDB(); err != nil {
		return err
	}

	e := engine.New(engine.Options{
		Catalog:  store,
		DB:       db,
		Renderer: plot.NewRenderer(cfg.PlotSamples),
		PlotsDir: cfg.PlotsDir,
		Logger:   log,
	})
	defer e.Wait()

	authManager := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL)

	grpcServer := server.NewGRPC(e, authManager, log)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewHTTPServer(e, authManager, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 2)
	go func() {
		log.Info("grpc.listening", "addr", cfg.GRPCAddr())
		errs <- server.ServeGRPC(grpcServer, cfg.GRPCAddr())
	}()
	go func() {
		log.Info("http.listening", "addr", cfg.HTTPAddr, "formulas", len(store.Snapshot().FormulaSlugs()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("formulad.shutdown")
	case err = <-errs:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	return err
}
