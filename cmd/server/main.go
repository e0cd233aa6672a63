package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Clark-Hu/movies-db/internal/config"
	httpserver "github.com/Clark-Hu/movies-db/internal/http"
	"github.com/Clark-Hu/movies-db/internal/metrics"
	"github.com/Clark-Hu/movies-db/internal/repository"
	"github.com/Clark-Hu/movies-db/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := log.New(os.Stdout, "[movies-db] ", log.LstdFlags|log.Lshortfile)

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeOpts := store.Options{
		Driver:     store.Driver(cfg.DataDriver),
		FilePath:   cfg.DataFile,
		SQLitePath: cfg.SQLitePath,
		DBURL:      cfg.DBURL,
		Postgres: store.PostgresOptions{
			MaxConns:               int32(cfg.DBMaxConns),
			MinConns:               int32(cfg.DBMinConns),
			MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
			MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
			ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
			StatementCacheCapacity: cfg.DBStatementCache,
		},
		S3: store.S3Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Key:             cfg.S3Key,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PathStyle:       cfg.S3PathStyle,
		},
		Logger: logger,
	}

	persister, err := store.Open(openCtx, storeOpts)
	if err != nil {
		log.Fatalf("open %s storage: %v", cfg.DataDriver, err)
	}
	defer persister.Close()

	movies := repository.New(persister, repository.Options{Logger: logger})
	if err := movies.Load(openCtx); err != nil {
		persister.Close()
		log.Fatalf("load collection: %v", err)
	}

	collector := metrics.New()
	collector.SetRecords(movies.Len())
	server := httpserver.New(cfg, movies, collector, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			log.Printf("server error: %v", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("graceful shutdown error: %v", err)
	}
	if err := movies.Persist(shutdownCtx); err != nil {
		log.Printf("final persist: %v", err)
	}
}
