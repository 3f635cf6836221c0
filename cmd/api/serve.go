package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/omegashop/storefront/internal/auth"
	"github.com/omegashop/storefront/internal/config"
	"github.com/omegashop/storefront/internal/database"
	"github.com/omegashop/storefront/internal/handlers"
	"github.com/omegashop/storefront/internal/routes"
	"github.com/omegashop/storefront/internal/services"
	"github.com/omegashop/storefront/internal/storage"
	"github.com/omegashop/storefront/internal/store"
	"github.com/omegashop/storefront/internal/store/memory"
	"github.com/omegashop/storefront/internal/store/sqlstore"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "in-memory", Usage: "keep all data in memory instead of MySQL"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cfg, c.Bool("in-memory"))
		},
	}
}

// openStore returns the configured store and a function releasing it.
func openStore(cfg *config.Config, inMemory bool) (store.Store, func(), error) {
	if inMemory {
		log.Warn("running with the in-memory store, data is lost on exit")
		return memory.New(), func() {}, nil
	}
	if err := cfg.RequireDSN(); err != nil {
		return nil, nil, err
	}
	db, err := database.OpenDB(cfg.DBDSN, cfg.DBMaxOpenConns)
	if err != nil {
		return nil, nil, err
	}
	return sqlstore.New(db), func() { db.Close() }, nil
}

func serve(cfg *config.Config, inMemory bool) error {
	// 1. --- Storage ---
	st, closeStore, err := openStore(cfg, inMemory)
	if err != nil {
		return err
	}
	defer closeStore()

	images, err := storage.NewLocal(cfg.UploadDir, cfg.BaseURL)
	if err != nil {
		return err
	}

	// 2. --- Services ---
	now := services.Clock(time.Now)
	categories := services.NewCategoryService(st, now)
	reports := services.NewReportService(st, now)
	users := services.NewUserService(st, now)
	app := &handlers.Handlers{
		Users:      users,
		Catalog:    services.NewCatalogService(st, categories, images, now),
		Categories: categories,
		Cart:       services.NewCartService(st),
		Orders:     services.NewOrderService(st, now),
		Reports:    reports,
		Dashboard:  services.NewDashboardService(st, reports),
		Tokens:     auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL),
		Images:     images,
	}

	// 3. --- Router ---
	router := routes.SetupRouter(app, routes.Options{
		CORSOrigin:    cfg.CORSOrigin,
		SessionSecret: cfg.SessionSecret,
		UploadDir:     images.Dir(),
	})

	// 4. --- Start Server ---
	srv := &http.Server{
		Addr:              cfg.ServeAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.WithField("address", cfg.ServeAddress).Info("starting Omega Shop API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 5. --- Wait for a kill signal ---
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return errors.Wrap(err, "listen")
	case sig := <-signals:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Wrap(srv.Shutdown(ctx), "shutdown")
}
