package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/audit"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/config"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/credential"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/product"
	productrepo "github.com/ovaphlow/pitchfork/service-backoffice/internal/product/repo"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/registry"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/router"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/setting"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/store"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/supplier"
	supplierrepo "github.com/ovaphlow/pitchfork/service-backoffice/internal/supplier/repo"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/token"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-backoffice/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-backoffice/pkg/database"
	"github.com/ovaphlow/pitchfork/service-backoffice/pkg/utilities"
)

func main() {
	// .env is optional; real environment variables win
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	lg, err := utilities.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-backoffice")

	db, err := database.Connect(cfg.Database)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, db.DB); err != nil {
			sugar.Fatalf("migrate: %v", err)
		}
		sugar.Info("migrations applied")
	}

	tokens, err := token.New(cfg.Token)
	if err != nil {
		sugar.Fatalf("token service: %v", err)
	}
	sugar.Infow("token service ready", "alg", cfg.Token.Algorithm, "ttl", tokens.TTL())
	m := metrics.New(nil)

	engine := store.New(db, registry.Default(), sugar)
	engine.StrictFilters = cfg.StrictFilters
	sugar.Infow("entities registered", "entities", engine.Registry().Names())

	users := user.NewService(
		userrepo.NewUserRepo(db),
		credential.BcryptHasher{Cost: cfg.Login.BcryptCost},
		tokens,
		audit.NewRecorder(db, sugar),
		sugar,
		cfg.Login,
	).WithObserver(m)
	products := product.NewService(engine, productrepo.NewProductRepo(db), sugar).WithObserver(m)

	handler := router.RegisterRoutes(sugar, router.Deps{
		Engine:    engine,
		Users:     users,
		Products:  products,
		Settings:  setting.NewService(engine),
		Suppliers: supplier.NewService(engine, supplierrepo.NewSupplierRepo(db), users, sugar),
		Observer:  m,
		Metrics:   m.Handler(),
	})
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("service is running; press Ctrl+C to stop", "addr", cfg.HTTPAddr)

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
