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

	"golang.org/x/sync/errgroup"

	"estateflow/access"
	"estateflow/agency"
	"estateflow/auth"
	"estateflow/contact"
	"estateflow/db"
	"estateflow/lead"
	"estateflow/notification"
	"estateflow/obs"
	"estateflow/property"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs.Init()

	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	policy := access.DefaultPolicy()
	if path := os.Getenv("POLICY_FILE"); path != "" {
		policy, err = access.LoadPolicy(path)
		if err != nil {
			log.Fatalf("load policy %s: %v", path, err)
		}
	}

	grantStore := access.NewGrantStore(pool)
	evaluator := access.NewEvaluator(policy, grantStore)
	if err := evaluator.Reload(ctx); err != nil {
		log.Fatalf("load permission overrides: %v", err)
	}

	stream := notification.NewStream()
	notifRepo := notification.NewRepository(pool)
	dispatcher := notification.NewDispatcher(notifRepo, stream)

	authRepo := auth.NewRepository(pool)
	agencyService := agency.NewService(agency.NewRepository(pool), evaluator)
	propertyRepo := property.NewRepository(pool)
	leadRepo := lead.NewRepository(pool)

	server := &Server{
		authService:     auth.NewService(authRepo, jwtSecret),
		propertyService: property.NewService(pool, propertyRepo, evaluator, dispatcher),
		leadService:     lead.NewService(pool, leadRepo, propertyRepo, agencyService, authRepo, evaluator, dispatcher),
		feedService:     notification.NewService(notifRepo),
		grantService:    access.NewService(grantStore, evaluator),
		contactService:  contact.NewService(contact.NewRepository(pool), evaluator),
		agencyService:   agencyService,
		stream:          stream,
	}

	scanner := lead.NewReminderScanner(pool, leadRepo, dispatcher)
	if v := os.Getenv("REMINDER_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("parse REMINDER_INTERVAL: %v", err)
		}
		scanner.WithInterval(interval)
	}

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scanner.Run(ctx)
	})
	g.Go(func() error {
		log.Printf("api listening on %s", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("api: %v", err)
	}
}
