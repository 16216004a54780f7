package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"

	"github.com/three-sisters-oyster/api/internal/cache"
	"github.com/three-sisters-oyster/api/internal/cart"
	"github.com/three-sisters-oyster/api/internal/config"
	"github.com/three-sisters-oyster/api/internal/database"
	"github.com/three-sisters-oyster/api/internal/notify"
	"github.com/three-sisters-oyster/api/internal/payment"
	"github.com/three-sisters-oyster/api/internal/router"
	"github.com/three-sisters-oyster/api/internal/service"
	"github.com/three-sisters-oyster/api/internal/ws"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("Unable to run migrations: %v", err)
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Unable to connect to redis: %v", err)
	}
	defer rdb.Close()

	queries := database.New(pool)
	carts := cart.NewStore(rdb)
	catalogCache := cache.NewRedis(rdb)
	payments := payment.NewStripe(cfg.StripeSecretKey)

	checkout := service.NewCheckoutService(pool, queries, func(db database.DBTX) service.CheckoutStore {
		return database.New(db)
	}, payments)

	hub := ws.NewHub()
	go hub.Run()

	dispatcher := notify.NewDispatcher(pool, func(db database.DBTX) notify.OutboxStore {
		return database.New(db)
	},
		notify.NewEmailSender(cfg.SendGridAPIKey, cfg.FromEmail, cfg.NotifyEmail),
		notify.NewDropshipSender(cfg.DropshipURL),
	)
	go dispatcher.Run(ctx)

	r := router.New(router.Deps{
		Config:   cfg,
		Queries:  queries,
		Carts:    carts,
		Cache:    catalogCache,
		Checkout: checkout,
		Hub:      hub,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Printf("ERROR: shutdown: %v", err)
		}
	}()

	log.Printf("Starting server on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
