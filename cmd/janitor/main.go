package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rdysatrio/go-flash-reserve/internal/config"
	"github.com/rdysatrio/go-flash-reserve/internal/holds"
	"github.com/rdysatrio/go-flash-reserve/internal/janitor"
	kafkax "github.com/rdysatrio/go-flash-reserve/internal/kafka"
	"github.com/rdysatrio/go-flash-reserve/internal/logx"
	"github.com/rdysatrio/go-flash-reserve/internal/orders"
	"github.com/rdysatrio/go-flash-reserve/internal/postgres"
	"github.com/rdysatrio/go-flash-reserve/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.ServiceName + "-janitor")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	store, err := holds.NewStore(ctx, rdb)
	if err != nil {
		log.Fatal().Err(err).Msg("load hold scripts")
	}

	repo := &orders.Repo{DB: db}

	// sweep rekonsiliasi berkala
	sweeper := &janitor.Sweeper{
		Holds:    store,
		Catalog:  repo,
		Interval: cfg.SweepInterval,
		Log:      log,
	}
	go func() {
		log.Info().Dur("interval", cfg.SweepInterval).Msg("sweeper started")
		_ = sweeper.Run(ctx)
	}()

	// consumer event checkout (dua topic, dua consumer)
	ev := &janitor.Events{Redis: rdb, Log: log}
	group := getenv("JANITOR_GROUP", "reserve-janitor")
	workers := mustAtoi(os.Getenv("JANITOR_WORKERS"), "4")
	for _, topic := range []string{orders.TopicCheckoutCompleted, orders.TopicCheckoutIncomplete} {
		topic := topic
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, topic, workers, log)
		go func() {
			log.Info().Str("group", group).Str("topic", topic).Int("workers", workers).Msg("consumer started")
			if err := cons.Start(ctx, ev.HandleCheckout); err != nil {
				log.Error().Err(err).Str("topic", topic).Msg("consumer exit")
				cancel()
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down janitor...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
