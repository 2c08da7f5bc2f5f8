package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rdysatrio/go-flash-reserve/internal/checkout"
	"github.com/rdysatrio/go-flash-reserve/internal/config"
	"github.com/rdysatrio/go-flash-reserve/internal/holds"
	"github.com/rdysatrio/go-flash-reserve/internal/httpx"
	kafkax "github.com/rdysatrio/go-flash-reserve/internal/kafka"
	"github.com/rdysatrio/go-flash-reserve/internal/logx"
	"github.com/rdysatrio/go-flash-reserve/internal/orders"
	"github.com/rdysatrio/go-flash-reserve/internal/postgres"
	"github.com/rdysatrio/go-flash-reserve/internal/redisx"
	"github.com/rdysatrio/go-flash-reserve/internal/reserve"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.ServiceName)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB (stock ledger)
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	// Redis (reservation store)
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	store, err := holds.NewStore(ctx, rdb)
	if err != nil {
		log.Fatal().Err(err).Msg("load hold scripts")
	}

	// Kafka producers
	pDone := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicCheckoutCompleted, 1024, log)
	pDone.Start(ctx)
	pStuck := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicCheckoutIncomplete, 1024, log)
	pStuck.Start(ctx)

	// Services & handler
	repo := &orders.Repo{DB: db}
	rsv := &reserve.Service{
		Holds:   store,
		Catalog: repo,
		Users:   repo,
		TTL:     cfg.HoldTTL,
		Log:     log,
	}
	chk := &checkout.Service{
		Holds:       store,
		Ledger:      repo,
		Completed:   pDone,
		Incomplete:  pStuck,
		ServiceName: cfg.ServiceName,
		Log:         log,
	}

	router := httpx.NewRouter(log)
	h := &httpx.ReserveHandler{
		Reserve:  rsv,
		Checkout: chk,
		Repo:     repo,
		Redis:    rdb,
		Log:      log,
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pDone.Close() // tutup inbox -> flush & close writer
	pStuck.Close()
	pDone.WaitClosed()
	pStuck.WaitClosed()
	cancel()
}
