package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	httpapi "smartbill/agg-svc/internal/api/http"
	"smartbill/agg-svc/internal/service"
	"smartbill/agg-svc/internal/storage"
	"smartbill/config"
)

type Config struct {
	HTTPAddr      string `envconfig:"HTTP_ADDR" default:":8082"`
	ConsumerGroup string `envconfig:"CONSUMER_GROUP" default:"agg-svc-consumer"`

	Redis config.Redis `envconfig:"REDIS"`
	Kafka config.Kafka `envconfig:"KAFKA"`
	Log   config.Log   `envconfig:"LOG"`
}

func newServer(cfg Config, store service.StoreInterface, logger *log.Entry) *http.Server {
	handler := httpapi.NewHandler(service.NewReportService(store), logger)
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func run(ctx context.Context, cfg Config, logger *log.Entry) error {
	rdb := config.MustInitRedis(cfg.Redis)
	defer rdb.Close()

	reader := config.NewKafkaReader(cfg.Kafka, cfg.ConsumerGroup)
	defer reader.Close()

	store := storage.NewStore(rdb)
	consumer := service.NewConsumer(reader, store, logger.WithField("component", "consumer"))
	srv := newServer(cfg, store, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Start(gctx)
	})
	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("Aggregation Service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func main() {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	logger := config.NewLogger(cfg.Log, "agg-svc")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("agg-svc exited")
	}
}
