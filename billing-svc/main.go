package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	httpapi "smartbill/billing-svc/internal/api/http"
	"smartbill/billing-svc/internal/ledger"
	"smartbill/billing-svc/internal/service"
	"smartbill/billing-svc/internal/storage"
	"smartbill/config"
)

const shutdownTimeout = 10 * time.Second

type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8081"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	StoreDriver     string        `envconfig:"STORE_DRIVER" default:"memory"`
	EventsBroker    string        `envconfig:"EVENTS_BROKER" default:"none"`
	PublicBaseURL   string        `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
	StoreRetries    uint64        `envconfig:"STORE_RETRIES" default:"3"`
	RedisTxAttempts int           `envconfig:"REDIS_TX_ATTEMPTS" default:"10"`

	Database config.Postgres `envconfig:"DB"`
	Redis    config.Redis    `envconfig:"REDIS"`
	Kafka    config.Kafka    `envconfig:"KAFKA"`
	RabbitMQ config.RabbitMQ `envconfig:"RABBITMQ"`
	Log      config.Log      `envconfig:"LOG"`
}

// closers collects shutdown hooks for the connections opened at startup.
type closers []func() error

func (c closers) closeAll(logger *log.Entry) {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			logger.WithError(err).Warn("close resource")
		}
	}
}

func buildStore(cfg Config, logger *log.Entry) (ledger.Store, closers, error) {
	switch cfg.StoreDriver {
	case "memory":
		return storage.NewMemoryStore(), nil, nil
	case "postgres":
		db := config.MustInitPostgres(cfg.Database)
		if err := storage.Migrate(db.DB, logger); err != nil {
			db.Close()
			return nil, nil, err
		}
		return storage.NewPostgresStore(db), closers{db.Close}, nil
	case "redis":
		client := config.MustInitRedis(cfg.Redis)
		return storage.NewRedisStore(client, cfg.RedisTxAttempts), closers{client.Close}, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

// buildPublisher picks where billing events go. agg-svc reads Kafka only;
// the rabbitmq exchange serves external subscribers.
func buildPublisher(cfg Config) (service.EventPublisher, closers, error) {
	switch cfg.EventsBroker {
	case "", "none":
		return nil, nil, nil
	case "kafka":
		writer := config.NewKafkaWriter(cfg.Kafka)
		return storage.NewKafkaPublisher(writer), closers{writer.Close}, nil
	case "rabbitmq":
		conn := config.MustDialRabbitMQ(cfg.RabbitMQ)
		channel, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("open rabbitmq channel: %w", err)
		}
		publisher, err := storage.NewRabbitPublisher(channel, cfg.RabbitMQ.Exchange)
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		return publisher, closers{conn.Close, publisher.Close}, nil
	default:
		return nil, nil, fmt.Errorf("unknown EVENTS_BROKER %q", cfg.EventsBroker)
	}
}

func newServer(cfg Config, store ledger.Store, publisher service.EventPublisher, logger *log.Entry) *http.Server {
	tables := ledger.New(store, ledger.WithLogger(logger.WithField("component", "ledger")))
	billing := service.NewBillingService(tables, publisher,
		service.DefaultQRGenerator{BaseURL: cfg.PublicBaseURL},
		service.WithRetries(cfg.StoreRetries),
		service.WithLogger(logger.WithField("component", "service")),
	)
	router := httpapi.NewRouter(httpapi.NewHandler(billing, logger))

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           http.TimeoutHandler(router, cfg.RequestTimeout, `{"error":"request timed out"}`),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func serve(c *cli.Context) error {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return err
	}
	logger := config.NewLogger(cfg.Log, "billing-svc")

	store, storeClosers, err := buildStore(cfg, logger)
	if err != nil {
		return err
	}
	publisher, publisherClosers, err := buildPublisher(cfg)
	if err != nil {
		storeClosers.closeAll(logger)
		return err
	}
	defer append(storeClosers, publisherClosers...).closeAll(logger)
	if cfg.EventsBroker == "rabbitmq" {
		logger.Warn("agg-svc consumes Kafka only, daily reports will not include these events")
	}

	srv := newServer(cfg, store, publisher, logger)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithFields(log.Fields{
			"addr":   cfg.HTTPAddr,
			"store":  cfg.StoreDriver,
			"events": cfg.EventsBroker,
		}).Info("Billing Service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("Billing Service shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func migrate(c *cli.Context) error {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return err
	}
	logger := config.NewLogger(cfg.Log, "billing-svc")

	db := config.MustInitPostgres(cfg.Database)
	defer db.Close()
	return storage.Migrate(db.DB, logger)
}

func newApp(stdout io.Writer) *cli.App {
	return &cli.App{
		Name:      "billing-svc",
		Usage:     "restaurant table billing ledger",
		Writer:    stdout,
		ErrWriter: stdout,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: migrate,
			},
		},
		DefaultCommand: "serve",
	}
}

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.WithError(err).Fatal("billing-svc exited")
	}
}
