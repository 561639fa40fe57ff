package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"smartbill/api-gateway/internal/gateway"
	"smartbill/config"
)

type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	BillingSvcURL   string        `envconfig:"BILLING_SVC_URL" default:"http://localhost:8081"`
	AggSvcURL       string        `envconfig:"AGG_SVC_URL" default:"http://localhost:8082"`
	FrontendDir     string        `envconfig:"FRONTEND_DIR" default:"./frontend"`
	Tokens          []string      `envconfig:"GATEWAY_TOKENS"`
	UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"15s"`

	Log config.Log `envconfig:"LOG"`
}

func newHandler(cfg Config, client gateway.HTTPClient, logger *log.Entry) http.Handler {
	gw := gateway.NewGateway(gateway.Config{
		BillingSvcURL: cfg.BillingSvcURL,
		AggSvcURL:     cfg.AggSvcURL,
		FrontendDir:   cfg.FrontendDir,
	}, client, gateway.BearerTokens(cfg.Tokens), logger)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:8080", "http://127.0.0.1:8080", "*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(gw.SetupRoutes())
}

func main() {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	logger := config.NewLogger(cfg.Log, "api-gateway")
	if len(cfg.Tokens) == 0 {
		logger.Warn("GATEWAY_TOKENS is empty, API session guard disabled")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newHandler(cfg, &http.Client{Timeout: cfg.UpstreamTimeout}, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("API Gateway starting")
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

	if err := g.Wait(); err != nil {
		logger.WithError(err).Fatal("api-gateway exited")
	}
}
