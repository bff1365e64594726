package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cityofzion/faucetd/internal/core/application"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

type Service interface {
	Start() error
	Stop()
}

type Config struct {
	Host     string
	Port     uint32
	AppSvc   application.Service
	AskRate  float64
	AskBurst int
}

func (c Config) Validate() error {
	if c.AppSvc == nil {
		return fmt.Errorf("missing app service")
	}
	if c.Port == 0 {
		return fmt.Errorf("missing port")
	}
	if c.AskRate <= 0 || c.AskBurst < 1 {
		return fmt.Errorf("invalid ask rate limit settings")
	}
	return nil
}

func (c Config) address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type service struct {
	config     Config
	server     *http.Server
	askLimiter *rateLimiter
}

func NewService(svcConfig Config) (Service, error) {
	if err := svcConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %s", err)
	}

	handler := newHandler(svcConfig.AppSvc)
	askLimiter := newRateLimiter(svcConfig.AskRate, svcConfig.AskBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handler.index)
	mux.HandleFunc("GET /index.html", handler.index)
	mux.Handle("POST /ask", askLimiter.wrap(http.HandlerFunc(handler.ask)))
	mux.HandleFunc("GET /success", handler.success)
	mux.HandleFunc("GET /about", handler.about)
	mux.HandleFunc("GET /healthz", handler.healthz)
	mux.Handle("GET /static/", http.FileServerFS(staticFS))
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    svcConfig.address(),
		Handler: mux,
	}

	return &service{config: svcConfig, server: server, askLimiter: askLimiter}, nil
}

func (s *service) Start() error {
	if err := s.config.AppSvc.Start(); err != nil {
		return fmt.Errorf("failed to start app service: %s", err)
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("web server exited")
		}
	}()

	log.Infof("started listening at %s", s.config.address())
	return nil
}

func (s *service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// nolint
	s.server.Shutdown(ctx)
	s.askLimiter.stop()
	s.config.AppSvc.Stop()
	log.Debug("stopped web server")
}
