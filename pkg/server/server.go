package server

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ebobo/hilink_prod_go/pkg/hilink"
	"github.com/ebobo/hilink_prod_go/pkg/metrics"
)

const defaultInfoTimeout = 5 * time.Second

// Store is what the server needs from persistence
type Store interface {
	hilink.CredentialStore
	hilink.HistoryStore
}

// Server takes care of instantiating and running service and other dependencies.
type Server struct {
	httpListenAddr string
	httpStarted    *sync.WaitGroup
	httpStopped    *sync.WaitGroup
	ctx            context.Context
	cancel         context.CancelFunc
	store          Store
	modem          *hilink.Client
	log            *zap.Logger
	metrics        *metrics.Metrics
	gatherer       prometheus.Gatherer
	infoTimeout    time.Duration
}

// Config is the server configuration
type Config struct {
	HTTPListenAddr string
	Store          Store
	Modem          *hilink.Client
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	// InfoTimeout bounds the info endpoint before it answers with a fallback status
	InfoTimeout time.Duration
}

func New(c Config) *Server {
	s := &Server{
		httpListenAddr: c.HTTPListenAddr,
		httpStarted:    &sync.WaitGroup{},
		httpStopped:    &sync.WaitGroup{},
		store:          c.Store,
		modem:          c.Modem,
		log:            c.Logger,
		metrics:        c.Metrics,
		gatherer:       c.Gatherer,
		infoTimeout:    c.InfoTimeout,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.infoTimeout <= 0 {
		s.infoTimeout = defaultInfoTimeout
	}
	return s
}

func (s *Server) Start() error {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	// Start the HTTP interface
	s.httpStarted.Add(1)
	s.httpStopped.Add(1)
	err := s.startHTTP()
	if err != nil {
		return err
	}
	s.httpStarted.Wait()

	return nil
}

func (s *Server) Shutdown() {
	s.log.Info("server shut down")
	if s.cancel != nil {
		s.cancel()
	}
	s.httpStopped.Wait()
}
