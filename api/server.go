package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/playfinder/config"
	"github.com/meghashyamc/playfinder/db"
	"github.com/meghashyamc/playfinder/db/kvdb"
	"github.com/meghashyamc/playfinder/db/searchdb"
	"github.com/meghashyamc/playfinder/logger"
	"github.com/meghashyamc/playfinder/services/gateway"
	"github.com/meghashyamc/playfinder/services/index"
	"github.com/meghashyamc/playfinder/services/postcode"
	"github.com/meghashyamc/playfinder/services/search"
	"github.com/meghashyamc/playfinder/validation"
)

const shutdownTimeout = 10 * time.Second

type server struct {
	cfg        *config.Config
	router     *gin.Engine
	httpServer *http.Server
	logger     logger.Logger
	deps       *Dependencies
}

// Dependencies are the stores and services behind the HTTP API.
type Dependencies struct {
	KVDB          kvdb.DB
	SearchDB      searchdb.DB
	Listings      *db.ListingStore
	Gateway       *gateway.Gateway
	Geocoder      *postcode.Client
	Search        *search.Service
	Tracker       *search.Tracker
	Import        *index.Service
	Validator     *validation.Validator
	DefaultRadius float64
}

// Close releases the stores.
func (d *Dependencies) Close() error {
	return errors.Join(d.SearchDB.Close(), d.KVDB.Close())
}

// Run serves the API until ctx is cancelled or the process is interrupted.
func Run(ctx context.Context, cfg *config.Config, logger logger.Logger) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}

	s := &server{
		cfg:    cfg,
		logger: logger,
		deps:   deps,
	}
	s.setupRouter()
	serveErrC := s.setupHTTPServer()
	return s.setupGracefulShutdown(ctx, serveErrC)
}

// NewDependencies opens the stores and builds the services. The import
// service runs until ctx is cancelled.
func NewDependencies(ctx context.Context, cfg *config.Config, logger logger.Logger) (*Dependencies, error) {
	var err error
	deps := &Dependencies{DefaultRadius: cfg.GetDefaultRadiusMiles()}

	deps.KVDB, err = kvdb.New(logger, cfg)
	if err != nil {
		logger.Error("error creating kvDB", "err", err.Error())
		return nil, err
	}
	deps.SearchDB, err = searchdb.New(logger, cfg)
	if err != nil {
		logger.Error("error creating searchDB", "err", err.Error())
		deps.KVDB.Close()
		return nil, err
	}
	deps.Validator, err = validation.New(logger)
	if err != nil {
		logger.Error("error creating validator", "err", err.Error())
		deps.Close()
		return nil, err
	}

	deps.Listings = db.NewListingStore(logger, deps.SearchDB, deps.KVDB, cfg.GetMaxCandidates())
	deps.Gateway = gateway.New(logger, cfg.GetCacheTTL())
	deps.Geocoder = postcode.NewClient(logger, cfg.GetGeocoderBaseURL(),
		postcode.WithHTTPClient(&http.Client{Timeout: cfg.GetGeocoderTimeout()}),
		postcode.WithRateLimit(cfg.GetGeocoderRateLimit()),
		postcode.WithMemo(deps.KVDB),
	)
	deps.Search = search.New(logger, deps.Listings, deps.Geocoder, deps.Gateway,
		search.WithCacheTTL(cfg.GetCacheTTL()),
		search.WithMaxCandidates(cfg.GetMaxCandidates()),
		search.WithFeaturedLimit(cfg.GetFeaturedLimit()),
		search.WithTimezone(cfg.GetTimezone()),
	)
	deps.Tracker = search.NewTracker(cfg.GetMaxSessions(), cfg.GetSessionIdle())
	// fresh imports must not be hidden behind cached results
	deps.Import = index.New(ctx, logger, deps.Listings, deps.KVDB, index.WithOnComplete(deps.Gateway.ClearAll))

	return deps, nil
}

func (s *server) setupRouter() {
	router := newRouter()

	router.Use(loggingMiddleware(s.logger))

	setupRoutes(router, s.logger, s.deps)

	s.router = router
}

func (s *server) setupHTTPServer() <-chan error {

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.cfg.GetPort()),
		Handler:           s.router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpServer

	serveErrC := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "err", err.Error())
			serveErrC <- err
		}
		close(serveErrC)
	}()
	return serveErrC
}

func (s *server) setupGracefulShutdown(ctx context.Context, serveErrC <-chan error) error {

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-serveErrC:
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var shutdownErr error
	go func() {
		defer wg.Done()
		s.logger.Info("starting to shut down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error shutting down http server", "err", err.Error())
			shutdownErr = err
		}
		if err := s.deps.Close(); err != nil {
			s.logger.Error("error closing stores", "err", err.Error())
		}
		s.logger.Info("shut down http server successfully")
	}()

	wg.Wait()
	return errors.Join(serveErr, shutdownErr)
}
