// Package admin exposes the HTTP surface used to operate docsync: starting
// and inspecting backfill runs, index diagnostics and prometheus metrics.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/mycok/docsync/consumer/kafka"
	"github.com/mycok/docsync/document/store/es"
	"github.com/mycok/docsync/jobrun"
	"github.com/mycok/docsync/orchestrator"
)

//go:generate mockgen -package mocks -destination mocks/mocks.go github.com/mycok/docsync/service/admin RunManager,IndexStats,ClusterHealthAPI,ConsumerLagAPI,DeadLetterSummaryAPI

const (
	startEndpoint        = "/api/batch/historical-index/start"
	statusEndpoint       = "/api/batch/historical-index/status/{id}"
	latestStatusEndpoint = "/api/batch/historical-index/latest-status"
	stopEndpoint         = "/api/batch/historical-index/stop/{id}"
	healthEndpoint       = "/api/status/health"
	indexEndpoint        = "/api/status/index"
	clusterEndpoint      = "/api/status/cluster-health"
	consumerLagEndpoint  = "/api/status/kafka/consumer-groups/lag"
	dlqSummaryEndpoint   = "/api/status/kafka/dlq-summary"
	metricsEndpoint      = "/metrics"
)

// RunManager controls backfill runs. It is implemented by
// orchestrator.Orchestrator.
type RunManager interface {
	Start(ctx context.Context, params orchestrator.Params) (*jobrun.Run, error)
	Get(ctx context.Context, id uuid.UUID) (*jobrun.Run, error)
	ListRecent(ctx context.Context, limit int) ([]*jobrun.Run, error)
	Stop(ctx context.Context, id uuid.UUID) (*jobrun.Run, error)
}

// IndexStats reports the size of the search index.
type IndexStats interface {
	Count(ctx context.Context) (uint64, error)
}

// ClusterHealthAPI reports the health of the elasticsearch cluster.
type ClusterHealthAPI interface {
	ClusterHealth(ctx context.Context) (*es.ClusterHealth, error)
}

// ConsumerLagAPI reports how far the stream consumers trail their topics.
type ConsumerLagAPI interface {
	ConsumerLag(ctx context.Context) (*kafka.LagReport, error)
}

// DeadLetterSummaryAPI reports the contents of the dead-letter topics.
type DeadLetterSummaryAPI interface {
	DeadLetterSummary(ctx context.Context) ([]kafka.DeadLetterTopic, error)
}

// Config encapsulates the settings for the admin service.
type Config struct {
	// Controls backfill runs.
	Runs RunManager

	// Source of the index document count.
	Index IndexStats

	// Source of cluster health. Optional; the endpoint reports 501 when
	// not set.
	Cluster ClusterHealthAPI

	// Sources of the kafka diagnostics. Optional; their endpoints report
	// 501 when streaming is disabled.
	Lag         ConsumerLagAPI
	DeadLetters DeadLetterSummaryAPI

	// Metrics exposed on /metrics. Defaults to the prometheus default
	// gatherer.
	Gatherer prometheus.Gatherer

	// Address to listen on for incoming requests.
	ListenAddr string

	// Clock used to derive default launch keys.
	Clock clock.Clock

	// Logger for service events. A nil logger discards all output.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.Runs == nil {
		err = multierror.Append(err, fmt.Errorf("run manager has not been provided"))
	}

	if cfg.Index == nil {
		err = multierror.Append(err, fmt.Errorf("index stats API has not been provided"))
	}

	if cfg.ListenAddr == "" {
		err = multierror.Append(err, fmt.Errorf("listen address has not been provided"))
	}

	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}

	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

// Service is the admin HTTP service. It satisfies service.Service.
type Service struct {
	cfg    Config
	router *chi.Mux
}

// New returns an admin service for cfg.
func New(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("admin service: config validation failed: %w", err)
	}

	svc := &Service{cfg: cfg, router: chi.NewRouter()}

	svc.router.Post(startEndpoint, svc.startRun)
	svc.router.Get(statusEndpoint, svc.runStatus)
	svc.router.Get(latestStatusEndpoint, svc.latestRuns)
	svc.router.Post(stopEndpoint, svc.stopRun)
	svc.router.Get(healthEndpoint, svc.health)
	svc.router.Get(indexEndpoint, svc.indexStats)
	svc.router.Get(clusterEndpoint, svc.clusterHealth)
	svc.router.Get(consumerLagEndpoint, svc.consumerLag)
	svc.router.Get(dlqSummaryEndpoint, svc.deadLetterSummary)
	svc.router.Handle(metricsEndpoint, promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	return svc, nil
}

// Name implements service.Service.
func (svc *Service) Name() string { return "admin" }

// Run implements service.Service.
func (svc *Service) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", svc.cfg.ListenAddr)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	srv := &http.Server{
		Addr:    svc.cfg.ListenAddr,
		Handler: svc.router,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	svc.cfg.Logger.WithField("addr", l.Addr().String()).Info("started service")

	if err = srv.Serve(l); errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	return err
}

// ServeHTTP lets the service be mounted or tested without a listener.
func (svc *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	svc.router.ServeHTTP(w, r)
}

func (svc *Service) startRun(w http.ResponseWriter, r *http.Request) {
	launchKey := r.URL.Query().Get("launchKey")
	if launchKey == "" {
		launchKey = strconv.FormatInt(svc.cfg.Clock.Now().UnixMilli(), 10)
	}

	run, err := svc.cfg.Runs.Start(r.Context(), orchestrator.Params{LaunchKey: launchKey})
	switch {
	case errors.Is(err, orchestrator.ErrRunInProgress):
		svc.writeError(w, http.StatusConflict, "a run is already in progress", err)
	case errors.Is(err, orchestrator.ErrRunAlreadyCompleted):
		svc.writeError(w, http.StatusBadRequest, "the run has already completed and cannot be restarted", err)
	case errors.Is(err, orchestrator.ErrInvalidParams):
		svc.writeError(w, http.StatusBadRequest, "invalid run parameters", err)
	case err != nil:
		svc.cfg.Logger.WithField("err", err).Error("unable to start run")
		svc.writeError(w, http.StatusInternalServerError, "unable to start run", err)
	default:
		svc.writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"message":   "run requested",
			"runId":     run.ID,
			"launchKey": run.LaunchKey,
			"status":    run.Status,
		})
	}
}

func (svc *Service) runStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := svc.runID(w, r)
	if !ok {
		return
	}

	run, err := svc.cfg.Runs.Get(r.Context(), id)
	switch {
	case errors.Is(err, jobrun.ErrNotFound):
		svc.writeError(w, http.StatusNotFound, "run not found", err)
	case err != nil:
		svc.writeError(w, http.StatusInternalServerError, "unable to look up run", err)
	default:
		svc.writeJSON(w, http.StatusOK, run)
	}
}

func (svc *Service) latestRuns(w http.ResponseWriter, r *http.Request) {
	var limit int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var err error
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			svc.writeError(w, http.StatusBadRequest, "invalid limit", fmt.Errorf("limit %q is not a non-negative integer", raw))

			return
		}
	}

	runs, err := svc.cfg.Runs.ListRecent(r.Context(), limit)
	if err != nil {
		svc.writeError(w, http.StatusInternalServerError, "unable to list runs", err)

		return
	}

	if runs == nil {
		runs = []*jobrun.Run{}
	}

	svc.writeJSON(w, http.StatusOK, runs)
}

func (svc *Service) stopRun(w http.ResponseWriter, r *http.Request) {
	id, ok := svc.runID(w, r)
	if !ok {
		return
	}

	run, err := svc.cfg.Runs.Stop(r.Context(), id)
	switch {
	case errors.Is(err, jobrun.ErrNotFound):
		svc.writeError(w, http.StatusNotFound, "run not found", err)
	case errors.Is(err, orchestrator.ErrRunNotActive):
		svc.writeError(w, http.StatusConflict, "run is not active", err)
	case err != nil:
		svc.writeError(w, http.StatusInternalServerError, "unable to stop run", err)
	default:
		svc.writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"message": "stop requested",
			"runId":   run.ID,
		})
	}
}

func (svc *Service) health(w http.ResponseWriter, _ *http.Request) {
	svc.writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

func (svc *Service) indexStats(w http.ResponseWriter, r *http.Request) {
	count, err := svc.cfg.Index.Count(r.Context())
	if err != nil {
		svc.writeError(w, http.StatusInternalServerError, "unable to count documents", err)

		return
	}

	svc.writeJSON(w, http.StatusOK, map[string]uint64{"documentCount": count})
}

func (svc *Service) clusterHealth(w http.ResponseWriter, r *http.Request) {
	if svc.cfg.Cluster == nil {
		svc.writeError(w, http.StatusNotImplemented, "cluster health is only available for elasticsearch indexes", nil)

		return
	}

	health, err := svc.cfg.Cluster.ClusterHealth(r.Context())
	if err != nil {
		svc.writeError(w, http.StatusInternalServerError, "unable to fetch cluster health", err)

		return
	}

	svc.writeJSON(w, http.StatusOK, health)
}

func (svc *Service) consumerLag(w http.ResponseWriter, r *http.Request) {
	if svc.cfg.Lag == nil {
		svc.writeError(w, http.StatusNotImplemented, "consumer lag is only available while streaming is enabled", nil)

		return
	}

	report, err := svc.cfg.Lag.ConsumerLag(r.Context())
	if err != nil {
		svc.writeError(w, http.StatusInternalServerError, "unable to fetch consumer lag", err)

		return
	}

	svc.writeJSON(w, http.StatusOK, report)
}

func (svc *Service) deadLetterSummary(w http.ResponseWriter, r *http.Request) {
	if svc.cfg.DeadLetters == nil {
		svc.writeError(w, http.StatusNotImplemented, "dead-letter summary is only available while streaming is enabled", nil)

		return
	}

	summary, err := svc.cfg.DeadLetters.DeadLetterSummary(r.Context())
	if err != nil {
		svc.writeError(w, http.StatusInternalServerError, "unable to summarize dead-letter topics", err)

		return
	}

	svc.writeJSON(w, http.StatusOK, map[string]interface{}{"topics": summary})
}

func (svc *Service) runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		svc.writeError(w, http.StatusBadRequest, "invalid run ID", err)

		return uuid.Nil, false
	}

	return id, true
}

func (svc *Service) writeError(w http.ResponseWriter, status int, msg string, err error) {
	body := map[string]string{"error": msg}
	if err != nil {
		body["message"] = err.Error()
	}

	svc.writeJSON(w, status, body)
}

func (svc *Service) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		svc.cfg.Logger.WithField("err", err).Warn("unable to write response")
	}
}
