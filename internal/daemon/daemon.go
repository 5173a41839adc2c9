package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"reelcast/internal/api"
	"reelcast/internal/config"
	"reelcast/internal/deps"
	"reelcast/internal/logging"
	"reelcast/internal/pipeline"
	"reelcast/internal/store"
)

// shutdownGrace bounds how long running stages get to observe cancellation.
const shutdownGrace = 30 * time.Second

// Daemon serves the project API and owns the pipeline lifecycle.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	pipeline *pipeline.Controller
	server   *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	DatabasePath string
	LockFilePath string
	APIAddress   string
	Dependencies []deps.Status
}

// New constructs a daemon around an open store and controller.
func New(cfg *config.Config, st *store.Store, ctl *pipeline.Controller, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || ctl == nil {
		return nil, errors.New("daemon requires config, store, and pipeline controller")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		pipeline: ctl,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	handler := api.NewRouter(ctl, api.Options{
		Token:  cfg.Paths.APIToken,
		Health: d.Health,
		Logger: logger,
	})
	d.server = newAPIServer(cfg.Paths.APIBind, handler, logger)
	return d, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (d *Daemon) Handler() http.Handler {
	return d.server.server.Handler
}

// Start acquires the daemon lock, reconciles interrupted work, and begins
// serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another reelcast daemon is already serving %s", d.cfg.Paths.RootDir)
	}

	projects, segments, err := d.store.ReconcileInterrupted(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("reconcile interrupted work: %w", err)
	}
	if projects > 0 || segments > 0 {
		logging.WarnWithContext(d.logger, "interrupted work marked failed", "reconcile_interrupted",
			logging.Int("projects", projects),
			logging.Int("segments", segments),
			logging.String(logging.FieldErrorHint, "restart the affected stages"),
			logging.String(logging.FieldImpact, "runs from the previous daemon were not resumed"),
		)
	}

	logFreeSpace(d.logger, d.cfg.Paths.RootDir)

	if err := d.server.start(); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("reelcast daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.server.address()),
	)
	return nil
}

// Stop halts the API, cancels pipeline work, and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.server.stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := d.pipeline.Shutdown(ctx); err != nil {
		logging.WarnWithContext(d.logger, "pipeline shutdown incomplete", "pipeline_shutdown_timeout",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "tool processes may still be exiting"),
			logging.String(logging.FieldImpact, "affected runs are reconciled on next start"),
		)
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("reelcast daemon stopped")
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		APIAddress:   d.server.address(),
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
}

// Health reports binary availability and store reachability for the API.
func (d *Daemon) Health(ctx context.Context) api.HealthResponse {
	statuses := deps.CheckBinaries(deps.Requirements(d.cfg))
	report := api.HealthResponse{
		Store:        "ok",
		Dependencies: make([]api.DependencyStatus, 0, len(statuses)),
	}
	for _, dep := range statuses {
		report.Dependencies = append(report.Dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	if err := d.store.Ping(ctx); err != nil {
		report.Store = "unreachable"
		report.StoreError = err.Error()
	}
	report.Status = "ok"
	if !report.Healthy() {
		report.Status = "degraded"
	}
	return report
}
