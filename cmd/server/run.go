package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"go.uber.org/zap"

	"opendoors.ai/internal/logging"
	"opendoors.ai/internal/observability"
	"opendoors.ai/internal/persistence/indexdb"
	persistlog "opendoors.ai/internal/persistence/log"
	"opendoors.ai/internal/persistence/snapshot"
	"opendoors.ai/internal/sim/doorlock"
	"opendoors.ai/internal/sim/prefab"
	"opendoors.ai/internal/sim/tuning"
	"opendoors.ai/internal/sim/world"
	"opendoors.ai/internal/sim/world/logic/mathx"
	"opendoors.ai/internal/transport/ws"
)

func runServer(parent context.Context, opts *serverOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	tune, err := tuning.Load(opts.tuningFile())
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		tune.Log.Level = opts.logLevel
	}
	logger, err := logging.New(logging.Config{Level: tune.Log.Level, Format: tune.Log.Format})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	templates, err := prefab.LoadTemplates(opts.prefabsDir())
	if err != nil {
		logger.Error("load prefabs", zap.Error(err))
		return err
	}

	worldDir := opts.worldDir()
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		return oops.With("dir", worldDir).Wrap(err)
	}

	// Audit sinks: JSONL is the source of truth, sqlite and the hub are views.
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer func() { _ = auditLog.Close() }()
	hub := ws.NewHub()
	sinks := world.MultiAudit{auditLog, hub}

	var idx *indexdb.SQLiteIndex
	if !opts.disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
		if err != nil {
			logger.Error("open audit index", zap.Error(err))
			return err
		}
		defer func() { _ = idx.Close() }()
		sinks = append(sinks, idx)
	}

	reg := observability.NewRegistry()
	w, err := buildWorld(opts, tune, templates, logger, reg, sinks)
	if err != nil {
		logger.Error("build world", zap.Error(err))
		return err
	}

	src := observability.Sources{
		Tick:           w.CurrentTick,
		ControlClients: hub.Clients,
		DroppedEvents:  hub.Dropped,
	}
	if idx != nil {
		src.IndexQueueDepth = func() int { return idx.Stats().QueueDepth }
		src.IndexDroppedTotal = func() uint64 { return idx.Stats().DroppedTotal }
	}
	observability.RegisterSources(reg, src)

	// The world loop outlives the signal context so the final snapshot can
	// still be taken through Do.
	worldCtx, stopWorld := context.WithCancel(context.Background())
	defer stopWorld()
	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(worldCtx) }()

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var ready atomic.Bool
	var obsErr <-chan error
	var obs *observability.Server
	if opts.metricsAddr != "" {
		obs = observability.NewServer(opts.metricsAddr, reg, ready.Load, logger)
		if obsErr, err = obs.Start(); err != nil {
			return err
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", ws.NewServer(w, hub, logger, ws.Config{AllowRemote: opts.allowRemote}).Handler())
	ln, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return oops.With("addr", opts.addr).Wrap(err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	httpErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()
	ready.Store(true)
	logger.Info("server started",
		zap.String("world", w.ID()),
		zap.String("addr", ln.Addr().String()),
		zap.Uint64("tick", w.CurrentTick()),
	)

	var failure error
	worldDone := false
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-runErr:
		worldDone = true
		failure = oops.Wrapf(err, "world loop stopped")
	case err := <-httpErr:
		failure = oops.Wrapf(err, "control server")
	case err := <-obsErr:
		failure = oops.Wrapf(err, "observability server")
	}
	ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
	if obs != nil {
		_ = obs.Stop(shutdownCtx)
	}

	if err := saveSnapshot(shutdownCtx, w, worldDir, idx); err != nil {
		logger.Error("final snapshot", zap.Error(err))
		if failure == nil {
			failure = err
		}
	}
	stopWorld()
	// The deferred index and audit closes must not race the loop's last writes.
	if !worldDone {
		<-runErr
	}
	if failure != nil {
		logger.Error("server stopped", zap.Error(failure))
	}
	return failure
}

// buildWorld creates the world, installs the door lock policy and restores the
// latest snapshot or places the configured spawns.
func buildWorld(opts *serverOptions, tune tuning.Tuning, templates map[string]*prefab.Template, logger *zap.Logger, reg prometheus.Registerer, audit world.AuditLogger) (*world.World, error) {
	w, err := world.New(world.WorldConfig{
		ID:         opts.worldID,
		TickRateHz: tune.TickRateHz,
		BoundaryR:  tune.WorldBoundaryR,
		Blocks:     tune.Blocks,
		Templates:  templates,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	if audit != nil {
		w.SetAuditLogger(audit)
	}
	w.InstallDoorPolicy(doorlock.Config{
		ReassertOnChanged:       tune.DoorPolicy.ReassertOnChanged,
		DisableRemoveOnReset:    !tune.DoorPolicy.RemoveEnabled(),
		DisableReconcileOnReset: !tune.DoorPolicy.ReconcileEnabled(),
		Logger:                  logger,
		Metrics:                 doorlock.NewMetrics(reg),
	})

	path := opts.snapshotPath
	if path == "" && opts.loadLatest {
		path = latestSnapshot(opts.worldDir())
	}
	if path != "" {
		snap, err := snapshot.ReadSnapshot(path)
		if err != nil {
			return nil, err
		}
		if err := w.ImportSnapshot(snap); err != nil {
			return nil, oops.With("snapshot", path).Wrap(err)
		}
		logger.Info("resumed from snapshot", zap.String("path", filepath.Base(path)), zap.Uint64("tick", w.CurrentTick()))
		return w, nil
	}

	for _, sp := range tune.Spawns {
		if err := w.SpawnPrefab(sp.ID, sp.Template, mathx.FromArray(sp.Origin), sp.Tags); err != nil {
			return nil, oops.With("spawn", sp.ID).Wrap(err)
		}
	}
	logger.Info("fresh world", zap.Int("spawns", len(tune.Spawns)))
	return w, nil
}

func saveSnapshot(ctx context.Context, w *world.World, worldDir string, idx *indexdb.SQLiteIndex) error {
	var snap snapshot.SnapshotV1
	if err := w.Do(ctx, func() { snap = w.ExportSnapshot() }); err != nil {
		return err
	}
	path := snapshotPath(worldDir, snap.Header.Tick)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return err
	}
	if idx != nil {
		idx.RecordSnapshot(path, snap)
	}
	return nil
}
