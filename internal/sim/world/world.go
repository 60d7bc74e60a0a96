package world

import (
	"sync"
	"sync/atomic"

	"github.com/samber/oops"
	"go.uber.org/zap"

	"opendoors.ai/internal/sim/prefab"
	"opendoors.ai/internal/sim/tuning"
	"opendoors.ai/internal/sim/world/logic/mathx"
	"opendoors.ai/internal/sim/world/terrain/store"
)

type Vec3i = mathx.Vec3i

type WorldConfig struct {
	ID         string
	TickRateHz int
	BoundaryR  int

	Blocks    []tuning.BlockDef
	Templates map[string]*prefab.Template

	Logger *zap.Logger
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg     WorldConfig
	log     *zap.Logger
	palette *Palette

	tick atomic.Uint64

	chunks   *store.ChunkStore
	prefabs  *prefab.Registry
	switches map[Vec3i]*Switch

	hooks Hooks

	// cause tags audit entries with the operation currently running.
	cause string

	do       chan doReq
	stop     chan struct{}
	stopOnce sync.Once

	auditLogger AuditLogger
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

func New(cfg WorldConfig) (*World, error) {
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 5
	}
	if len(cfg.Blocks) == 0 {
		cfg.Blocks = tuning.Defaults().Blocks
	}
	pal, err := NewPalette(cfg.Blocks)
	if err != nil {
		return nil, err
	}
	for name, t := range cfg.Templates {
		if err := pal.checkTemplate(t); err != nil {
			return nil, oops.With("template", name).Wrap(err)
		}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &World{
		cfg:     cfg,
		log:     log.Named("world"),
		palette: pal,
		chunks: store.NewChunkStore(store.WorldGen{
			BoundaryR: cfg.BoundaryR,
			Air:       pal.Air(),
		}),
		prefabs:  prefab.NewRegistry(),
		switches: map[Vec3i]*Switch{},
		do:       make(chan doReq, 64),
		stop:     make(chan struct{}),
	}, nil
}

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int { return w.cfg.TickRateHz }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Palette() *Palette { return w.palette }

// Hooks exposes the lifecycle hooks for policy components to subscribe to.
func (w *World) Hooks() *Hooks { return &w.hooks }

func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }

// withCause runs fn with audit entries tagged by cause. Nested calls keep the
// outermost cause.
func (w *World) withCause(cause string, fn func()) {
	if w.cause != "" {
		fn()
		return
	}
	w.cause = cause
	defer func() { w.cause = "" }()
	fn()
}
