package world

import (
	"errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

type AuditEntry struct {
	ID      string         `json:"id"`
	Tick    uint64         `json:"tick"`
	WorldID string         `json:"world_id"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"` // e.g. "DOOR_LOCK"
	Pos     [3]int         `json:"pos"`
	Reason  string         `json:"reason,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// MultiAudit fans entries out to several sinks. Every sink sees every entry;
// the errors are joined.
type MultiAudit []AuditLogger

func (m MultiAudit) WriteAudit(e AuditEntry) error {
	var errs []error
	for _, l := range m {
		if l == nil {
			continue
		}
		if err := l.WriteAudit(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// audit records a change caused by the operation running under withCause.
func (w *World) audit(action string, pos Vec3i, details map[string]any) {
	w.auditAs("SYSTEM", action, pos, details)
}

func (w *World) auditAs(actor, action string, pos Vec3i, details map[string]any) {
	if w.auditLogger == nil {
		return
	}
	entry := AuditEntry{
		ID:      ulid.Make().String(),
		Tick:    w.tick.Load(),
		WorldID: w.cfg.ID,
		Actor:   actor,
		Action:  action,
		Pos:     pos.ToArray(),
		Reason:  w.cause,
		Details: details,
	}
	if err := w.auditLogger.WriteAudit(entry); err != nil {
		w.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}
