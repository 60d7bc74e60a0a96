package world

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"opendoors.ai/internal/sim/doorlock"
	"opendoors.ai/internal/sim/prefab"
)

const vaultYAML = `
name: vault
tags: [clear]
size: [8, 1, 4]
blocks:
  - {pos: [0, 0, 0], block: STONE}
  - {pos: [1, 0, 0], block: DOOR_SECURE, meta: 4}
  - {pos: [2, 0, 0], block: HATCH_SECURE, meta: 5}
  - {pos: [3, 0, 0], block: GATE_SECURE, meta: 1}
  - {pos: [4, 0, 0], block: CHEST}
switches:
  - {pos: [5, 0, 1], links: [[1, 0, 0]]}
`

var (
	vaultDoor  = Vec3i{X: 1} // closed, template locked
	vaultHatch = Vec3i{X: 2} // open, template locked
	vaultGate  = Vec3i{X: 3} // open, template unlocked
	vaultChest = Vec3i{X: 4}
	vaultLever = Vec3i{X: 5, Z: 1}
)

type auditRecorder struct {
	entries []AuditEntry
}

func (r *auditRecorder) WriteAudit(e AuditEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *auditRecorder) actions(action string) []AuditEntry {
	var out []AuditEntry
	for _, e := range r.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	w       *World
	r       *doorlock.Reconciler
	metrics *doorlock.Metrics
	audits  *auditRecorder
}

func newFixture(t *testing.T, policy doorlock.Config) fixture {
	t.Helper()
	tpl, err := prefab.ParseTemplate([]byte(vaultYAML))
	require.NoError(t, err)

	w, err := New(WorldConfig{
		ID:         "test",
		TickRateHz: 20,
		BoundaryR:  256,
		Templates:  map[string]*prefab.Template{tpl.Name: tpl},
	})
	require.NoError(t, err)

	rec := &auditRecorder{}
	w.SetAuditLogger(rec)

	policy.Metrics = doorlock.NewMetrics(prometheus.NewRegistry())
	r := w.InstallDoorPolicy(policy)
	return fixture{w: w, r: r, metrics: policy.Metrics, audits: rec}
}

func (f fixture) door(t *testing.T, pos Vec3i) DoorInfo {
	t.Helper()
	d, err := f.w.DoorState(pos)
	require.NoError(t, err)
	return d
}
