package storage

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"respondr/internal/domain"
	"respondr/internal/observability"
)

type State string

const (
	PrimaryHealthy State = "primary-healthy"
	FallbackActive State = "fallback-active"
	Emergency      State = "emergency"
)

// Manager implements Backend over a primary and a fallback, failing over on
// operation errors and switching back when the background probe sees the
// primary recover. Callers only ever see operation success or failure; which
// backend served them is logged and counted, never returned.
//
// Writes made during a fallback window stay in the backend that took them.
// Get therefore falls through to the other backends on a miss and List merges
// across them; a full reconciliation step is deliberately out of scope.
type Manager struct {
	primary  Backend
	fallback Backend

	// NewEmergency builds the in-memory backend of last resort on demand.
	newEmergency func() Backend

	probeInterval time.Duration
	probeTimeout  time.Duration
	opAttempts    int

	mu        sync.RWMutex
	state     State
	emergency Backend
}

type ManagerOptions struct {
	Fallback      Backend
	NewEmergency  func() Backend
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	// OpAttempts is the bounded per-backend retry before failing over.
	OpAttempts int
}

func NewManager(primary Backend, opts ManagerOptions) *Manager {
	m := &Manager{
		primary:       primary,
		fallback:      opts.Fallback,
		newEmergency:  opts.NewEmergency,
		probeInterval: opts.ProbeInterval,
		probeTimeout:  opts.ProbeTimeout,
		opAttempts:    opts.OpAttempts,
		state:         PrimaryHealthy,
	}
	if m.probeInterval <= 0 {
		m.probeInterval = 15 * time.Second
	}
	if m.probeTimeout <= 0 {
		m.probeTimeout = 2 * time.Second
	}
	if m.opAttempts <= 0 {
		m.opAttempts = 2
	}
	return m
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Run drives the health probe until ctx is done. It only reads backend
// health; in-flight operations are never blocked by it.
func (m *Manager) Run(ctx context.Context) {
	t := time.NewTicker(m.probeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Probe(ctx)
		}
	}
}

// Probe checks the unhealthy backends and promotes on recovery. Exported so
// tests and the readiness endpoint can drive it directly.
func (m *Manager) Probe(ctx context.Context) {
	st := m.State()
	if st == PrimaryHealthy {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()
	if err := m.primary.Ping(pctx); err == nil {
		m.transition(st, PrimaryHealthy)
		return
	}
	if st == Emergency && m.fallback != nil {
		if err := m.fallback.Ping(pctx); err == nil {
			m.transition(st, FallbackActive)
		}
	}
}

func (m *Manager) transition(from, to State) {
	m.mu.Lock()
	if m.state != from {
		m.mu.Unlock()
		return
	}
	m.state = to
	m.mu.Unlock()
	slog.Info("storage backend transition", "from", string(from), "to", string(to))
	observability.Failovers.WithLabelValues(string(from), string(to)).Inc()
}

// active returns the backend for the current state, building the emergency
// store the first time it is needed.
func (m *Manager) active() (State, Backend, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case FallbackActive:
		return m.state, m.fallback, "fallback"
	case Emergency:
		if m.emergency == nil && m.newEmergency != nil {
			m.emergency = m.newEmergency()
		}
		return m.state, m.emergency, "emergency"
	}
	return m.state, m.primary, "primary"
}

// passthrough reports errors that reflect the request, not backend health.
func passthrough(ctx context.Context, err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, domain.ErrTextImmutable) || ctx.Err() != nil
}

func (m *Manager) do(ctx context.Context, op string, fn func(Backend) error) error {
	for {
		st, b, name := m.active()
		if b == nil {
			m.demote(st)
			if st == Emergency {
				return errors.New("no storage backend available")
			}
			continue
		}

		var err error
		for attempt := 0; attempt < m.opAttempts; attempt++ {
			if err = fn(b); err == nil || passthrough(ctx, err) {
				observability.StorageOps.WithLabelValues(op, name, "ok").Inc()
				return err
			}
		}
		observability.StorageOps.WithLabelValues(op, name, "error").Inc()
		slog.Warn("storage operation failed, failing over", "op", op, "backend", name, "err", err)

		if st == Emergency {
			// Nothing left to fail over to.
			return err
		}
		m.demote(st)
	}
}

func (m *Manager) demote(from State) {
	switch from {
	case PrimaryHealthy:
		if m.fallback != nil {
			m.transition(from, FallbackActive)
		} else {
			m.transition(from, Emergency)
		}
	case FallbackActive:
		m.transition(from, Emergency)
	}
}

func (m *Manager) Upsert(ctx context.Context, rec domain.ResponderMessage) error {
	return m.do(ctx, "upsert", func(b Backend) error { return b.Upsert(ctx, rec) })
}

// Get reads through: a miss on the active backend falls through to the other
// configured backends so records written during a failover window stay
// reachable.
func (m *Manager) Get(ctx context.Context, id string) (domain.ResponderMessage, bool, error) {
	var rec domain.ResponderMessage
	var found bool
	err := m.do(ctx, "get", func(b Backend) error {
		var err error
		rec, found, err = b.Get(ctx, id)
		return err
	})
	if err != nil || found {
		return rec, found, err
	}
	for _, b := range m.others() {
		if r, ok, err := b.Get(ctx, id); err == nil && ok {
			return r, true, nil
		}
	}
	return domain.ResponderMessage{}, false, nil
}

// others lists the configured backends that are not currently active.
func (m *Manager) others() []Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Backend
	if m.state != PrimaryHealthy {
		out = append(out, m.primary)
	}
	if m.fallback != nil && m.state != FallbackActive {
		out = append(out, m.fallback)
	}
	if m.emergency != nil && m.state != Emergency {
		out = append(out, m.emergency)
	}
	return out
}

// List merges results across the configured backends, keyed by id with the
// active backend winning, so records written during a fallback window stay
// listed after the primary comes back.
func (m *Manager) List(ctx context.Context, groupID string, includeDeleted bool) ([]domain.ResponderMessage, error) {
	var out []domain.ResponderMessage
	err := m.do(ctx, "list", func(b Backend) error {
		var err error
		out, err = b.List(ctx, groupID, includeDeleted)
		return err
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(out))
	for _, r := range out {
		seen[r.ID] = struct{}{}
	}
	for _, b := range m.others() {
		recs, err := b.List(ctx, groupID, includeDeleted)
		if err != nil {
			continue
		}
		for _, r := range recs {
			if _, ok := seen[r.ID]; ok {
				continue
			}
			seen[r.ID] = struct{}{}
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	return out, nil
}

func (m *Manager) SoftDelete(ctx context.Context, id string) error {
	return m.do(ctx, "soft_delete", func(b Backend) error { return b.SoftDelete(ctx, id) })
}

func (m *Manager) Undelete(ctx context.Context, id string) error {
	return m.do(ctx, "undelete", func(b Backend) error { return b.Undelete(ctx, id) })
}

func (m *Manager) Purge(ctx context.Context, id string) error {
	return m.do(ctx, "purge", func(b Backend) error { return b.Purge(ctx, id) })
}

func (m *Manager) Ping(ctx context.Context) error {
	_, b, _ := m.active()
	if b == nil {
		return errors.New("no storage backend available")
	}
	return b.Ping(ctx)
}
