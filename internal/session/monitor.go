package session

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/clock"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// Monitor turns raw visibility and fullscreen signals into a debounced
// violation count. A bad signal opens a grace period for its signal kind; the
// matching good signal inside the window cancels it, otherwise one violation
// is confirmed. Reaching the maximum escalates once.
type Monitor struct {
	sched   clock.Scheduler
	signals Signals
	modals  ModalPresenter
	policy  config.Policy
	log     zerolog.Logger

	onLimit  func()
	onRecord func(kind model.IncidentKind, signal model.SignalKind, count int)

	mu        sync.Mutex
	active    bool
	escalated bool
	count     int
	token     uint64
	slots     map[model.SignalKind]*graceSlot
	unsubs    []func()
}

type graceSlot struct {
	token uint64
	timer clock.Timer
}

// MonitorDeps wires a Monitor to its environment.
type MonitorDeps struct {
	Scheduler clock.Scheduler
	Signals   Signals
	Modals    ModalPresenter
	Policy    config.Policy
	Logger    zerolog.Logger
	// OnLimit is called at most once, when the violation limit is reached or a
	// critical signal arrives.
	OnLimit func()
	// OnRecord receives every transition for the incident journal. May be nil.
	OnRecord func(kind model.IncidentKind, signal model.SignalKind, count int)
}

// NewMonitor creates an inactive monitor.
func NewMonitor(deps MonitorDeps) *Monitor {
	if deps.Modals == nil {
		deps.Modals = nopModals{}
	}
	if deps.OnRecord == nil {
		deps.OnRecord = func(model.IncidentKind, model.SignalKind, int) {}
	}
	if deps.Policy.MaxViolations < 1 {
		deps.Policy.MaxViolations = config.DefaultMaxViolations
	}
	return &Monitor{
		sched:    deps.Scheduler,
		signals:  deps.Signals,
		modals:   deps.Modals,
		policy:   deps.Policy,
		log:      deps.Logger.With().Str("component", "violation_monitor").Logger(),
		onLimit:  deps.OnLimit,
		onRecord: deps.OnRecord,
		slots:    make(map[model.SignalKind]*graceSlot, 2),
	}
}

// Activate attaches the two signal listeners. Calling it while active is a no-op.
func (m *Monitor) Activate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return
	}
	m.active = true
	m.unsubs = []func(){
		m.signals.OnVisibilityChange(m.handleVisibility),
		m.signals.OnFullscreenChange(m.handleFullscreen),
	}
}

// Deactivate detaches the listeners and cancels pending grace timers.
// Idempotent.
func (m *Monitor) Deactivate() {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	m.active = false
	hadPending := len(m.slots) > 0
	for kind, slot := range m.slots {
		slot.timer.Stop()
		delete(m.slots, kind)
	}
	unsubs := m.unsubs
	m.unsubs = nil
	m.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if hadPending {
		m.modals.Hide(ModalViolationWarning)
	}
}

// Count returns the number of confirmed violations.
func (m *Monitor) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Pending reports whether any signal kind is inside its grace period.
func (m *Monitor) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots) > 0
}

func (m *Monitor) handleVisibility(hidden bool) {
	if hidden {
		m.bad(model.SignalVisibility)
		return
	}
	m.good(model.SignalVisibility)
}

func (m *Monitor) handleFullscreen(active bool) {
	if !active {
		m.bad(model.SignalFullscreen)
		return
	}
	m.good(model.SignalFullscreen)
}

func (m *Monitor) bad(kind model.SignalKind) {
	m.mu.Lock()
	if !m.active || m.escalated {
		m.mu.Unlock()
		return
	}

	if kind == model.SignalFullscreen && m.policy.FullscreenCritical {
		m.escalated = true
		count := m.count
		m.mu.Unlock()

		m.log.Warn().Str("signal", string(kind)).Msg("Critical signal, forcing submission")
		m.onRecord(model.IncidentCriticalExit, kind, count)
		m.onLimit()
		return
	}

	if _, pending := m.slots[kind]; pending {
		m.mu.Unlock()
		return
	}

	m.token++
	tok := m.token
	slot := &graceSlot{token: tok}
	slot.timer = m.sched.After(m.policy.GracePeriod, func() { m.expire(kind, tok) })
	m.slots[kind] = slot
	count := m.count
	m.mu.Unlock()

	m.log.Warn().
		Str("signal", string(kind)).
		Dur("grace", m.policy.GracePeriod).
		Msg("Grace period started")
	m.modals.Show(ModalViolationWarning)
	m.onRecord(model.IncidentGraceStarted, kind, count)
}

func (m *Monitor) good(kind model.SignalKind) {
	m.mu.Lock()
	slot, pending := m.slots[kind]
	if !m.active || !pending {
		m.mu.Unlock()
		return
	}
	slot.timer.Stop()
	delete(m.slots, kind)
	remaining := len(m.slots)
	count := m.count
	m.mu.Unlock()

	m.log.Info().Str("signal", string(kind)).Msg("Recovered inside grace period")
	if remaining == 0 {
		m.modals.Hide(ModalViolationWarning)
	}
	m.onRecord(model.IncidentGraceCleared, kind, count)
}

func (m *Monitor) expire(kind model.SignalKind, tok uint64) {
	m.mu.Lock()
	slot, pending := m.slots[kind]
	if !m.active || !pending || slot.token != tok {
		m.mu.Unlock()
		return
	}
	delete(m.slots, kind)
	m.count++
	count := m.count
	remaining := len(m.slots)
	reached := count >= m.policy.MaxViolations && !m.escalated
	if reached {
		m.escalated = true
	}
	m.mu.Unlock()

	m.log.Warn().
		Str("signal", string(kind)).
		Int("count", count).
		Int("max", m.policy.MaxViolations).
		Msg("Violation counted")
	if remaining == 0 {
		m.modals.Hide(ModalViolationWarning)
	}
	m.onRecord(model.IncidentViolationConfirmed, kind, count)
	if reached {
		m.onLimit()
	}
}
