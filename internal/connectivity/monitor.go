// Package connectivity tracks reachability of the sync gateway. The state
// machine has two states, online and offline, fed by periodic health probes
// and by the outcome of real replay calls. A platform "online" signal is
// never trusted on its own; the next probe or request corrects it.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

type State int32

const (
	StateOffline State = iota
	StateOnline
)

func (s State) String() string {
	if s == StateOnline {
		return "ONLINE"
	}

	return "OFFLINE"
}

type Config struct {
	ProbeURL         string
	ProbeInterval    time.Duration
	ProbeTimeout     time.Duration
	FailureThreshold int
}

// Monitor observes gateway reachability. OFFLINE -> ONLINE transitions are
// debounced onto a buffered channel: concurrent transitions collapse into a
// single drain trigger.
type Monitor struct {
	l      *zap.Logger
	cfg    Config
	client *http.Client

	mu       sync.Mutex
	state    State
	failures int

	online chan struct{}
}

func NewMonitor(l *zap.Logger, cfg Config) *Monitor {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 15 * time.Second
	}

	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}

	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 2
	}

	return &Monitor{
		l:      l,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.ProbeTimeout},
		state:  StateOffline,
		online: make(chan struct{}, 1),
	}
}

// Run probes the gateway until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.probe(ctx)

	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.l.Info("Connectivity monitor stopped")

			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state == StateOnline
}

// Notify returns the channel that fires once per OFFLINE -> ONLINE
// transition.
func (m *Monitor) Notify() <-chan struct{} {
	return m.online
}

// ReportSuccess feeds a successful real request back into the state machine.
func (m *Monitor) ReportSuccess() {
	m.transition(StateOnline)
}

// ReportFailure feeds a transport-level failure back into the state machine.
// The monitor flips offline after FailureThreshold consecutive failures.
func (m *Monitor) ReportFailure() {
	m.mu.Lock()
	m.failures++
	flip := m.failures >= m.cfg.FailureThreshold
	m.mu.Unlock()

	if flip {
		m.transition(StateOffline)
	}
}

func (m *Monitor) probe(ctx context.Context) {
	if m.cfg.ProbeURL == "" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.ProbeURL, nil)
	if err != nil {
		m.l.Warn("Failed to build probe request", zap.Error(err))

		return
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.ReportFailure()

		return
	}

	_ = resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		m.ReportFailure()

		return
	}

	m.ReportSuccess()
}

func (m *Monitor) transition(next State) {
	m.mu.Lock()

	prev := m.state
	m.state = next

	if next == StateOnline {
		m.failures = 0
	}

	m.mu.Unlock()

	if prev == next {
		return
	}

	m.l.Info("Connectivity state changed",
		zap.String("from", prev.String()),
		zap.String("to", next.String()),
	)

	if next == StateOnline {
		select {
		case m.online <- struct{}{}:
		default:
		}
	}
}
