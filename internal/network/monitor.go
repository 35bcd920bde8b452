package network

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/checkin-sync-agent/internal/models"
)

type connectivityStore interface {
	SetConnectivity(isConnected bool) models.ConnectivityState
	Connectivity() models.ConnectivityState
	PendingCount() int
}

// TriggerFunc starts a sync pass.
type TriggerFunc func()

// Monitor holds exactly one subscription to a Source. Every notification is written
// to the store; an offline to online transition with queued check-ins fires the trigger.
type Monitor struct {
	source  Source
	store   connectivityStore
	trigger TriggerFunc
	logger  *zap.Logger

	mu          sync.Mutex
	unsubscribe func()
	listeners   []func(models.ConnectivityState)
}

// NewMonitor constructs a Monitor.
func NewMonitor(source Source, store connectivityStore, trigger TriggerFunc, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{source: source, store: store, trigger: trigger, logger: logger}
}

// OnTransition registers a callback invoked after every connectivity change.
// Call before Start.
func (m *Monitor) OnTransition(fn func(models.ConnectivityState)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Start subscribes to the source. Repeated calls are no-ops. The subscription is
// removed when ctx is done or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.unsubscribe != nil {
		m.mu.Unlock()
		return
	}
	m.unsubscribe = m.source.Subscribe(m.handle)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.Stop()
	}()
}

// Stop removes the subscription.
func (m *Monitor) Stop() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Running reports whether the monitor holds a subscription.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unsubscribe != nil
}

func (m *Monitor) handle(isConnected bool) {
	prev := m.store.SetConnectivity(isConnected)
	current := m.store.Connectivity()

	if prev.IsConnected != isConnected {
		m.logger.Info("connectivity changed", zap.Bool("connected", isConnected))
		m.mu.Lock()
		listeners := append([]func(models.ConnectivityState){}, m.listeners...)
		m.mu.Unlock()
		for _, fn := range listeners {
			fn(current)
		}
	}

	if isConnected && !prev.IsConnected && m.store.PendingCount() > 0 && m.trigger != nil {
		m.logger.Info("reconnected with pending check-ins, triggering sync", zap.Int("pending", m.store.PendingCount()))
		m.trigger()
	}
}
