// Package network observes connectivity and turns reconnections into sync triggers.
package network

import "sync"

// Source delivers connectivity notifications. Subscribe returns a function that
// removes the subscription.
type Source interface {
	Subscribe(fn func(isConnected bool)) (unsubscribe func())
}

type subscribers struct {
	mu     sync.Mutex
	fns    map[int]func(bool)
	nextID int
}

func (s *subscribers) add(fn func(bool)) func() {
	s.mu.Lock()
	if s.fns == nil {
		s.fns = make(map[int]func(bool))
	}
	id := s.nextID
	s.nextID++
	s.fns[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) publish(isConnected bool) {
	s.mu.Lock()
	fns := make([]func(bool), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(isConnected)
	}
}

func (s *subscribers) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}

// ManualSource lets the host push connectivity explicitly.
type ManualSource struct {
	subs subscribers
}

// NewManualSource constructs a ManualSource.
func NewManualSource() *ManualSource {
	return &ManualSource{}
}

// Subscribe implements Source.
func (m *ManualSource) Subscribe(fn func(bool)) func() {
	return m.subs.add(fn)
}

// Set delivers a notification to every subscriber.
func (m *ManualSource) Set(isConnected bool) {
	m.subs.publish(isConnected)
}

// Subscribers reports the number of active subscriptions.
func (m *ManualSource) Subscribers() int {
	return m.subs.count()
}

// MultiSource merges several sources into one.
type MultiSource []Source

// Subscribe implements Source.
func (ms MultiSource) Subscribe(fn func(bool)) func() {
	unsubs := make([]func(), 0, len(ms))
	for _, s := range ms {
		if s != nil {
			unsubs = append(unsubs, s.Subscribe(fn))
		}
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
