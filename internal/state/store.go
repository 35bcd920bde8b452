// Package state holds the explicit state container shared by the sync core.
package state

import (
	"sync"
	"time"

	"github.com/noah-isme/checkin-sync-agent/internal/models"
)

// Change identifies which collection a mutation touched.
type Change string

const (
	ChangeEvents       Change = "events"
	ChangeAttendees    Change = "attendees"
	ChangeCheckins     Change = "checkins"
	ChangePending      Change = "pending"
	ChangeConnectivity Change = "connectivity"
	ChangeSession      Change = "session"
	ChangeRestore      Change = "restore"
)

// Listener is invoked after an effective mutation, outside the store lock.
type Listener func(Change)

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for lastFetched and connectivity stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithConnectivity sets the initial connectivity flag.
func WithConnectivity(isConnected bool) Option {
	return func(s *Store) {
		s.connectivity.IsConnected = isConnected
	}
}

// Store is the single source of truth for events, attendees, confirmed check-ins,
// the pending queue, connectivity and the session. Every mutation is atomic and
// never fails: invalid input leaves state untouched. Reads return copies.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	events       []models.Event
	lastFetched  *time.Time
	attendees    map[int64][]models.Attendee
	checkins     map[int64][]models.CheckinRecord
	pending      []models.CheckinRecord
	connectivity models.ConnectivityState
	session      *models.Session

	listenerMu sync.Mutex
	listeners  map[int]Listener
	nextID     int
}

// New builds an empty store. Connectivity starts online unless overridden.
func New(opts ...Option) *Store {
	s := &Store{
		now:          func() time.Time { return time.Now().UTC() },
		attendees:    make(map[int64][]models.Attendee),
		checkins:     make(map[int64][]models.CheckinRecord),
		connectivity: models.ConnectivityState{IsConnected: true},
		listeners:    make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers a listener and returns a function removing it.
func (s *Store) OnChange(l Listener) func() {
	if l == nil {
		return func() {}
	}
	s.listenerMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.listenerMu.Unlock()
	return func() {
		s.listenerMu.Lock()
		delete(s.listeners, id)
		s.listenerMu.Unlock()
	}
}

func (s *Store) emit(change Change) {
	s.listenerMu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenerMu.Unlock()
	for _, l := range listeners {
		l(change)
	}
}

// SetEvents replaces the event collection and stamps lastFetched.
// Events without a positive identifier are dropped.
func (s *Store) SetEvents(events []models.Event) {
	next := make([]models.Event, 0, len(events))
	for _, e := range events {
		if e.ID > 0 {
			next = append(next, e)
		}
	}
	s.mu.Lock()
	s.events = next
	fetched := s.now()
	s.lastFetched = &fetched
	s.mu.Unlock()
	s.emit(ChangeEvents)
}

// SetAttendees replaces the attendee list of one event without touching others.
func (s *Store) SetAttendees(eventID int64, attendees []models.Attendee) {
	if eventID <= 0 {
		return
	}
	next := make([]models.Attendee, 0, len(attendees))
	for _, a := range attendees {
		if a.ID <= 0 {
			continue
		}
		if a.EventID == 0 {
			a.EventID = eventID
		}
		if a.EventID != eventID {
			continue
		}
		next = append(next, a)
	}
	s.mu.Lock()
	s.attendees[eventID] = next
	s.mu.Unlock()
	s.emit(ChangeAttendees)
}

// SetCheckins replaces the confirmed check-ins of one event with a server listing.
// Later records for the same attendee win so the one-per-pair invariant holds.
func (s *Store) SetCheckins(eventID int64, records []models.CheckinRecord) {
	if eventID <= 0 {
		return
	}
	next := make([]models.CheckinRecord, 0, len(records))
	for _, r := range records {
		if r.EventID == 0 {
			r.EventID = eventID
		}
		if !r.Valid() || r.EventID != eventID {
			continue
		}
		next = upsertInto(next, r)
	}
	s.mu.Lock()
	s.checkins[eventID] = next
	s.mu.Unlock()
	s.emit(ChangeCheckins)
}

// ReplaceAllCheckins regroups an unscoped server listing by event, replacing every event.
func (s *Store) ReplaceAllCheckins(records []models.CheckinRecord) {
	grouped := make(map[int64][]models.CheckinRecord)
	for _, r := range records {
		if !r.Valid() {
			continue
		}
		grouped[r.EventID] = upsertInto(grouped[r.EventID], r)
	}
	s.mu.Lock()
	s.checkins = grouped
	s.mu.Unlock()
	s.emit(ChangeCheckins)
}

// UpsertCheckin replaces the confirmed record for the same pair or appends it.
// The pending queue is never touched.
func (s *Store) UpsertCheckin(record models.CheckinRecord) {
	if !record.Valid() {
		return
	}
	s.mu.Lock()
	s.checkins[record.EventID] = upsertInto(s.checkins[record.EventID], record)
	s.mu.Unlock()
	s.emit(ChangeCheckins)
}

// EnqueuePending appends an unsynced record to the pending queue. No uniqueness is
// enforced here; callers decide whether duplicate taps are collapsed.
func (s *Store) EnqueuePending(record models.CheckinRecord) {
	if !record.Valid() {
		return
	}
	record.Synced = false
	record.Status = models.CheckinStatusPending
	s.mu.Lock()
	s.pending = append(s.pending, record)
	s.mu.Unlock()
	s.emit(ChangePending)
}

// DequeuePending removes every pending entry for the pair and returns how many were removed.
func (s *Store) DequeuePending(eventID, attendeeID int64) int {
	if eventID <= 0 || attendeeID <= 0 {
		return 0
	}
	s.mu.Lock()
	kept := s.pending[:0:0]
	removed := 0
	for _, p := range s.pending {
		if p.EventID == eventID && p.AttendeeID == attendeeID {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	s.pending = kept
	s.mu.Unlock()
	if removed > 0 {
		s.emit(ChangePending)
	}
	return removed
}

// SetConnectivity records a connectivity notification and returns the previous state.
// Repeated identical values only re-stamp the transition time.
func (s *Store) SetConnectivity(isConnected bool) models.ConnectivityState {
	s.mu.Lock()
	prev := s.connectivity
	s.connectivity = models.ConnectivityState{IsConnected: isConnected, LastChangedAt: s.now()}
	s.mu.Unlock()
	s.emit(ChangeConnectivity)
	return prev
}

// SetSession stores the logged-in backend session.
func (s *Store) SetSession(session models.Session) {
	s.mu.Lock()
	s.session = &session
	s.mu.Unlock()
	s.emit(ChangeSession)
}

// ClearSession forgets the backend session.
func (s *Store) ClearSession() {
	s.mu.Lock()
	had := s.session != nil
	s.session = nil
	s.mu.Unlock()
	if had {
		s.emit(ChangeSession)
	}
}

// Restore replaces persisted collections from a snapshot. Connectivity is left as is.
func (s *Store) Restore(snap models.Snapshot) {
	attendees := make(map[int64][]models.Attendee, len(snap.AttendeesByEvent))
	for id, list := range snap.AttendeesByEvent {
		if id > 0 {
			attendees[id] = append([]models.Attendee(nil), list...)
		}
	}
	checkins := make(map[int64][]models.CheckinRecord, len(snap.CheckinsByEvent))
	for id, list := range snap.CheckinsByEvent {
		if id <= 0 {
			continue
		}
		var next []models.CheckinRecord
		for _, r := range list {
			if r.Valid() && r.EventID == id {
				next = upsertInto(next, r)
			}
		}
		checkins[id] = next
	}
	events := make([]models.Event, 0, len(snap.Events))
	for _, e := range snap.Events {
		if e.ID > 0 {
			events = append(events, e)
		}
	}
	pending := make([]models.CheckinRecord, 0, len(snap.PendingCheckins))
	for _, p := range snap.PendingCheckins {
		if p.Valid() && !p.Synced {
			pending = append(pending, p)
		}
	}

	s.mu.Lock()
	s.events = events
	if snap.LastFetched != nil {
		fetched := *snap.LastFetched
		s.lastFetched = &fetched
	} else {
		s.lastFetched = nil
	}
	s.attendees = attendees
	s.checkins = checkins
	s.pending = pending
	if snap.Session != nil {
		session := *snap.Session
		s.session = &session
	} else {
		s.session = nil
	}
	s.mu.Unlock()
	s.emit(ChangeRestore)
}

// Snapshot captures the persisted subset of state.
func (s *Store) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := models.Snapshot{
		Version:          models.SnapshotVersion,
		Events:           append([]models.Event{}, s.events...),
		AttendeesByEvent: make(map[int64][]models.Attendee, len(s.attendees)),
		CheckinsByEvent:  make(map[int64][]models.CheckinRecord, len(s.checkins)),
		PendingCheckins:  append([]models.CheckinRecord{}, s.pending...),
		SavedAt:          s.now(),
	}
	if s.lastFetched != nil {
		fetched := *s.lastFetched
		snap.LastFetched = &fetched
	}
	if s.session != nil {
		session := *s.session
		snap.Session = &session
	}
	for id, list := range s.attendees {
		snap.AttendeesByEvent[id] = append([]models.Attendee{}, list...)
	}
	for id, list := range s.checkins {
		snap.CheckinsByEvent[id] = append([]models.CheckinRecord{}, list...)
	}
	return snap
}

// Events returns the cached events.
func (s *Store) Events() []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Event{}, s.events...)
}

// Event looks up a cached event.
func (s *Store) Event(id int64) (models.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.events {
		if e.ID == id {
			return e, true
		}
	}
	return models.Event{}, false
}

// LastFetched returns when events were last replaced, if ever.
func (s *Store) LastFetched() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastFetched == nil {
		return time.Time{}, false
	}
	return *s.lastFetched, true
}

// Attendees returns the cached attendees of one event.
func (s *Store) Attendees(eventID int64) []models.Attendee {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Attendee{}, s.attendees[eventID]...)
}

// Checkins returns the confirmed check-ins of one event.
func (s *Store) Checkins(eventID int64) []models.CheckinRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CheckinRecord{}, s.checkins[eventID]...)
}

// Pending returns the pending queue in insertion order.
func (s *Store) Pending() []models.CheckinRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CheckinRecord{}, s.pending...)
}

// PendingCount returns the queue length.
func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// HasPending reports whether an unsynced entry exists for the pair.
func (s *Store) HasPending(eventID, attendeeID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.pending {
		if p.EventID == eventID && p.AttendeeID == attendeeID && !p.Synced {
			return true
		}
	}
	return false
}

// Connectivity returns the current connectivity state.
func (s *Store) Connectivity() models.ConnectivityState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connectivity
}

// Session returns the current backend session, if any.
func (s *Store) Session() (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return models.Session{}, false
	}
	return *s.session, true
}

// View returns a consistent pair of pending and confirmed slices for one event,
// read under a single lock so status resolution never observes a half-applied sync.
func (s *Store) View(eventID int64) (pending, confirmed []models.CheckinRecord) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.pending {
		if p.EventID == eventID {
			pending = append(pending, p)
		}
	}
	confirmed = append([]models.CheckinRecord{}, s.checkins[eventID]...)
	return pending, confirmed
}

func upsertInto(list []models.CheckinRecord, record models.CheckinRecord) []models.CheckinRecord {
	for i := range list {
		if list[i].AttendeeID == record.AttendeeID {
			list[i] = record
			return list
		}
	}
	return append(list, record)
}
