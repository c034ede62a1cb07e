// Package viewstate holds the latest derived view and the selected tab.
package viewstate

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/phuchtq/iota-donation-platform/internal/domain/model"
	"github.com/phuchtq/iota-donation-platform/internal/metrics"
)

const subscriberBuffer = 4

// Store keeps the committed view. Every refresh cycle takes a sequence
// number from Begin; a cycle may commit only if no newer cycle committed
// first and no Reset happened after it began.
type Store struct {
	next atomic.Uint64

	mu        sync.RWMutex
	state     model.ViewState
	committed uint64
	floor     uint64
	tab       model.Tab
	subs      map[int]chan model.ViewState
	nextSub   int
	now       func() time.Time
}

func New() *Store {
	return &Store{
		state: model.EmptyView(nil),
		tab:   model.TabBrowse,
		subs:  make(map[int]chan model.ViewState),
		now:   time.Now,
	}
}

// Begin starts a refresh cycle and returns its sequence number.
func (s *Store) Begin() uint64 {
	return s.next.Add(1)
}

// Commit replaces the view with state if seq is still current. It reports
// whether the state was stored.
func (s *Store) Commit(seq uint64, state model.ViewState) bool {
	s.mu.Lock()
	if seq <= s.committed || seq <= s.floor {
		s.mu.Unlock()
		metrics.RefreshStaleDiscarded.Inc()
		return false
	}
	state.Sequence = seq
	if state.RefreshedAt.IsZero() {
		state.RefreshedAt = s.now()
	}
	s.committed = seq
	s.state = state
	s.broadcast(state)
	s.mu.Unlock()
	return true
}

// Reset drops the view for an account switch. Cycles begun before the
// reset can no longer commit.
func (s *Store) Reset(account *model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.floor = s.next.Load()
	s.state = model.EmptyView(account)
	s.state.Sequence = s.floor
	s.broadcast(s.state)
}

// Snapshot returns the committed view. Its slices must not be modified.
func (s *Store) Snapshot() model.ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Account returns the account the view belongs to.
func (s *Store) Account() *model.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Account
}

// Campaign looks up a campaign in the committed view.
func (s *Store) Campaign(id string) (model.Campaign, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CampaignByID(id)
}

func (s *Store) Tab() model.Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tab
}

// SetTab selects tab; unknown tabs are ignored and reported as false.
func (s *Store) SetTab(tab model.Tab) bool {
	if !tab.Valid() {
		return false
	}
	s.mu.Lock()
	s.tab = tab
	s.mu.Unlock()
	return true
}

// Subscribe returns a channel receiving every committed or reset view, and a
// func that ends the subscription. A subscriber that falls behind misses
// views rather than blocking commits.
func (s *Store) Subscribe() (<-chan model.ViewState, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan model.ViewState, subscriberBuffer)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// broadcast runs with mu held.
func (s *Store) broadcast(state model.ViewState) {
	for _, ch := range s.subs {
		select {
		case ch <- state:
		default:
		}
	}
}
