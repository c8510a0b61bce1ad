package repository

import (
	"sync"
	"time"

	"github.com/cch137/webrtc-demo-2025-11/internal/domain"
	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/logging"
)

const (
	DefaultInactivityTTL   = 10 * time.Minute
	DefaultCleanupInterval = 60 * time.Minute
)

// Removal reasons reported to the StoreObserver.
const (
	RemovedDrained = "drained"
	RemovedOnce    = "once"
	RemovedDeleted = "deleted"
	RemovedIdle    = "idle"
)

// StoreObserver receives store activity, typically for metrics.
type StoreObserver interface {
	QueueCountChanged(n int)
	QueueOp(op, result string)
	QueueRemoved(reason string, n int)
}

type nopObserver struct{}

func (nopObserver) QueueCountChanged(int) {}
func (nopObserver) QueueOp(string, string) {}
func (nopObserver) QueueRemoved(string, int) {}

type StoreOptions struct {
	InactivityTTL   time.Duration
	CleanupInterval time.Duration
	QueueCapacity   int
	Logger          logging.Logger
	Observer        StoreObserver
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Store maps keys to Queues. A present key always has a non-empty Queue, queues
// idle beyond the inactivity TTL are evicted by a background sweep.
type Store struct {
	queues        map[string]*Queue
	inactivityTTL time.Duration
	capacity      int
	logger        logging.Logger
	observer      StoreObserver
	now           func() time.Time

	mu          sync.Mutex
	destroyed   bool
	cleanupTick *time.Ticker
	done        chan struct{}
	destroyOnce sync.Once
}

func NewStore(options StoreOptions) *Store {
	if options.InactivityTTL <= 0 {
		options.InactivityTTL = DefaultInactivityTTL
	}
	if options.CleanupInterval <= 0 {
		options.CleanupInterval = DefaultCleanupInterval
	}
	if options.QueueCapacity <= 0 {
		options.QueueCapacity = DefaultQueueCapacity
	}
	if options.Logger == nil {
		options.Logger = logging.NewNop()
	}
	if options.Observer == nil {
		options.Observer = nopObserver{}
	}
	if options.Now == nil {
		options.Now = time.Now
	}

	s := &Store{
		queues:        make(map[string]*Queue),
		inactivityTTL: options.InactivityTTL,
		capacity:      options.QueueCapacity,
		logger:        options.Logger,
		observer:      options.Observer,
		now:           options.Now,
		cleanupTick:   time.NewTicker(options.CleanupInterval),
		done:          make(chan struct{}),
	}
	go s.startCleanup()
	return s
}

// ReadOption adjusts a single Pop.
type ReadOption func(*readOptions)

type readOptions struct {
	notFrom    string
	hasNotFrom bool
}

// NotFrom skips payloads whose "from" field equals peer. Skipped payloads are
// rotated to the tail.
func NotFrom(peer string) ReadOption {
	return func(o *readOptions) {
		o.notFrom = peer
		o.hasNotFrom = true
	}
}

// SizeOf returns the number of payloads queued for id, 0 when absent.
func (s *Store) SizeOf(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q, ok := s.queues[id]; ok {
		return q.Len()
	}
	return 0
}

// Len returns the number of live queues.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}

func (s *Store) Push(id string, p domain.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return domain.ErrStoreDestroyed
	}

	q, ok := s.queues[id]
	if !ok {
		q = NewQueue(s.capacity, s.now)
	}
	if err := q.Push(p); err != nil {
		s.observer.QueueOp("push", "full")
		return err
	}
	if !ok {
		s.queues[id] = q
		s.observer.QueueCountChanged(len(s.queues))
	}

	s.observer.QueueOp("push", "ok")
	return nil
}

// Pop removes the first eligible payload for id. ok is false when the key is
// absent or every queued payload was excluded by NotFrom. A payload carrying
// "once": true removes the whole queue for id.
func (s *Store) Pop(id string, opts ...ReadOption) (domain.Payload, bool, error) {
	var o readOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return nil, false, domain.ErrStoreDestroyed
	}

	q, ok := s.queues[id]
	if !ok {
		s.observer.QueueOp("pop", "absent")
		return nil, false, nil
	}

	for i := q.Len(); i > 0; i-- {
		p, ok := q.Pop()
		if !ok {
			break
		}

		if o.hasNotFrom && p.IsFrom(o.notFrom) {
			// Cannot fail: the pop above freed a slot.
			_ = q.Push(p)
			continue
		}

		switch {
		case p.IsOnce():
			s.remove(id, RemovedOnce)
		case q.IsEmpty():
			s.remove(id, RemovedDrained)
		}
		s.observer.QueueOp("pop", "ok")
		return p, true, nil
	}

	if q.IsEmpty() {
		s.remove(id, RemovedDrained)
	}
	s.observer.QueueOp("pop", "excluded")
	return nil, false, nil
}

// PopAll drains and removes the queue for id. ok is false when absent.
func (s *Store) PopAll(id string) ([]domain.Payload, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return nil, false, domain.ErrStoreDestroyed
	}

	q, ok := s.queues[id]
	if !ok {
		s.observer.QueueOp("pop_all", "absent")
		return nil, false, nil
	}

	items := q.PopAll()
	s.remove(id, RemovedDrained)
	s.observer.QueueOp("pop_all", "ok")
	return items, true, nil
}

// Delete removes the queue for id regardless of its contents.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return false, domain.ErrStoreDestroyed
	}

	if _, ok := s.queues[id]; !ok {
		return false, nil
	}
	s.remove(id, RemovedDeleted)
	return true, nil
}

func (s *Store) IsDestroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// Destroy clears every queue and stops the sweep. Subsequent operations fail
// with domain.ErrStoreDestroyed.
func (s *Store) Destroy() {
	s.destroyOnce.Do(func() {
		close(s.done)
		s.cleanupTick.Stop()

		s.mu.Lock()
		s.queues = make(map[string]*Queue)
		s.destroyed = true
		s.mu.Unlock()

		s.observer.QueueCountChanged(0)
	})
}

// remove must be called with mu held.
func (s *Store) remove(id, reason string) {
	delete(s.queues, id)
	s.observer.QueueRemoved(reason, 1)
	s.observer.QueueCountChanged(len(s.queues))
}

func (s *Store) startCleanup() {
	for {
		select {
		case <-s.cleanupTick.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

// sweep evicts every queue whose last activity is at least inactivityTTL old.
func (s *Store) sweep() (evicted int) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(logging.Store, logging.Sweep, "sweep panicked", map[logging.ExtraKey]any{
				logging.ErrorMessage: r,
			})
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return 0
	}

	cutoff := s.now().Add(-s.inactivityTTL)
	for id, q := range s.queues {
		if !q.LastActivity().After(cutoff) {
			delete(s.queues, id)
			evicted++
		}
	}

	if evicted > 0 {
		s.observer.QueueRemoved(RemovedIdle, evicted)
		s.observer.QueueCountChanged(len(s.queues))
		s.logger.Debug(logging.Store, logging.Sweep, "evicted idle queues", map[logging.ExtraKey]any{
			logging.Count: evicted,
		})
	}
	return evicted
}
