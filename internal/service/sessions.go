package service

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/storefront-cart/internal/inventory"
	"github.com/fjod/storefront-cart/internal/notify"
	"github.com/fjod/storefront-cart/internal/storage"
	"go.uber.org/zap"
)

// NotifierFactory returns the notifier for one session.
type NotifierFactory func(sessionID string) notify.Notifier

type session struct {
	cart     *CartStore
	lastSeen time.Time
}

// Sessions hands out one CartStore per browser session. Each session's cart
// is persisted under "<baseKey>:<sessionID>". Idle sessions are dropped from
// memory by Sweep; their persisted carts are kept.
type Sessions struct {
	inventory inventory.Service
	store     storage.Store
	notifiers NotifierFactory
	log       *zap.Logger
	baseKey   string
	now       func() time.Time

	mu    sync.Mutex
	carts map[string]*session
}

func NewSessions(inv inventory.Service, store storage.Store, notifiers NotifierFactory, log *zap.Logger, baseKey string) *Sessions {
	if baseKey == "" {
		baseKey = DefaultKey
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sessions{
		inventory: inv,
		store:     store,
		notifiers: notifiers,
		log:       log,
		baseKey:   baseKey,
		now:       time.Now,
		carts:     make(map[string]*session),
	}
}

// Key is the storage key of sessionID's cart.
func (s *Sessions) Key(sessionID string) string {
	return s.baseKey + ":" + sessionID
}

// Get returns the session's store, hydrating it from storage on first use.
// A cached store whose hydration failed retries the read.
func (s *Sessions) Get(ctx context.Context, sessionID string) *CartStore {
	s.mu.Lock()
	sess, ok := s.carts[sessionID]
	if !ok {
		sess = &session{cart: NewCartStore(ctx, s.inventory, s.store, s.notifiers(sessionID),
			WithKey(s.Key(sessionID)),
			WithLogger(s.log.With(zap.String("session_id", sessionID))),
		)}
		s.carts[sessionID] = sess
	}
	sess.lastSeen = s.now()
	s.mu.Unlock()

	if ok && !sess.cart.Loaded() {
		if err := sess.cart.Reload(ctx); err != nil {
			s.log.Warn("cart storage still unreadable",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return sess.cart
}

// End discards the in-memory store. The persisted cart is kept.
func (s *Sessions) End(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
}

// Sweep ends every session not used for idle and returns how many were
// dropped. A store with a mutation in progress is left for the next sweep.
func (s *Sessions) Sweep(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.carts {
		if sess.lastSeen.After(cutoff) {
			continue
		}
		if !sess.cart.sem.TryAcquire(1) {
			continue
		}
		delete(s.carts, id)
		sess.cart.sem.Release(1)
		evicted++
	}
	return evicted
}

// Run sweeps idle sessions every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(idle); n > 0 {
				s.log.Debug("idle sessions evicted",
					zap.Int("evicted", n), zap.Int("remaining", s.Len()))
			}
		}
	}
}

// Len reports how many sessions are loaded.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.carts)
}
