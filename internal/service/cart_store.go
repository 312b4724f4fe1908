package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/fjod/storefront-cart/internal/inventory"
	"github.com/fjod/storefront-cart/internal/notify"
	"github.com/fjod/storefront-cart/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DefaultKey is the storage key the cart is persisted under.
const DefaultKey = "cart-storage"

// loadTimeout bounds a storage read. Loading ignores the caller's
// cancellation.
const loadTimeout = 5 * time.Second

const (
	opAdd    = "add"
	opRemove = "remove"
	opUpdate = "update"
)

// CartStore owns one shopper's cart. Every mutation is validated against the
// inventory, written to storage and only then made visible in memory, so a
// failed operation leaves both copies untouched.
//
// Mutations are serialised: a second AddProduct for the same product waits
// for the first one instead of racing on the existence check.
type CartStore struct {
	inventory inventory.Service
	store     storage.Store
	notifier  notify.Notifier
	log       *zap.Logger
	key       string

	sem *semaphore.Weighted // held for a whole validate-then-mutate transaction

	// loaded is false while storage could not be read. No mutation is
	// persisted until a read succeeds.
	loaded atomic.Bool

	mu   sync.RWMutex
	cart domain.Cart
}

type Option func(*CartStore)

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(s *CartStore) { s.key = key }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *CartStore) { s.log = log }
}

// NewCartStore builds a store and hydrates it from storage. A missing or
// malformed stored value yields an empty cart. An unreadable one also yields
// an empty cart, and the read is retried before the next mutation.
func NewCartStore(ctx context.Context, inv inventory.Service, store storage.Store, notifier notify.Notifier, opts ...Option) *CartStore {
	s := &CartStore{
		inventory: inv,
		store:     store,
		notifier:  notifier,
		log:       zap.NewNop(),
		key:       DefaultKey,
		sem:       semaphore.NewWeighted(1),
		cart:      domain.Cart{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("key", s.key))
	if err := s.ensureLoaded(ctx); err != nil {
		s.log.Warn("cart storage read failed, starting empty", zap.Error(err))
	}
	return s
}

// load reads the stored cart. Only a failed storage read is returned.
func (s *CartStore) load(ctx context.Context) (domain.Cart, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
	defer cancel()

	data, err := s.store.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Cart{}, nil
	}
	if err != nil {
		return nil, err
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		s.log.Warn("stored cart is malformed, starting empty", zap.Error(err))
		return domain.Cart{}, nil
	}
	if err := cart.Validate(); err != nil {
		s.log.Warn("stored cart violates invariants, starting empty", zap.Error(err))
		return domain.Cart{}, nil
	}
	return cart.Clone(), nil
}

// ensureLoaded hydrates the cart if no read has succeeded yet. Callers hold
// the semaphore or own the store exclusively.
func (s *CartStore) ensureLoaded(ctx context.Context) error {
	if s.loaded.Load() {
		return nil
	}
	cart, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cart = cart
	s.mu.Unlock()
	s.loaded.Store(true)
	return nil
}

// Loaded reports whether the cart has been read from storage.
func (s *CartStore) Loaded() bool {
	return s.loaded.Load()
}

// Reload retries a failed hydration. It is a no-op once the cart is loaded.
func (s *CartStore) Reload(ctx context.Context) error {
	if s.loaded.Load() {
		return nil
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)
	return s.ensureLoaded(ctx)
}

// Cart returns a snapshot of the entries in first-add order.
func (s *CartStore) Cart() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

// Summary totals the current cart.
func (s *CartStore) Summary() Summary {
	return SummaryOf(s.Cart())
}

// AddProduct puts one unit of productID in the cart, or raises the amount of
// an existing entry by one, provided the inventory has it in stock.
func (s *CartStore) AddProduct(ctx context.Context, productID int64) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return s.fail(opAdd, productID, MsgAddFailed, err)
	}
	defer s.sem.Release(1)
	if err := s.ensureLoaded(ctx); err != nil {
		return s.fail(opAdd, productID, MsgAddFailed, fmt.Errorf("load cart: %w", err))
	}

	stock, err := s.inventory.GetStock(ctx, productID)
	if err != nil {
		return s.fail(opAdd, productID, MsgAddFailed, fmt.Errorf("get stock: %w", err))
	}
	if stock.Amount <= 0 {
		return s.reject(opAdd, productID, KindOutOfStock, MsgOutOfStock)
	}

	cart := s.Cart()
	if i := cart.Index(productID); i >= 0 {
		return s.updateAmount(ctx, cart, productID, cart[i].Amount+1)
	}

	meta, err := s.inventory.GetProduct(ctx, productID)
	if err != nil {
		return s.fail(opAdd, productID, MsgAddFailed, fmt.Errorf("get product: %w", err))
	}
	meta.ID = productID

	if err := s.commit(ctx, append(cart, domain.NewEntry(meta, 1))); err != nil {
		return s.fail(opAdd, productID, MsgAddFailed, err)
	}
	return nil
}

// RemoveProduct drops the entry for productID. It needs no inventory lookup.
func (s *CartStore) RemoveProduct(ctx context.Context, productID int64) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return s.fail(opRemove, productID, MsgRemoveFailed, err)
	}
	defer s.sem.Release(1)
	if err := s.ensureLoaded(ctx); err != nil {
		return s.fail(opRemove, productID, MsgRemoveFailed, fmt.Errorf("load cart: %w", err))
	}

	cart := s.Cart()
	if cart.Index(productID) < 0 {
		return s.reject(opRemove, productID, KindNotFound, MsgRemoveFailed)
	}

	if err := s.commit(ctx, cart.Without(productID)); err != nil {
		return s.fail(opRemove, productID, MsgRemoveFailed, err)
	}
	return nil
}

// UpdateProductAmount sets the amount of an existing entry, bounded by the
// current stock. An amount of zero or less is ignored without notification;
// use RemoveProduct to take a product out of the cart.
func (s *CartStore) UpdateProductAmount(ctx context.Context, productID int64, amount int) error {
	if amount <= 0 {
		return nil
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return s.fail(opUpdate, productID, MsgUpdateFailed, err)
	}
	defer s.sem.Release(1)
	if err := s.ensureLoaded(ctx); err != nil {
		return s.fail(opUpdate, productID, MsgUpdateFailed, fmt.Errorf("load cart: %w", err))
	}

	return s.updateAmount(ctx, s.Cart(), productID, amount)
}

// updateAmount runs with the semaphore held. cart is a private copy.
func (s *CartStore) updateAmount(ctx context.Context, cart domain.Cart, productID int64, amount int) error {
	i := cart.Index(productID)
	if i < 0 {
		return s.reject(opUpdate, productID, KindNotFound, MsgUpdateFailed)
	}

	stock, err := s.inventory.GetStock(ctx, productID)
	if err != nil {
		return s.fail(opUpdate, productID, MsgUpdateFailed, fmt.Errorf("get stock: %w", err))
	}
	if stock.Amount < amount {
		return s.reject(opUpdate, productID, KindOutOfStock, MsgOutOfStock)
	}

	cart[i].Amount = amount
	if err := s.commit(ctx, cart); err != nil {
		return s.fail(opUpdate, productID, MsgUpdateFailed, err)
	}
	return nil
}

// commit persists next and then swaps it in. Storage is written first so a
// failed write never leaves memory ahead of storage.
func (s *CartStore) commit(ctx context.Context, next domain.Cart) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := s.store.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}

	s.mu.Lock()
	s.cart = next
	s.mu.Unlock()
	return nil
}

func (s *CartStore) reject(op string, productID int64, kind Kind, message string) error {
	s.log.Debug("cart operation rejected",
		zap.String("op", op),
		zap.Int64("product_id", productID),
		zap.Stringer("kind", kind))
	s.notifier.Notify(message)
	return &Error{Op: op, Kind: kind, ProductID: productID, Message: message}
}

func (s *CartStore) fail(op string, productID int64, message string, err error) error {
	s.log.Error("cart operation failed",
		zap.String("op", op),
		zap.Int64("product_id", productID),
		zap.Error(err))
	s.notifier.Notify(message)
	return &Error{Op: op, Kind: KindCollaboratorFailure, ProductID: productID, Message: message, Err: err}
}
