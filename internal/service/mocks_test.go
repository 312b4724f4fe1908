package service

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/fjod/storefront-cart/internal/inventory"
	"github.com/fjod/storefront-cart/internal/storage"
)

// mockInventory implements inventory.Service for testing
type mockInventory struct {
	m          sync.Mutex
	stock      map[int64]int
	products   map[int64]domain.ProductMetadata
	stockErr   error
	productErr error
	stockCalls int
	// hold, when set, blocks GetStock until it is closed
	hold chan struct{}
	// entered receives a value each time GetStock starts
	entered chan struct{}
}

func newMockInventory() *mockInventory {
	return &mockInventory{
		stock:    make(map[int64]int),
		products: make(map[int64]domain.ProductMetadata),
	}
}

func (m *mockInventory) with(id int64, stock int, name string, price float64) *mockInventory {
	m.stock[id] = stock
	m.products[id] = domain.ProductMetadata{ID: id, Name: name, Price: price}
	return m
}

func (m *mockInventory) setStock(id int64, stock int) {
	m.m.Lock()
	defer m.m.Unlock()
	m.stock[id] = stock
}

func (m *mockInventory) GetStock(ctx context.Context, productID int64) (domain.Stock, error) {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.hold != nil {
		select {
		case <-m.hold:
		case <-ctx.Done():
			return domain.Stock{}, ctx.Err()
		}
	}

	m.m.Lock()
	defer m.m.Unlock()
	m.stockCalls++
	if m.stockErr != nil {
		return domain.Stock{}, m.stockErr
	}
	amount, ok := m.stock[productID]
	if !ok {
		return domain.Stock{}, inventory.ErrProductNotFound
	}
	return domain.Stock{ProductID: productID, Amount: amount}, nil
}

func (m *mockInventory) GetProduct(_ context.Context, productID int64) (domain.ProductMetadata, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.productErr != nil {
		return domain.ProductMetadata{}, m.productErr
	}
	p, ok := m.products[productID]
	if !ok {
		return domain.ProductMetadata{}, inventory.ErrProductNotFound
	}
	return p, nil
}

func (m *mockInventory) calls() int {
	m.m.Lock()
	defer m.m.Unlock()
	return m.stockCalls
}

var errStorage = errors.New("disk full")

// mockStorage wraps a MemoryStore and can fail reads or writes on demand
type mockStorage struct {
	*storage.MemoryStore
	m        sync.Mutex
	getErr   error
	setErr   error
	setCalls int
}

func newMockStorage() *mockStorage {
	return &mockStorage{MemoryStore: storage.NewMemoryStore()}
}

func (m *mockStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.m.Lock()
	err := m.getErr
	m.m.Unlock()
	if err != nil {
		return nil, err
	}
	return m.MemoryStore.Get(ctx, key)
}

func (m *mockStorage) Set(ctx context.Context, key string, value []byte) error {
	m.m.Lock()
	m.setCalls++
	err := m.setErr
	m.m.Unlock()
	if err != nil {
		return err
	}
	return m.MemoryStore.Set(ctx, key, value)
}

func (m *mockStorage) failReads(err error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.getErr = err
}

func (m *mockStorage) failWrites(err error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.setErr = err
}

func (m *mockStorage) writes() int {
	m.m.Lock()
	defer m.m.Unlock()
	return m.setCalls
}
