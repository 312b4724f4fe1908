package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/fjod/storefront-cart/internal/domain"
)

// MemoryService implements Service with in-memory storage
type MemoryService struct {
	mu       sync.RWMutex
	stocks   map[int64]int                    // productID -> stock amount
	products map[int64]domain.ProductMetadata // productID -> catalog entry
}

// NewMemoryService creates an empty in-memory inventory
func NewMemoryService() *MemoryService {
	return &MemoryService{
		stocks:   make(map[int64]int),
		products: make(map[int64]domain.ProductMetadata),
	}
}

// GetStock returns the stock amount for productID
func (s *MemoryService) GetStock(_ context.Context, productID int64) (domain.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	amount, exists := s.stocks[productID]
	if !exists {
		return domain.Stock{}, ErrProductNotFound
	}
	return domain.Stock{ProductID: productID, Amount: amount}, nil
}

// GetProduct returns catalog metadata for productID
func (s *MemoryService) GetProduct(_ context.Context, productID int64) (domain.ProductMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[productID]
	if !exists {
		return domain.ProductMetadata{}, ErrProductNotFound
	}
	return product, nil
}

// SetStock sets the stock level for a product
func (s *MemoryService) SetStock(productID int64, amount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stocks[productID] = amount
}

// SetProduct adds or replaces a catalog entry
func (s *MemoryService) SetProduct(product domain.ProductMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
}

// catalogFile mirrors the storefront's fake API fixture (server.json).
type catalogFile struct {
	Products []productResponse `json:"products"`
	Stock    []stockResponse   `json:"stock"`
}

// LoadCatalog reads a {"products": [...], "stock": [...]} fixture into s.
func (s *MemoryService) LoadCatalog(r io.Reader) error {
	var catalog catalogFile
	if err := json.NewDecoder(r).Decode(&catalog); err != nil {
		return fmt.Errorf("decode catalog failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range catalog.Products {
		s.products[p.ID] = p.metadata()
	}
	for _, st := range catalog.Stock {
		s.stocks[st.ID] = st.Amount
	}
	return nil
}
