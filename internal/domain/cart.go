package domain

import (
	"encoding/json"
	"fmt"
)

// Product is a single cart entry: cached product metadata plus the
// quantity the shopper asked for.
type Product struct {
	ID     int64   `json:"id" bson:"id"`
	Name   string  `json:"name" bson:"name"`
	Price  float64 `json:"price" bson:"price"`
	Image  string  `json:"image" bson:"image"`
	Amount int     `json:"amount" bson:"amount"`
}

// UnmarshalJSON also accepts the catalog's "title" in place of "name", the
// shape storefront carts were stored in before entries carried a name.
func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	var aux struct {
		plain
		Title string `json:"title"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Product(aux.plain)
	if p.Name == "" {
		p.Name = aux.Title
	}
	return nil
}

// ProductMetadata holds the static product fields returned by the catalog.
type ProductMetadata struct {
	ID    int64
	Name  string
	Price float64
	Image string
}

// Stock is the quantity the inventory reports for a product at query time.
type Stock struct {
	ProductID int64
	Amount    int
}

// NewEntry builds a cart entry from catalog metadata.
func NewEntry(meta ProductMetadata, amount int) Product {
	return Product{
		ID:     meta.ID,
		Name:   meta.Name,
		Price:  meta.Price,
		Image:  meta.Image,
		Amount: amount,
	}
}

// Cart is the ordered list of entries, in first-add order.
type Cart []Product

// Clone returns a copy whose entries can be mutated without touching c.
func (c Cart) Clone() Cart {
	if c == nil {
		return Cart{}
	}
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// Index returns the position of productID or -1.
func (c Cart) Index(productID int64) int {
	for i := range c {
		if c[i].ID == productID {
			return i
		}
	}
	return -1
}

// Without returns a new cart with productID excluded.
func (c Cart) Without(productID int64) Cart {
	out := make(Cart, 0, len(c))
	for _, p := range c {
		if p.ID != productID {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the entry invariants: unique ids, amount of at least one.
func (c Cart) Validate() error {
	seen := make(map[int64]struct{}, len(c))
	for _, p := range c {
		if p.Amount < 1 {
			return fmt.Errorf("product %d has amount %d", p.ID, p.Amount)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("product %d appears more than once", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}
