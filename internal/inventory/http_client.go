package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type stockResponse struct {
	ID     int64 `json:"id"`
	Amount int   `json:"amount"`
}

type productResponse struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

func (p productResponse) metadata() domain.ProductMetadata {
	return domain.ProductMetadata{
		ID:    p.ID,
		Name:  p.Title,
		Price: p.Price,
		Image: p.Image,
	}
}

// HTTPClient calls the storefront REST API: GET stock/{id} and products/{id}.
type HTTPClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	sfg     singleflight.Group // collapses concurrent lookups of the same resource
	log     *zap.Logger
}

// NewHTTPClient creates a client with a request timeout and a circuit breaker
// that opens after five consecutive failures.
func NewHTTPClient(baseURL string, timeout time.Duration, log *zap.Logger) *HTTPClient {
	if log == nil {
		log = zap.NewNop()
	}
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "inventory",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// a missing product is an answer, not an outage
			return err == nil || errors.Is(err, ErrProductNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

// GetStock fetches the stock of productID
func (c *HTTPClient) GetStock(ctx context.Context, productID int64) (domain.Stock, error) {
	var resp stockResponse
	if err := c.getJSON(ctx, fmt.Sprintf("stock/%d", productID), &resp); err != nil {
		return domain.Stock{}, err
	}
	return domain.Stock{ProductID: productID, Amount: resp.Amount}, nil
}

// GetProduct fetches catalog metadata for productID
func (c *HTTPClient) GetProduct(ctx context.Context, productID int64) (domain.ProductMetadata, error) {
	var resp productResponse
	if err := c.getJSON(ctx, fmt.Sprintf("products/%d", productID), &resp); err != nil {
		return domain.ProductMetadata{}, err
	}
	meta := resp.metadata()
	if meta.ID == 0 {
		meta.ID = productID
	}
	return meta, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	// The fetch is shared by every caller waiting on path, so it runs detached
	// from any one caller and each caller stops waiting on its own ctx.
	ch := c.sfg.DoChan(path, func() (interface{}, error) {
		fetchCtx := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(fetchCtx, c.timeout)
			defer cancel()
		}
		return c.breaker.Execute(func() ([]byte, error) {
			return c.fetch(fetchCtx, path)
		})
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return fmt.Errorf("inventory %s: %w", path, ctx.Err())
	case res = <-ch:
	}

	v, err := res.Val, res.Err
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}

	if err := json.Unmarshal(v.([]byte), out); err != nil {
		return fmt.Errorf("decode %s failed: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("inventory call failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("inventory request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", path, ErrProductNotFound)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%s returned %d: %w", path, resp.StatusCode, ErrUnexpectedStatus)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", path, err)
	}
	return body, nil
}
