package orders

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"billsplit/bill"
	"billsplit/libs/cache"
	"billsplit/metrics"
)

// Source fetches the order history of a table.
type Source interface {
	FetchOrders(ctx context.Context, tableID string) ([]bill.Order, error)
}

// HTTPSource reads the order history from the remote order service.
type HTTPSource struct {
	urlTemplate string
	client      *http.Client
}

// NewHTTPSource builds a source for urlTemplate, in which "{table}" is replaced by
// the escaped table id. A nil client gets a 10 second timeout.
func NewHTTPSource(urlTemplate string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSource{urlTemplate: urlTemplate, client: client}
}

func (s *HTTPSource) FetchOrders(ctx context.Context, tableID string) ([]bill.Order, error) {
	endpoint := strings.ReplaceAll(s.urlTemplate, "{table}", url.PathEscape(tableID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build order history request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order history for table %s: %w", tableID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read order history for table %s: %w", tableID, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("order history for table %s: unexpected status %d", tableID, resp.StatusCode)
	}

	records, err := Decode(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode order history for table %s: %w", tableID, err)
	}
	return Normalize(records), nil
}

// FileSource serves the same order history file for every table.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) FetchOrders(_ context.Context, _ string) ([]bill.Order, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read order history file: %w", err)
	}
	records, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode order history file %s: %w", s.path, err)
	}
	return Normalize(records), nil
}

// Invalidator is a Source that can drop what it cached for a table.
type Invalidator interface {
	Invalidate(tableID string)
}

// CachedSource shares fetches of the same table between concurrent callers and
// serves recent results from memory.
type CachedSource struct {
	source Source
	cache  *cache.SingleFlight[[]bill.Order]
}

func NewCachedSource(source Source, ttl time.Duration) *CachedSource {
	return &CachedSource{
		source: source,
		cache:  cache.NewSingleFlight[[]bill.Order](ttl),
	}
}

func (s *CachedSource) FetchOrders(ctx context.Context, tableID string) ([]bill.Order, error) {
	orders, result, err := s.cache.Get(ctx, tableID, func(ctx context.Context) ([]bill.Order, error) {
		return s.source.FetchOrders(ctx, tableID)
	})
	switch result {
	case cache.Hit:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
	case cache.Shared:
		metrics.CacheLookups.WithLabelValues("shared").Inc()
	default:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}
	return orders, err
}

// Invalidate drops the cached history of a table so the next fetch goes upstream.
func (s *CachedSource) Invalidate(tableID string) {
	s.cache.Invalidate(tableID)
}
