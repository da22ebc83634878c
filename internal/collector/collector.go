package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"HomeworkSentinel/internal/model"
)

// MockFetcher returns scripted answers for development and testing.
// Each Fetch consumes the next entry; the last entry repeats once exhausted.
type MockFetcher struct {
	mu        sync.Mutex
	Responses []string
	Errs      []error
	FromDates []int64
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) Fetch(_ context.Context, fromDate int64) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := len(m.FromDates)
	m.FromDates = append(m.FromDates, fromDate)
	if n := len(m.Errs); n > 0 {
		if err := m.Errs[min(i, n-1)]; err != nil {
			return nil, err
		}
	}
	if len(m.Responses) == 0 {
		return json.RawMessage(`{"homeworks":[],"current_date":0}`), nil
	}
	return json.RawMessage(m.Responses[min(i, len(m.Responses)-1)]), nil
}

// Calls returns the from_date of every Fetch made so far.
func (m *MockFetcher) Calls() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.FromDates...)
}

// Collector fetches one page of homework statuses and validates it.
type Collector struct {
	Fetcher Fetcher
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher) *Collector {
	return &Collector{Fetcher: fetcher}
}

// Collect fetches statuses changed since fromDate. The returned cursor is the
// server's current_date when the answer carried one and fromDate otherwise.
// It is valid even when err is not nil.
func (c *Collector) Collect(ctx context.Context, fromDate int64) ([]model.Homework, int64, error) {
	raw, err := c.Fetcher.Fetch(ctx, fromDate)
	if err != nil {
		return nil, fromDate, fmt.Errorf("fetch from %s: %w", c.Fetcher.Name(), err)
	}

	cursor := fromDate
	if ts, ok := CurrentDate(raw); ok {
		cursor = ts
	}

	homeworks, err := CheckResponse(raw)
	if err != nil {
		return nil, cursor, fmt.Errorf("check response: %w", err)
	}
	return homeworks, cursor, nil
}
