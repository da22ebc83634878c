package collector

import (
	"context"
	"encoding/json"
)

// Fetcher defines the interface for fetching homework statuses.
type Fetcher interface {
	// Fetch returns the raw JSON body of the statuses changed since fromDate.
	Fetch(ctx context.Context, fromDate int64) (json.RawMessage, error)
	Name() string
}
