package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"HomeworkSentinel/internal/model"
)

var errMalformedBody = errors.New("response body is not valid JSON")

// PracticumFetcher implements Fetcher using the Practicum homework statuses API.
type PracticumFetcher struct {
	Endpoint string
	Token    string
	Client   *http.Client
	Debug    bool
}

// NewPracticumFetcher creates a new fetcher with optional proxy support.
func NewPracticumFetcher(endpoint, token, proxyURL string, timeout time.Duration) *PracticumFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &PracticumFetcher{
		Endpoint: endpoint,
		Token:    token,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (f *PracticumFetcher) Name() string { return "practicum" }

func (f *PracticumFetcher) Fetch(ctx context.Context, fromDate int64) (json.RawMessage, error) {
	params := url.Values{"from_date": {strconv.FormatInt(fromDate, 10)}}
	endpoint := f.Endpoint
	if strings.Contains(endpoint, "?") {
		endpoint += "&" + params.Encode()
	} else {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &model.OperationError{Op: "build homework statuses request", Err: err}
	}
	req.Header.Set("Authorization", "OAuth "+f.Token)

	log.Printf("[INFO] collector: requesting homework statuses from_date=%d", fromDate)
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &model.OperationError{Op: "get homework statuses", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.OperationError{Op: "read homework statuses", Err: err}
	}

	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if f.Debug {
		log.Printf("[DEBUG] collector: status=%d reason=%q endpoint=%s headers=%v params=%s body=%s",
			resp.StatusCode, reason, f.Endpoint, model.MaskHeaders(req.Header), params.Encode(), body)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &model.AnswerError{
			StatusCode: resp.StatusCode,
			Reason:     reason,
			Body:       string(body),
			Endpoint:   f.Endpoint,
			Headers:    req.Header.Clone(),
			Params:     params,
		}
	}
	if !json.Valid(body) {
		return nil, &model.OperationError{
			Op:  "decode homework statuses",
			Err: fmt.Errorf("%w: %.200s", errMalformedBody, body),
		}
	}
	return json.RawMessage(body), nil
}
