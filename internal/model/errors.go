package model

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Kind classifies a failure so the poller can decide what to do with it.
type Kind int

const (
	KindUnknown Kind = iota
	KindFatal
	KindTransport
	KindShape
	KindDomain
	KindDelivery
)

func (k Kind) String() string {
	switch k {
	case KindFatal:
		return "fatal"
	case KindTransport:
		return "transport"
	case KindShape:
		return "shape"
	case KindDomain:
		return "domain"
	case KindDelivery:
		return "delivery"
	default:
		return "unknown"
	}
}

var (
	// Fatal
	ErrMissingCredentials = errors.New("required credentials are missing")

	// Transport
	ErrAnswer    = errors.New("unexpected API answer")
	ErrOperation = errors.New("API request failed")

	// Shape
	ErrTypeMismatch  = errors.New("API response is not an object")
	ErrMissingKey    = errors.New("expected key is missing in API response")
	ErrMissingCursor = errors.New("key 'current_date' is missing in API response")
	ErrShape         = errors.New("API response has unexpected shape")

	// Domain
	ErrUnknownStatus = errors.New("unknown homework status")

	// Delivery
	ErrDelivery = errors.New("telegram delivery failed")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrMissingCredentials, KindFatal},
	{ErrAnswer, KindTransport},
	{ErrOperation, KindTransport},
	{ErrTypeMismatch, KindShape},
	{ErrMissingKey, KindShape},
	{ErrMissingCursor, KindShape},
	{ErrShape, KindShape},
	{ErrUnknownStatus, KindDomain},
	{ErrDelivery, KindDelivery},
}

// KindOf returns the kind of the first known sentinel found in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// AnswerError is returned when the API answers with a status other than 200.
type AnswerError struct {
	StatusCode int
	Reason     string
	Body       string
	Endpoint   string
	Headers    http.Header
	Params     url.Values
}

func (e *AnswerError) Error() string {
	return fmt.Sprintf("API answered %d %s: endpoint %s, params %s",
		e.StatusCode, e.Reason, e.Endpoint, e.Params.Encode())
}

func (e *AnswerError) Is(target error) bool { return target == ErrAnswer }

// Diagnostics renders everything known about the failed exchange.
// The authorization header is masked.
func (e *AnswerError) Diagnostics() string {
	var b strings.Builder
	fmt.Fprintf(&b, "status=%d reason=%q endpoint=%s params=%s", e.StatusCode, e.Reason, e.Endpoint, e.Params.Encode())
	fmt.Fprintf(&b, " headers=%v body=%q", MaskHeaders(e.Headers), e.Body)
	return b.String()
}

// OperationError wraps any failure that happened while talking to the API.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

func (e *OperationError) Is(target error) bool { return target == ErrOperation }

// DeliveryError is returned when a message could not be sent to the chat.
type DeliveryError struct {
	ChatID   string
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("send to chat %s failed after %d attempt(s): %v", e.ChatID, e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func (e *DeliveryError) Is(target error) bool { return target == ErrDelivery }

// MaskHeaders returns a copy of h with credentials hidden.
func MaskHeaders(h http.Header) http.Header {
	masked := h.Clone()
	if masked == nil {
		return http.Header{}
	}
	if v := masked.Get("Authorization"); v != "" {
		scheme, _, _ := strings.Cut(v, " ")
		masked.Set("Authorization", scheme+" ***")
	}
	return masked
}
