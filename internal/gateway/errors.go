package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/zenzoro/zenzoro/internal/coingecko"
	"github.com/zenzoro/zenzoro/internal/symbols"
)

// Kind classifies a gateway failure. The lower layers return their most
// specific error; classification into the caller-visible taxonomy happens
// exactly once, here, and the HTTP status mapping exactly once in api.
type Kind string

const (
	KindInvalidParameter    Kind = "invalid_parameter"
	KindUnknownAsset        Kind = "unknown_asset"
	KindAssetNotFound       Kind = "asset_not_found"
	KindUpstreamTimeout     Kind = "upstream_timeout"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindInternal            Kind = "internal_error"
)

// Error is a classified gateway failure. Message is safe to show callers;
// Err keeps the underlying cause for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify maps an error onto the taxonomy. Anything unrecognized becomes an
// internal error; that case is expected to be rare and callers always log it
// with its cause.
func Classify(err error) *Error {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr
	}

	var unknown *symbols.UnknownAssetError
	if errors.As(err, &unknown) {
		return &Error{Kind: KindUnknownAsset, Message: unknown.Error(), Err: err}
	}

	var invalidDays *coingecko.InvalidDaysError
	if errors.As(err, &invalidDays) {
		return &Error{Kind: KindInvalidParameter, Message: invalidDays.Error(), Err: err}
	}

	switch {
	case errors.Is(err, coingecko.ErrNotFound):
		return &Error{Kind: KindAssetNotFound, Message: "asset not found upstream", Err: err}
	case errors.Is(err, coingecko.ErrTimeout):
		return &Error{Kind: KindUpstreamTimeout, Message: "upstream request timed out", Err: err}
	case errors.Is(err, coingecko.ErrRateLimited):
		return &Error{Kind: KindUpstreamUnavailable, Message: "upstream is rate limiting requests", Err: err}
	}

	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// ClassifyUpstream is Classify for errors returned by an upstream call site.
// Whatever is not specifically recognized there is still an upstream failure
// (connection refused, malformed payload), not an internal bug. A
// caller-cancelled context stays unclassified.
func ClassifyUpstream(err error) *Error {
	e := Classify(err)
	if e.Kind == KindInternal && !errors.Is(err, context.Canceled) {
		return &Error{Kind: KindUpstreamUnavailable, Message: "upstream request failed", Err: err}
	}
	return e
}
