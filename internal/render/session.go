// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"context"
	"errors"
	"time"
)

// ErrContentTimeout indicates the expected content did not appear within the
// wait budget. Recoverable: the caller decides between retry and abort.
var ErrContentTimeout = errors.New("timed out waiting for rendered content")

// ErrSessionClosed indicates use of a session after Close.
var ErrSessionClosed = errors.New("rendering session closed")

// Session is a scripted browser execution context. One session owns exactly
// one underlying browser instance whose state (current page, cookies) is
// mutated by every navigation, so a session must not be shared across
// concurrent retrievals. Close must be called on every exit path.
type Session interface {
	// Open navigates to url and returns the document as initially served.
	Open(ctx context.Context, url string) (*Document, error)

	// WaitForContent blocks until any of the selectors matches, then returns
	// the rendered document. Selectors are tried in order, sharing the
	// timeout budget. When none matches it falls back to a page-size
	// heuristic; if that also fails it returns the last snapshot together
	// with ErrContentTimeout.
	WaitForContent(ctx context.Context, selectors []string, timeout time.Duration) (*Document, error)

	// ScrollOrPaginate reveals more results by scrolling to the bottom (and
	// clicking a more/next control when one is present), steps times.
	// Idempotent when no further content exists: the returned document
	// equals the current one rather than erroring.
	ScrollOrPaginate(ctx context.Context, steps int) (*Document, error)

	// Screenshot captures the current viewport as PNG for debug artifacts.
	Screenshot(ctx context.Context) ([]byte, error)

	// Close releases the underlying browser instance.
	Close() error
}
