// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/patent-harvester/internal/httputil"
)

// maxFetchBytes limits direct-fetch response bodies. Patent PDFs run to a
// few tens of megabytes at most.
const maxFetchBytes = 64 * 1024 * 1024

// FetchResult is the outcome of a direct fetch: the final status, declared
// content type, and body. Transient statuses have already been retried by
// the time a FetchResult is returned.
type FetchResult struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Attempts    int
}

// IsPDF reports whether the response declares a PDF body.
func (r *FetchResult) IsPDF() bool {
	return r.StatusCode == http.StatusOK && strings.Contains(r.ContentType, "application/pdf")
}

// IsHTML reports whether the response declares an HTML body.
func (r *FetchResult) IsHTML() bool {
	return r.StatusCode == http.StatusOK && strings.Contains(r.ContentType, "text/html")
}

// DirectFetch retrieves url without script execution: a plain HTTP GET with
// transient-status retry. Cheaper than a rendering session and preferred
// whenever the endpoint serves statically. A non-2xx final status is not an
// error; callers branch on the returned status code.
func DirectFetch(ctx context.Context, client *http.Client, url, userAgent, accept string, maxRetries int) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &FetchResult{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, attempts, err := httputil.DoWithRetry(ctx, client, req, maxRetries)
	if err != nil {
		return &FetchResult{Attempts: attempts}, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return &FetchResult{StatusCode: resp.StatusCode, Attempts: attempts},
			fmt.Errorf("reading response from %s: %w", url, err)
	}

	return &FetchResult{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Attempts:    attempts,
	}, nil
}
