// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieve fetches the best available document artifact for one
// canonical patent identifier: PDF preferred, HTML fallback.
// Implements: prd002-retrieval (R1-R5); docs/ARCHITECTURE § Retrieval.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/patent-harvester/internal/httputil"
	"github.com/pdiddy/patent-harvester/internal/ident"
	"github.com/pdiddy/patent-harvester/internal/render"
	"github.com/pdiddy/patent-harvester/internal/store"
	"github.com/pdiddy/patent-harvester/pkg/types"
)

// Base URLs for document resolution. Declared as vars so tests can
// substitute httptest servers.
var (
	// pdfBases are candidate PDF endpoints, tried in order. The storage
	// bucket serves most grants directly; the page-relative path covers the
	// rest.
	pdfBases = []string{
		"https://patentimages.storage.googleapis.com/pdfs/",
		"https://patents.google.com/patent/pdf/",
	}

	// pageBase is the canonical patent page used for the HTML fallback.
	pageBase = "https://patents.google.com/patent/"
)

// pageSelectors lists markup the canonical patent page renders its title
// under, used when the HTML fallback goes through a rendering session.
var pageSelectors = []string{"h1", ".patent-title", "[itemprop='title']"}

// Retriever resolves and saves one document per identifier. When Session is
// nil the HTML fallback uses a direct fetch; the canonical patent pages serve
// statically, unlike the search interface. A non-nil Session must be
// exclusive to this retriever.
type Retriever struct {
	Client  *http.Client
	Session render.Session
	Store   *store.Store
	Logger  *zap.Logger
	Config  types.RetrievalConfig
	Debug   bool
}

// Retrieve runs the per-identifier state machine and returns an immutable
// outcome. All per-item failures are folded into the outcome; a non-nil
// error is resource-level (cancellation, session crash) and tells the
// orchestrator to short-circuit the rest of the run.
func (r *Retriever) Retrieve(ctx context.Context, id ident.ID) (types.Outcome, error) {
	name := id.String()
	out := types.Outcome{Identifier: name}

	// An existing artifact short-circuits the download. HTML counts too:
	// a patent saved through the fallback must not re-run the PDF probes
	// on every rerun.
	if r.Store.HasPDF(name) {
		out.Status = types.StatusPDFSaved
		out.ArtifactPath = r.Store.PDFPath(name)
		out.Skipped = true
		r.Logger.Info("skipped, artifact exists", zap.String("id", name))
		return out, nil
	}
	if r.Store.HasHTML(name) {
		out.Status = types.StatusHTMLSaved
		out.ArtifactPath = r.Store.HTMLPath(name)
		out.Skipped = true
		r.Logger.Info("skipped, artifact exists", zap.String("id", name))
		return out, nil
	}

	for _, base := range pdfBases {
		if err := ctx.Err(); err != nil {
			return r.failed(out, "cancelled"), err
		}

		pdfURL := base + name + ".pdf"
		res, err := render.DirectFetch(ctx, r.Client, pdfURL, r.Config.UserAgent, "application/pdf", r.Config.MaxRetries)
		out.Attempts += res.Attempts
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return r.failed(out, "cancelled"), cerr
			}
			// Network failures count against this endpoint only.
			r.Logger.Warn("pdf fetch failed", zap.String("url", pdfURL), zap.Error(err))
			continue
		}

		switch {
		case res.IsPDF():
			path, werr := r.Store.SavePDF(name, res.Body)
			if werr != nil {
				return r.failed(out, werr.Error()), nil
			}
			out.Status = types.StatusPDFSaved
			out.ArtifactPath = path
			r.Logger.Info("saved pdf", zap.String("id", name), zap.String("path", path), zap.Int("attempts", out.Attempts))
			return out, nil

		case httputil.Transient(res.StatusCode):
			// Retry budget exhausted inside DirectFetch.
			r.capturePage(&out, name+"_error", res)
			return r.failed(out, fmt.Sprintf("HTTP %d after %d attempts", res.StatusCode, res.Attempts)), nil
		}

		// 404 or a non-PDF body: fall through to the next candidate.
		r.Logger.Debug("no pdf at endpoint",
			zap.String("url", pdfURL),
			zap.Int("status", res.StatusCode),
			zap.String("content_type", res.ContentType))
	}

	return r.retrieveHTML(ctx, name, out)
}

// retrieveHTML is the fallback branch: fetch the canonical patent page and
// save its document tree.
func (r *Retriever) retrieveHTML(ctx context.Context, name string, out types.Outcome) (types.Outcome, error) {
	pageURL := pageBase + name + "/en"

	if r.Session != nil {
		return r.retrieveHTMLRendered(ctx, name, pageURL, out)
	}

	res, err := render.DirectFetch(ctx, r.Client, pageURL, r.Config.UserAgent, "text/html", r.Config.MaxRetries)
	out.Attempts += res.Attempts
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return r.failed(out, "cancelled"), cerr
		}
		return r.failed(out, err.Error()), nil
	}

	// Capture before branching so not-found and failed outcomes leave the
	// served error page behind for diagnosis.
	r.capturePage(&out, name+"_page", res)

	switch {
	case res.StatusCode == http.StatusNotFound:
		return r.notFound(out, "no document available"), nil
	case httputil.Transient(res.StatusCode):
		return r.failed(out, fmt.Sprintf("HTTP %d after %d attempts", res.StatusCode, res.Attempts)), nil
	case !res.IsHTML():
		return r.notFound(out, fmt.Sprintf("unexpected content type %q", res.ContentType)), nil
	}

	path, werr := r.Store.SaveHTML(name, res.Body)
	if werr != nil {
		return r.failed(out, werr.Error()), nil
	}
	out.Status = types.StatusHTMLSaved
	out.ArtifactPath = path
	r.Logger.Info("saved html", zap.String("id", name), zap.String("path", path), zap.Int("attempts", out.Attempts))
	return out, nil
}

// retrieveHTMLRendered drives the rendering session against the canonical
// page, for upstreams that stop serving it statically.
func (r *Retriever) retrieveHTMLRendered(ctx context.Context, name, pageURL string, out types.Outcome) (types.Outcome, error) {
	if _, err := r.Session.Open(ctx, pageURL); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return r.failed(out, "cancelled"), err
		}
		// The session is a shared resource; its failure ends the run.
		return r.failed(out, err.Error()), err
	}

	doc, err := r.Session.WaitForContent(ctx, pageSelectors, 0)
	r.captureRendered(ctx, &out, name+"_page", doc)
	switch {
	case errors.Is(err, render.ErrContentTimeout):
		return r.notFound(out, "page content did not render"), nil
	case err != nil:
		return r.failed(out, err.Error()), err
	}

	path, werr := r.Store.SaveHTML(name, []byte(doc.HTML))
	if werr != nil {
		return r.failed(out, werr.Error()), nil
	}
	out.Status = types.StatusHTMLSaved
	out.ArtifactPath = path
	r.Logger.Info("saved html", zap.String("id", name), zap.String("path", path))
	return out, nil
}

func (r *Retriever) failed(out types.Outcome, detail string) types.Outcome {
	out.Status = types.StatusFailed
	out.Error = detail
	r.Logger.Warn("retrieval failed", zap.String("id", out.Identifier), zap.String("detail", detail))
	return out
}

func (r *Retriever) notFound(out types.Outcome, detail string) types.Outcome {
	out.Status = types.StatusNotFound
	out.Error = detail
	r.Logger.Info("document not found", zap.String("id", out.Identifier), zap.String("detail", detail))
	return out
}

// capturePage saves a direct-fetched page body as a debug artifact when it
// is renderable text.
func (r *Retriever) capturePage(out *types.Outcome, label string, res *render.FetchResult) {
	if !r.Debug || res == nil || !strings.Contains(res.ContentType, "text/html") {
		return
	}
	if path, err := r.Store.SaveDOM(label, string(res.Body)); err == nil && path != "" {
		out.DebugPaths = append(out.DebugPaths, path)
	}
}

// captureRendered saves a screenshot and document tree from the session.
// Failure diagnosis is the point of debug mode, so capture happens on every
// terminal state.
func (r *Retriever) captureRendered(ctx context.Context, out *types.Outcome, label string, doc *render.Document) {
	if !r.Debug {
		return
	}
	if png, err := r.Session.Screenshot(ctx); err == nil {
		if path, serr := r.Store.SaveSnapshot(label, png); serr == nil && path != "" {
			out.DebugPaths = append(out.DebugPaths, path)
		}
	}
	if doc != nil {
		if path, err := r.Store.SaveDOM(label, doc.HTML); err == nil && path != "" {
			out.DebugPaths = append(out.DebugPaths, path)
		}
	}
}
