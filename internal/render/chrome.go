// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/pdiddy/patent-harvester/pkg/types"
)

// snapshotJS reads the full serialized document tree.
const snapshotJS = `document.documentElement.outerHTML`

// scrollJS scrolls to the bottom of the page.
const scrollJS = `window.scrollTo(0, document.body.scrollHeight)`

// clickMoreJS clicks the first visible "more results" or "next page" control
// and reports whether one was found. The search interface loads further
// results either on scroll or behind such a control, depending on layout.
const clickMoreJS = `(() => {
	const buttons = Array.from(document.querySelectorAll('button, a[role="button"]'));
	for (const b of buttons) {
		const label = ((b.textContent || '') + ' ' + (b.getAttribute('aria-label') || '')).toLowerCase();
		if ((label.includes('more') || label.includes('next')) && b.offsetParent !== null && !b.disabled) {
			b.scrollIntoView(true);
			b.click();
			return true;
		}
	}
	return false;
})()`

// loadedPageMinBytes is the page-size threshold of the fallback heuristic: a
// tree this large is assumed to carry rendered results even when no expected
// selector matched.
const loadedPageMinBytes = 10000

// ChromeSession drives a headless (or headful) Chrome instance through the
// DevTools protocol. It implements Session.
type ChromeSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
	cfg         types.RenderConfig
	closed      bool
}

// run executes chromedp actions on the session context while observing the
// caller's context, so cancellation interrupts an in-flight navigate, wait,
// or scroll instead of waiting for it to finish. The session context owns
// the browser; cancelling the derived context aborts one operation without
// tearing the browser down.
func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	rctx, cancel := follow(s.ctx, ctx)
	defer cancel()
	if err := chromedp.Run(rctx, actions...); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		return err
	}
	return nil
}

// follow derives a cancellable child of parent that is additionally
// cancelled when other is done. The child keeps parent's values.
func follow(parent, other context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(other, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// NewChromeSession launches a browser per the render configuration. The
// returned session must be closed by the caller; a launch failure is a
// resource-level error.
func NewChromeSession(cfg types.RenderConfig, logger *zap.Logger) (*ChromeSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// Start the browser now so launch failures surface here, not on the
	// first navigation.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	logger.Info("rendering session started",
		zap.Bool("headless", cfg.Headless),
		zap.Int("window_width", cfg.WindowWidth),
		zap.Int("window_height", cfg.WindowHeight))

	return &ChromeSession{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      logger,
		cfg:         cfg,
	}, nil
}

// Open navigates to url and snapshots the served document.
func (s *ChromeSession) Open(ctx context.Context, url string) (*Document, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.logger.Debug("navigating", zap.String("url", url))
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return nil, fmt.Errorf("navigating to %s: %w", url, err)
	}
	return s.snapshot()
}

// WaitForContent waits for any of the selectors, dividing the timeout budget
// among them, then falls back to the page-size heuristic.
func (s *ChromeSession) WaitForContent(ctx context.Context, selectors []string, timeout time.Duration) (*Document, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = s.cfg.ContentTimeout
	}

	per := timeout
	if len(selectors) > 0 {
		per = timeout / time.Duration(len(selectors))
	}

	for _, sel := range selectors {
		wctx, wcancel := context.WithTimeout(ctx, per)
		err := s.run(wctx, chromedp.WaitReady(sel, chromedp.ByQuery))
		wcancel()
		if err == nil {
			s.logger.Debug("content found", zap.String("selector", sel))
			return s.snapshot()
		}
		// A per-selector deadline is an expected miss; caller cancellation
		// and a dead browser are not.
		if cerr := ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("waiting for content: %w", cerr)
		}
		if serr := s.ctx.Err(); serr != nil {
			return nil, fmt.Errorf("waiting for content: %w", serr)
		}
	}

	// None of the selectors matched. A large document tree usually means
	// the results rendered under markup we did not anticipate.
	doc, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	if doc.Len() >= loadedPageMinBytes {
		s.logger.Debug("content assumed loaded by page size", zap.Int("bytes", doc.Len()))
		return doc, nil
	}
	return doc, ErrContentTimeout
}

// ScrollOrPaginate scrolls to the bottom steps times, clicking a visible
// more/next control when one appears, and pausing after each step so newly
// revealed results can render.
func (s *ChromeSession) ScrollOrPaginate(ctx context.Context, steps int) (*Document, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var clicked bool
		err := s.run(ctx,
			chromedp.Evaluate(scrollJS, nil),
			chromedp.Evaluate(clickMoreJS, &clicked),
			chromedp.Sleep(s.cfg.ScrollPause),
		)
		if err != nil {
			return nil, fmt.Errorf("scrolling: %w", err)
		}
		if clicked {
			s.logger.Debug("clicked pagination control")
		}
	}
	return s.snapshot()
}

// Screenshot captures the current viewport as PNG.
func (s *ChromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

// Close releases the browser instance. Safe to call more than once.
func (s *ChromeSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	s.allocCancel()
	s.logger.Info("rendering session closed")
	return nil
}

func (s *ChromeSession) snapshot() (*Document, error) {
	var html, loc string
	err := chromedp.Run(s.ctx,
		chromedp.Location(&loc),
		chromedp.Evaluate(snapshotJS, &html),
	)
	if err != nil {
		return nil, fmt.Errorf("capturing document: %w", err)
	}
	return NewDocument(loc, html)
}
