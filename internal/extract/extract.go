// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract harvests canonical patent identifiers for a topic from the
// rendered search result page.
// Implements: prd001-extraction (R1-R5); docs/ARCHITECTURE § Extraction.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/pdiddy/patent-harvester/internal/ident"
	"github.com/pdiddy/patent-harvester/internal/render"
	"github.com/pdiddy/patent-harvester/internal/store"
	"github.com/pdiddy/patent-harvester/pkg/types"
)

// searchBase is the search interface URL. Declared as a var so tests can
// substitute their own endpoint.
var searchBase = "https://patents.google.com/"

// resultSelectors lists the markup shapes results have appeared under,
// tried in order. The interface is client-rendered and its structure shifts;
// the list ends with the broadest matches.
var resultSelectors = []string{
	"article",
	".search-result",
	"a[href*='/patent/']",
	"h3",
	"[data-docid]",
}

// tokenPattern matches identifier-shaped tokens in raw page source: two
// uppercase letters, a numeric body, an optional kind code.
var tokenPattern = regexp.MustCompile(`\b[A-Z]{2}\d{6,12}[A-Z]\d{0,2}\b`)

// defaultStallBudget bounds consecutive pagination steps yielding no new
// identifiers, so a stalled render cannot loop forever.
const defaultStallBudget = 10

// Extractor drives a rendering session against a topic query and yields an
// ordered, deduplicated identifier set.
type Extractor struct {
	Session render.Session
	Store   *store.Store
	Logger  *zap.Logger
	Search  types.SearchConfig
	Kinds   ident.KindOrder
	Debug   bool
}

// SearchURL builds the search interface URL for a topic.
func SearchURL(topic, language string) string {
	if language == "" {
		language = "en"
	}
	params := url.Values{
		"q":   {strings.TrimSpace(topic)},
		"hl":  {language},
		"num": {"100"},
		"tbm": {"pts"},
	}
	return searchBase + "?" + params.Encode()
}

// Extract collects up to maxCount canonical identifiers for the topic.
// Fewer than requested is not an error, and zero after the full pagination
// budget yields an empty set; upstream rendering variability makes both
// legitimate outcomes. maxCount of zero returns immediately without any
// session call.
func (e *Extractor) Extract(ctx context.Context, topic string, maxCount int) (*ident.Set, error) {
	set := ident.NewSet(e.Kinds)
	if maxCount <= 0 {
		return set, nil
	}
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("search topic is empty")
	}

	stallBudget := e.Search.StallBudget
	if stallBudget <= 0 {
		stallBudget = defaultStallBudget
	}

	searchURL := SearchURL(topic, e.Search.Language)
	e.Logger.Info("searching for patents",
		zap.String("topic", topic),
		zap.Int("max_count", maxCount),
		zap.String("url", searchURL))

	if _, err := e.Session.Open(ctx, searchURL); err != nil {
		return nil, fmt.Errorf("opening search page: %w", err)
	}

	doc, err := e.Session.WaitForContent(ctx, resultSelectors, 0)
	switch {
	case errors.Is(err, render.ErrContentTimeout):
		// Recoverable: scrape whatever did render.
		e.Logger.Warn("search results did not render in time, proceeding with current page")
	case err != nil:
		return nil, fmt.Errorf("waiting for search results: %w", err)
	}
	if doc == nil {
		doc, err = render.NewDocument(searchURL, "")
		if err != nil {
			return nil, err
		}
	}
	e.captureDebug(ctx, "search_initial", doc)

	e.harvest(doc, set, maxCount)

	stalls := 0
	for step := 1; set.Len() < maxCount && stalls < stallBudget; step++ {
		if err := ctx.Err(); err != nil {
			return set, err
		}

		doc, err = e.Session.ScrollOrPaginate(ctx, 1)
		if err != nil {
			return set, fmt.Errorf("paginating search results: %w", err)
		}

		added := e.harvest(doc, set, maxCount)
		e.captureDebug(ctx, fmt.Sprintf("search_scroll_%d", step), nil)

		if added == 0 {
			stalls++
		} else {
			stalls = 0
			e.Logger.Info("found patents", zap.Int("count", set.Len()))
		}
	}

	if set.Len() == 0 {
		e.Logger.Warn("no patents found for topic", zap.String("topic", topic))
		return set, nil
	}

	if path, err := e.Store.WriteIDList(topic, set.IDs()); err != nil {
		e.Logger.Warn("saving identifier list failed", zap.Error(err))
	} else if path != "" {
		e.Logger.Info("saved identifier list", zap.String("path", path))
	}

	e.Logger.Info("extraction complete",
		zap.Int("found", set.Len()),
		zap.Int("requested", maxCount),
		zap.Int("duplicates_discarded", len(set.Discarded())))
	return set, nil
}

// harvest scans one rendered document for identifier tokens and adds novel
// canonical identifiers, stopping new families at maxCount. Variants of
// already-collected families are still reconciled past the cap. Returns the
// number of new families added.
func (e *Extractor) harvest(doc *render.Document, set *ident.Set, maxCount int) int {
	added := 0

	add := func(raw string) {
		id, ok := ident.Parse(raw)
		if !ok {
			return
		}
		if set.Len() >= maxCount && !set.Contains(id) {
			return
		}
		if set.Add(id) == ident.Novel {
			added++
			e.Logger.Debug("found patent identifier", zap.String("id", id.String()))
		}
	}

	// Identifiers in result link hrefs: the most reliable source.
	doc.Find("a[href*='/patent/']").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			add(patentFromHref(href))
		}
	})

	// Result elements carrying a document-id attribute.
	doc.Find("[data-docid]").Each(func(_ int, sel *goquery.Selection) {
		if v, ok := sel.Attr("data-docid"); ok {
			add(v)
		}
	})

	// Last resort: identifier-shaped tokens anywhere in the page source.
	if set.Len() < maxCount {
		for _, tok := range tokenPattern.FindAllString(doc.HTML, -1) {
			add(tok)
		}
	}

	return added
}

// patentFromHref pulls the identifier segment out of a result link:
// "/patent/US9370745B2/en" yields "US9370745B2".
func patentFromHref(href string) string {
	i := strings.Index(href, "/patent/")
	if i < 0 {
		return ""
	}
	rest := href[i+len("/patent/"):]
	if j := strings.IndexAny(rest, "/?#"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

// captureDebug writes a screenshot (and the document tree when doc is
// non-nil) under the debug directory. Failures are logged, never fatal;
// debug capture must not take down a run.
func (e *Extractor) captureDebug(ctx context.Context, label string, doc *render.Document) {
	if !e.Debug {
		return
	}
	png, err := e.Session.Screenshot(ctx)
	if err != nil {
		e.Logger.Debug("screenshot failed", zap.String("label", label), zap.Error(err))
	} else if _, err := e.Store.SaveSnapshot(label, png); err != nil {
		e.Logger.Debug("saving snapshot failed", zap.String("label", label), zap.Error(err))
	}
	if doc != nil {
		if _, err := e.Store.SaveDOM(label, doc.HTML); err != nil {
			e.Logger.Debug("saving document tree failed", zap.String("label", label), zap.Error(err))
		}
	}
}
