// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render owns the scripted browser session used to load
// JavaScript-rendered pages, and the cheaper direct-fetch path for endpoints
// that serve without script execution.
// Implements: prd001-extraction (R1: rendering session);
//
//	docs/ARCHITECTURE § Rendering.
package render

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a parsed snapshot of a rendered page. It is immutable: later
// navigation or scrolling in the session that produced it yields a new
// Document rather than mutating this one.
type Document struct {
	// URL is the page location at capture time.
	URL string

	// HTML is the serialized document tree.
	HTML string

	doc *goquery.Document
}

// NewDocument parses serialized HTML into a Document.
func NewDocument(url, html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return &Document{URL: url, HTML: html, doc: doc}, nil
}

// Find returns the selection matching a CSS selector.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// Len returns the size of the serialized tree, used by the loaded-page
// heuristic when no expected selector matches.
func (d *Document) Len() int {
	return len(d.HTML)
}
