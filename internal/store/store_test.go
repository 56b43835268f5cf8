// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/patent-harvester/internal/ident"
	"github.com/pdiddy/patent-harvester/pkg/types"
)

func TestNewRejectsEmptyDir(t *testing.T) {
	_, err := New("  ", false)
	require.Error(t, err)
}

func TestSavePDFAndHasPDF(t *testing.T) {
	s, err := New(t.TempDir(), false)
	require.NoError(t, err)

	assert.False(t, s.HasPDF("US9370745B2"))

	path, err := s.SavePDF("US9370745B2", []byte("%PDF-1.4"))
	require.NoError(t, err)

	assert.True(t, s.HasPDF("US9370745B2"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	// No stray temp files after the rename.
	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "US9370745B2.pdf", entries[0].Name())
}

func TestSaveHTML(t *testing.T) {
	s, err := New(t.TempDir(), false)
	require.NoError(t, err)

	path, err := s.SaveHTML("US11833153B2", []byte("<html></html>"))
	require.NoError(t, err)
	assert.Equal(t, ".html", filepath.Ext(path))
	assert.FileExists(t, path)
}

func TestDebugWritesAreNoOpsWhenDisabled(t *testing.T) {
	s, err := New(t.TempDir(), false)
	require.NoError(t, err)

	path, err := s.SaveSnapshot("search_initial", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = s.SaveDOM("search_initial", "<html></html>")
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = s.WriteSummary(&types.RunSummary{Topic: "x"})
	require.NoError(t, err)
	assert.Empty(t, path)

	assert.NoDirExists(t, filepath.Join(s.Dir(), "debug"))
}

func TestDebugArtifacts(t *testing.T) {
	s, err := New(t.TempDir(), true)
	require.NoError(t, err)

	snap, err := s.SaveSnapshot("US9370745B2 step 1", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "US9370745B2_step_1.png", filepath.Base(snap))

	dom, err := s.SaveDOM("search scroll/3", "<html></html>")
	require.NoError(t, err)
	assert.Equal(t, "search_scroll3.html", filepath.Base(dom))
}

func TestSummaryRoundTrip(t *testing.T) {
	s, err := New(t.TempDir(), true)
	require.NoError(t, err)

	sum := &types.RunSummary{
		Topic:     "ammonia synthesis",
		Requested: 3,
		Found:     2,
		Started:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Elapsed:   42 * time.Second,
		Outcomes: []types.Outcome{
			{Identifier: "US9370745B2", Status: types.StatusPDFSaved, ArtifactPath: "p/US9370745B2.pdf", Attempts: 1},
			{Identifier: "US10584047B2", Status: types.StatusHTMLSaved, ArtifactPath: "p/US10584047B2.html", Attempts: 2},
			{Identifier: "US11833153B2", Status: types.StatusFailed, Error: "HTTP 429 after 4 attempts", Attempts: 4},
		},
	}

	path, err := s.WriteSummary(sum)
	require.NoError(t, err)
	require.NotEmpty(t, path)

	got, err := ReadSummary(path)
	require.NoError(t, err)

	require.Len(t, got.Outcomes, len(sum.Outcomes))
	for i, o := range sum.Outcomes {
		assert.Equal(t, o.Identifier, got.Outcomes[i].Identifier)
		assert.Equal(t, o.Status, got.Outcomes[i].Status)
	}
	assert.Equal(t, sum.Topic, got.Topic)
	assert.Equal(t, 2, got.Saved())
	assert.Equal(t, 1, got.Failed())
}

func TestWriteIDList(t *testing.T) {
	s, err := New(t.TempDir(), false)
	require.NoError(t, err)

	a, _ := ident.Parse("US9370745B2")
	b, _ := ident.Parse("US10584047B2")
	path, err := s.WriteIDList("ammonia synthesis", []ident.ID{a, b})
	require.NoError(t, err)
	assert.Equal(t, "ammonia_synthesis_patent_ids.txt", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "US9370745B2\nUS10584047B2\n", string(data))

	// Empty list writes nothing.
	path, err = s.WriteIDList("empty", nil)
	require.NoError(t, err)
	assert.Empty(t, path)
}
