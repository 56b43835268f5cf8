// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/patent-harvester/pkg/types"
)

func testSummary() *types.RunSummary {
	return &types.RunSummary{
		Topic:     "ammonia synthesis",
		Requested: 3,
		Found:     3,
		Started:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Elapsed:   90 * time.Second,
		Outcomes: []types.Outcome{
			{Identifier: "US9370745B2", Status: types.StatusPDFSaved, ArtifactPath: "patents/US9370745B2.pdf", Attempts: 1},
			{Identifier: "US10584047B2", Status: types.StatusHTMLSaved, ArtifactPath: "patents/US10584047B2.html", Attempts: 3},
			{Identifier: "US11833153B2", Status: types.StatusNotFound, Attempts: 2, Error: "no document available"},
		},
	}
}

func TestRecordAndListRuns(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	ctx := context.Background()
	runID, err := l.RecordRun(ctx, testSummary())
	require.NoError(t, err)
	require.Positive(t, runID)

	runs, err := l.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	rec := runs[0]
	assert.Equal(t, runID, rec.ID)
	assert.Equal(t, "ammonia synthesis", rec.Topic)
	assert.Equal(t, 1, rec.PDFSaved)
	assert.Equal(t, 1, rec.HTMLSaved)
	assert.Equal(t, 1, rec.NotFound)
	assert.Equal(t, 0, rec.Failed)
	assert.Equal(t, 90*time.Second, rec.Elapsed)
}

func TestOutcomesPreserveOrder(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	ctx := context.Background()
	runID, err := l.RecordRun(ctx, testSummary())
	require.NoError(t, err)

	outcomes, err := l.Outcomes(ctx, runID)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, "US9370745B2", outcomes[0].Identifier)
	assert.Equal(t, "US10584047B2", outcomes[1].Identifier)
	assert.Equal(t, "US11833153B2", outcomes[2].Identifier)
	assert.Equal(t, types.StatusNotFound, outcomes[2].Status)
	assert.Equal(t, "no document available", outcomes[2].Error)
}

func TestRunsNewestFirst(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	ctx := context.Background()
	first := testSummary()
	second := testSummary()
	second.Topic = "carbon capture"

	_, err = l.RecordRun(ctx, first)
	require.NoError(t, err)
	_, err = l.RecordRun(ctx, second)
	require.NoError(t, err)

	runs, err := l.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "carbon capture", runs[0].Topic)
	assert.Equal(t, "ammonia synthesis", runs[1].Topic)
}
