// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/patent-harvester/internal/ident"
	"github.com/pdiddy/patent-harvester/internal/ledger"
	"github.com/pdiddy/patent-harvester/internal/store"
	"github.com/pdiddy/patent-harvester/pkg/types"
)

type fakeExtractor struct {
	ids []string
	err error
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, _ int) (*ident.Set, error) {
	if f.err != nil {
		return nil, f.err
	}
	set := ident.NewSet(ident.DefaultKindOrder)
	for _, raw := range f.ids {
		id, ok := ident.Parse(raw)
		if !ok {
			panic("bad fixture id " + raw)
		}
		set.Add(id)
	}
	return set, nil
}

// fakeRetriever records the identifiers it sees and answers from a script.
type fakeRetriever struct {
	mu      sync.Mutex
	seen    []string
	status  map[string]types.Status
	failOn  string
	failAll bool
	sleep   time.Duration
	cancel  context.CancelFunc
	callers int
}

func (f *fakeRetriever) Retrieve(_ context.Context, id ident.ID) (types.Outcome, error) {
	f.mu.Lock()
	f.seen = append(f.seen, id.String())
	f.callers++
	f.mu.Unlock()

	if f.sleep > 0 {
		time.Sleep(f.sleep)
	}
	if f.cancel != nil {
		f.cancel()
	}
	if f.failAll || f.failOn == id.String() {
		return types.Outcome{Identifier: id.String(), Status: types.StatusFailed, Error: "session lost"},
			errors.New("rendering session lost")
	}
	st := types.StatusPDFSaved
	if f.status != nil {
		if s, ok := f.status[id.String()]; ok {
			st = s
		}
	}
	return types.Outcome{Identifier: id.String(), Status: st}, nil
}

func (f *fakeRetriever) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

func newRunner(t *testing.T, ext Extractor, rets ...Retriever) *Runner {
	t.Helper()
	st, err := store.New(t.TempDir(), false)
	require.NoError(t, err)
	return &Runner{
		Extractor:  ext,
		Retrievers: rets,
		Store:      st,
		Logger:     zap.NewNop(),
	}
}

func TestRunAllSucceedInOrder(t *testing.T) {
	ext := &fakeExtractor{ids: []string{"US7654321B2", "EP1234567A1", "JP2019123456A"}}
	ret := &fakeRetriever{}
	r := newRunner(t, ext, ret)

	sum, err := r.Run(context.Background(), "fuel cells", 10)
	require.NoError(t, err)

	require.Len(t, sum.Outcomes, 3)
	assert.Equal(t, 3, sum.Found)
	assert.Equal(t, []string{"US7654321B2", "EP1234567A1", "JP2019123456A"}, ret.calls())
	for i, want := range []string{"US7654321B2", "EP1234567A1", "JP2019123456A"} {
		assert.Equal(t, want, sum.Outcomes[i].Identifier)
	}
	assert.Equal(t, 3, sum.Saved())
}

func TestRunPartialFailureIsNotFatal(t *testing.T) {
	ext := &fakeExtractor{ids: []string{"US7654321B2", "EP1234567A1"}}
	ret := &fakeRetriever{status: map[string]types.Status{"EP1234567A1": types.StatusNotFound}}
	r := newRunner(t, ext, ret)

	sum, err := r.Run(context.Background(), "topic", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Saved())
	assert.Equal(t, 1, sum.Failed())
}

func TestRunZeroResultsIsTotalFailure(t *testing.T) {
	r := newRunner(t, &fakeExtractor{}, &fakeRetriever{})

	sum, err := r.Run(context.Background(), "nonexistent widget", 10)
	require.ErrorIs(t, err, ErrNoResults)
	require.NotNil(t, sum)
	assert.Zero(t, sum.Found)
	assert.Empty(t, sum.Outcomes)
}

func TestRunAllRetrievalsFailedIsTotalFailure(t *testing.T) {
	ext := &fakeExtractor{ids: []string{"US7654321B2"}}
	ret := &fakeRetriever{status: map[string]types.Status{"US7654321B2": types.StatusFailed}}
	r := newRunner(t, ext, ret)

	sum, err := r.Run(context.Background(), "topic", 1)
	require.ErrorIs(t, err, ErrAllFailed)
	assert.Len(t, sum.Outcomes, 1)
}

func TestRunExtractionErrorAbortsRun(t *testing.T) {
	r := newRunner(t, &fakeExtractor{err: errors.New("browser failed to launch")}, &fakeRetriever{})

	sum, err := r.Run(context.Background(), "topic", 10)
	require.Error(t, err)
	assert.Nil(t, sum)
}

func TestRunResourceFailureShortCircuitsRemaining(t *testing.T) {
	ext := &fakeExtractor{ids: []string{"US7654321B2", "EP1234567A1", "JP2019123456A"}}
	ret := &fakeRetriever{failOn: "EP1234567A1"}
	r := newRunner(t, ext, ret)

	// The first identifier saved before the failure, so the exit contract
	// treats the run as partial.
	sum, err := r.Run(context.Background(), "topic", 10)
	require.NoError(t, err)

	// The failing identifier was the last one actually attempted.
	assert.Equal(t, []string{"US7654321B2", "EP1234567A1"}, ret.calls())

	// The summary still covers every identifier.
	require.Len(t, sum.Outcomes, 3)
	assert.Equal(t, 1, sum.Saved())
	assert.Equal(t, types.StatusFailed, sum.Outcomes[2].Status)
	assert.Contains(t, sum.Outcomes[2].Error, "resource failure")
}

func TestRunCancellationStopsAtIdentifierBoundary(t *testing.T) {
	ext := &fakeExtractor{ids: []string{"US7654321B2", "EP1234567A1", "JP2019123456A"}}
	ctx, cancel := context.WithCancel(context.Background())
	ret := &fakeRetriever{cancel: cancel}
	r := newRunner(t, ext, ret)

	sum, err := r.Run(ctx, "topic", 10)
	require.NoError(t, err)

	// The in-flight retrieval finished; the rest were never started.
	assert.Equal(t, []string{"US7654321B2"}, ret.calls())
	require.Len(t, sum.Outcomes, 3)
	assert.Equal(t, types.StatusFailed, sum.Outcomes[1].Status)
	assert.Equal(t, "run cancelled", sum.Outcomes[1].Error)
	assert.Equal(t, types.StatusFailed, sum.Outcomes[2].Status)
}

func TestRunConcurrentPreservesResultSetOrder(t *testing.T) {
	ids := []string{"US7654321B2", "EP1234567A1", "JP2019123456A", "CN108123456B", "KR101234567B1"}
	ext := &fakeExtractor{ids: ids}
	rets := []Retriever{
		&fakeRetriever{sleep: 30 * time.Millisecond},
		&fakeRetriever{sleep: 5 * time.Millisecond},
		&fakeRetriever{},
	}
	r := newRunner(t, ext, rets...)
	r.Rate = rate.NewLimiter(rate.Limit(1000), 1000)

	sum, err := r.Run(context.Background(), "topic", 10)
	require.NoError(t, err)
	require.Len(t, sum.Outcomes, len(ids))
	for i, want := range ids {
		assert.Equal(t, want, sum.Outcomes[i].Identifier)
	}
	assert.Equal(t, len(ids), sum.Saved())
}

func TestRunConcurrentResourceFailureCoversAll(t *testing.T) {
	// Index dispatch does not pin identifiers to workers, so every worker
	// fails every retrieval it is handed; the all-failed contract must hold
	// under any scheduling.
	ids := []string{"US7654321B2", "EP1234567A1", "JP2019123456A", "CN108123456B"}
	ext := &fakeExtractor{ids: ids}
	rets := []Retriever{
		&fakeRetriever{failAll: true},
		&fakeRetriever{failAll: true, sleep: 20 * time.Millisecond},
	}
	r := newRunner(t, ext, rets...)

	sum, err := r.Run(context.Background(), "topic", 10)
	require.ErrorIs(t, err, ErrAllFailed)
	require.Len(t, sum.Outcomes, len(ids))
	for _, o := range sum.Outcomes {
		assert.Equal(t, types.StatusFailed, o.Status)
	}
}

func TestRunRecordsLedger(t *testing.T) {
	led, err := ledger.Open(t.TempDir())
	require.NoError(t, err)
	defer led.Close()

	ext := &fakeExtractor{ids: []string{"US7654321B2"}}
	r := newRunner(t, ext, &fakeRetriever{})
	r.Ledger = led

	_, err = r.Run(context.Background(), "battery separators", 1)
	require.NoError(t, err)

	runs, err := led.Runs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "battery separators", runs[0].Topic)
}

func TestRunSequentialDelayBetweenRetrievals(t *testing.T) {
	ext := &fakeExtractor{ids: []string{"US7654321B2", "EP1234567A1", "JP2019123456A"}}
	ret := &fakeRetriever{}
	r := newRunner(t, ext, ret)
	r.Delay = 20 * time.Millisecond

	start := time.Now()
	_, err := r.Run(context.Background(), "topic", 10)
	require.NoError(t, err)
	// Two inter-item pauses for three identifiers.
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}
