package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"glasscast/internal/models"
	"glasscast/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stateRecorder collects published search states.
type stateRecorder struct {
	mu     sync.Mutex
	states []SearchState
}

func (r *stateRecorder) record(s SearchState) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *stateRecorder) phases() []SearchPhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	phases := make([]SearchPhase, len(r.states))
	for i, s := range r.states {
		phases[i] = s.Phase
	}
	return phases
}

func (r *stateRecorder) last() (SearchState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return SearchState{}, false
	}
	return r.states[len(r.states)-1], true
}

func newTestOrchestrator(t *testing.T, fake *fakeWeatherAPI, debounce time.Duration) (*SearchOrchestrator, *stateRecorder) {
	t.Helper()

	local := newTestLocalStore(t)
	recent := store.NewRecentSearchCache(local, 10, zap.NewNop())
	agg := NewAggregator(fake, nil, nil, zap.NewNop())

	o := NewSearchOrchestrator(fake, recent, nil, agg, debounce, 2, zap.NewNop())
	rec := &stateRecorder{}
	o.SetListener(rec.record)
	return o, rec
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestSetQuery_RapidChangesFetchOnlyFinalQuery(t *testing.T) {
	fake := &fakeWeatherAPI{current: londonCurrent()}
	o, _ := newTestOrchestrator(t, fake, 40*time.Millisecond)

	o.SetQuery("Lo")
	time.Sleep(10 * time.Millisecond)
	o.SetQuery("Lon")
	time.Sleep(10 * time.Millisecond)
	o.SetQuery("London")

	waitFor(t, time.Second, func() bool {
		_, _, searches := fake.counts()
		return searches == 1
	})

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.searchQueries, 1)
	assert.Equal(t, "London", fake.searchQueries[0])
}

func TestSetQuery_ShortQueryGoesIdleWithoutFetch(t *testing.T) {
	fake := &fakeWeatherAPI{current: londonCurrent()}
	o, rec := newTestOrchestrator(t, fake, 20*time.Millisecond)

	o.SetQuery("L")
	time.Sleep(80 * time.Millisecond)

	_, _, searches := fake.counts()
	assert.Zero(t, searches)

	last, ok := rec.last()
	require.True(t, ok)
	assert.Equal(t, PhaseIdle, last.Phase)
	assert.Empty(t, last.Results)
}

func TestSetQuery_WhitespaceOnlyIsIdle(t *testing.T) {
	fake := &fakeWeatherAPI{current: londonCurrent()}
	o, rec := newTestOrchestrator(t, fake, 20*time.Millisecond)

	o.SetQuery("   ")
	time.Sleep(60 * time.Millisecond)

	_, _, searches := fake.counts()
	assert.Zero(t, searches)

	last, ok := rec.last()
	require.True(t, ok)
	assert.Equal(t, PhaseIdle, last.Phase)
}

func TestSubmit_BypassesDebounce(t *testing.T) {
	fake := &fakeWeatherAPI{current: londonCurrent()}
	o, rec := newTestOrchestrator(t, fake, 10*time.Second)

	o.SetQuery("London")
	o.Submit()

	waitFor(t, time.Second, func() bool {
		_, _, searches := fake.counts()
		return searches == 1
	})

	waitFor(t, time.Second, func() bool {
		last, ok := rec.last()
		return ok && last.Phase == PhaseResults
	})
	last, _ := rec.last()
	require.Len(t, last.Results, 1)
	assert.Equal(t, "London", last.Results[0].CityName)
}

func TestSetQuery_PhasesArriveInOrder(t *testing.T) {
	fake := &fakeWeatherAPI{current: londonCurrent()}
	o, rec := newTestOrchestrator(t, fake, time.Millisecond)

	o.SetQuery("London")

	waitFor(t, time.Second, func() bool {
		last, ok := rec.last()
		return ok && last.Phase == PhaseResults
	})

	// Even with a near-zero debounce the listener sees the full lifecycle
	// in order, never Fetching before Debouncing.
	assert.Equal(t,
		[]SearchPhase{PhaseDebouncing, PhaseFetching, PhaseResults},
		rec.phases())
}

func TestSetQuery_SupersededResultIsDropped(t *testing.T) {
	fake := &fakeWeatherAPI{current: londonCurrent(), searchDelay: 60 * time.Millisecond}
	o, rec := newTestOrchestrator(t, fake, 10*time.Millisecond)

	o.SetQuery("Paris")
	// Let the first fetch start, then supersede it while in flight.
	time.Sleep(30 * time.Millisecond)
	o.SetQuery("London")

	waitFor(t, 2*time.Second, func() bool {
		last, ok := rec.last()
		return ok && last.Phase == PhaseResults
	})

	// The Paris result completed after being superseded and must not have
	// been published; only the London result reaches the listener.
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, s := range rec.states {
		if s.Phase == PhaseResults {
			assert.Equal(t, "London", s.Query)
		}
	}
}

func TestSearch_EmptyResultsPublishEmptyPhase(t *testing.T) {
	fake := &fakeWeatherAPI{} // current nil: search yields no hits
	o, rec := newTestOrchestrator(t, fake, 10*time.Millisecond)

	o.SetQuery("xyzzy")

	waitFor(t, time.Second, func() bool {
		last, ok := rec.last()
		return ok && last.Phase == PhaseEmpty
	})

	last, _ := rec.last()
	assert.Empty(t, last.Results)
}

func TestSearchNow_ImmediateAndAnnotated(t *testing.T) {
	fake := &fakeWeatherAPI{
		current:  londonCurrent(),
		forecast: &models.ForecastResponse{},
	}
	o, _ := newTestOrchestrator(t, fake, 10*time.Second)

	results, err := o.SearchNow(context.Background(), "  London  ")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "London", results[0].Snapshot.CityName)
	assert.False(t, results[0].IsFavorite)
	assert.False(t, results[0].IsRecent)

	// Selecting the city records it, so the next search marks it recent.
	_, err = o.Select(context.Background(), results[0].Snapshot)
	require.NoError(t, err)

	results, err = o.SearchNow(context.Background(), "London")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].IsRecent)
}

func TestSearchNow_EmptyQueryNoFetch(t *testing.T) {
	fake := &fakeWeatherAPI{current: londonCurrent()}
	o, _ := newTestOrchestrator(t, fake, time.Millisecond)

	results, err := o.SearchNow(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, results)

	_, _, searches := fake.counts()
	assert.Zero(t, searches)
}

func TestSelect_AddsToRecentSearches(t *testing.T) {
	fake := &fakeWeatherAPI{
		current:  londonCurrent(),
		forecast: &models.ForecastResponse{},
	}
	o, _ := newTestOrchestrator(t, fake, time.Millisecond)

	snapshot := SnapshotFromCurrent(londonCurrent())
	view, err := o.Select(context.Background(), snapshot)
	require.NoError(t, err)
	assert.Equal(t, "London", view.Current.CityName)

	recents := o.recent.List()
	require.Len(t, recents, 1)
	assert.Equal(t, "London", recents[0].CityName)
}
