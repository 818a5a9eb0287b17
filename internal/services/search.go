package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"glasscast/internal/models"
	"glasscast/internal/store"

	"go.uber.org/zap"
)

// SearchPhase is where a query currently sits in the search lifecycle.
type SearchPhase string

const (
	PhaseIdle       SearchPhase = "idle"
	PhaseDebouncing SearchPhase = "debouncing"
	PhaseFetching   SearchPhase = "fetching"
	PhaseResults    SearchPhase = "results"
	PhaseEmpty      SearchPhase = "empty"
	PhaseError      SearchPhase = "error"
)

// SearchState is what the orchestrator publishes to its listener after each
// transition.
type SearchState struct {
	Phase   SearchPhase
	Query   string
	Results []models.WeatherSnapshot
	Error   string
}

// SearchOrchestrator debounces free-text city queries and runs them against
// the weather provider. Every keystroke supersedes whatever was in flight:
// a monotonically increasing generation number is captured when work starts,
// and a completed fetch whose generation is stale drops its result instead
// of publishing (last requester wins).
// SearchResult is a search hit annotated with the caller's favorite and
// recent-search state.
type SearchResult struct {
	Snapshot   models.WeatherSnapshot `json:"snapshot"`
	IsFavorite bool                   `json:"is_favorite"`
	IsRecent   bool                   `json:"is_recent"`
}

type SearchOrchestrator struct {
	client     WeatherAPI
	recent     *store.RecentSearchCache
	favorites  *store.FavoritesStore
	aggregator *Aggregator
	logger     *zap.Logger
	listener   func(SearchState)

	debounce time.Duration
	minQuery int

	mu         sync.Mutex
	generation uint64
	query      string
	timer      *time.Timer
}

func NewSearchOrchestrator(
	client WeatherAPI,
	recent *store.RecentSearchCache,
	favorites *store.FavoritesStore,
	aggregator *Aggregator,
	debounce time.Duration,
	minQuery int,
	logger *zap.Logger,
) *SearchOrchestrator {
	return &SearchOrchestrator{
		client:     client,
		recent:     recent,
		favorites:  favorites,
		aggregator: aggregator,
		debounce:   debounce,
		minQuery:   minQuery,
		logger:     logger,
	}
}

// SetListener registers the callback that receives state transitions. Call
// before any queries are issued.
func (o *SearchOrchestrator) SetListener(fn func(SearchState)) {
	o.mu.Lock()
	o.listener = fn
	o.mu.Unlock()
}

// SetQuery handles one keystroke. A trimmed query shorter than the minimum
// cancels pending work and goes straight to Idle; anything else restarts
// the debounce window.
func (o *SearchOrchestrator) SetQuery(query string) {
	trimmed := strings.TrimSpace(query)

	o.mu.Lock()
	o.generation++
	gen := o.generation
	o.query = trimmed
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.mu.Unlock()

	if len(trimmed) < o.minQuery {
		o.publish(gen, SearchState{Phase: PhaseIdle, Query: trimmed})
		return
	}

	// Debouncing goes out before the timer is armed so the listener never
	// sees Fetching for a generation it has not seen debounce.
	o.publish(gen, SearchState{Phase: PhaseDebouncing, Query: trimmed})

	o.mu.Lock()
	if gen == o.generation {
		o.timer = time.AfterFunc(o.debounce, func() {
			o.fetch(gen, trimmed)
		})
	}
	o.mu.Unlock()
}

// Submit bypasses the debounce and fetches immediately with whatever query
// is current. An empty query resolves to Idle.
func (o *SearchOrchestrator) Submit() {
	o.mu.Lock()
	o.generation++
	gen := o.generation
	query := o.query
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.mu.Unlock()

	if query == "" {
		o.publish(gen, SearchState{Phase: PhaseIdle})
		return
	}

	go o.fetch(gen, query)
}

// SearchNow is the synchronous submit path: it fetches immediately for the
// given query, skipping the debounce window, and annotates each hit with
// favorite and recent-search state.
func (o *SearchOrchestrator) SearchNow(ctx context.Context, query string) ([]SearchResult, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return []SearchResult{}, nil
	}

	responses, err := o.client.Search(ctx, trimmed)
	if err != nil {
		return nil, err
	}

	recents := o.recent.List()
	results := make([]SearchResult, 0, len(responses))
	for _, r := range responses {
		snapshot := SnapshotFromCurrent(r)
		result := SearchResult{Snapshot: snapshot}
		if o.favorites != nil {
			result.IsFavorite = o.favorites.IsFavorite(snapshot)
		}
		for _, recent := range recents {
			if models.SameLocation(recent.Coordinates, snapshot.Coordinates) {
				result.IsRecent = true
				break
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// Select records the chosen result in the recent-search cache and loads the
// full weather view for its coordinates.
func (o *SearchOrchestrator) Select(ctx context.Context, snapshot models.WeatherSnapshot) (*WeatherView, error) {
	o.recent.Add(snapshot)
	return o.aggregator.Fetch(ctx, snapshot.Coordinates.Lat, snapshot.Coordinates.Lon)
}

func (o *SearchOrchestrator) fetch(gen uint64, query string) {
	if o.superseded(gen) {
		return
	}
	o.publish(gen, SearchState{Phase: PhaseFetching, Query: query})

	results, err := o.client.Search(context.Background(), query)

	// Cancellation is cooperative: the network call was not interrupted,
	// but a superseded result is dropped rather than published.
	if o.superseded(gen) {
		o.logger.Debug("Dropping superseded search result", zap.String("query", query))
		return
	}

	if err != nil {
		o.publish(gen, SearchState{Phase: PhaseError, Query: query, Error: err.Error()})
		return
	}

	snapshots := make([]models.WeatherSnapshot, 0, len(results))
	for _, r := range results {
		snapshots = append(snapshots, SnapshotFromCurrent(r))
	}

	if len(snapshots) == 0 {
		o.publish(gen, SearchState{Phase: PhaseEmpty, Query: query, Results: snapshots})
		return
	}
	o.publish(gen, SearchState{Phase: PhaseResults, Query: query, Results: snapshots})
}

func (o *SearchOrchestrator) superseded(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return gen != o.generation
}

// publish delivers a state to the listener unless the generation has been
// superseded in the meantime.
func (o *SearchOrchestrator) publish(gen uint64, state SearchState) {
	o.mu.Lock()
	listener := o.listener
	current := o.generation
	o.mu.Unlock()

	if listener == nil || gen != current {
		return
	}
	listener(state)
}
