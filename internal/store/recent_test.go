package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"glasscast/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLocal(t *testing.T) *LocalStore {
	t.Helper()
	local, err := OpenLocalStore(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })
	return local
}

func snapshotAt(name string, lat, lon float64) models.WeatherSnapshot {
	return models.WeatherSnapshot{
		CityName:    name,
		Coordinates: models.Coordinates{Lat: lat, Lon: lon},
	}
}

func TestRecentSearchCache_NewestFirst(t *testing.T) {
	cache := NewRecentSearchCache(newTestLocal(t), 10, zap.NewNop())

	cache.Add(snapshotAt("London", 51.5, -0.12))
	cache.Add(snapshotAt("Paris", 48.85, 2.35))

	entries := cache.List()
	require.Len(t, entries, 2)
	assert.Equal(t, "Paris", entries[0].CityName)
	assert.Equal(t, "London", entries[1].CityName)
}

func TestRecentSearchCache_CapAtTen(t *testing.T) {
	cache := NewRecentSearchCache(newTestLocal(t), 10, zap.NewNop())

	for i := 0; i < 15; i++ {
		cache.Add(snapshotAt(fmt.Sprintf("City%d", i), float64(i), float64(i)))
	}

	entries := cache.List()
	require.Len(t, entries, 10)
	// Oldest five evicted, newest in front.
	assert.Equal(t, "City14", entries[0].CityName)
	assert.Equal(t, "City5", entries[9].CityName)
}

func TestRecentSearchCache_DuplicateCoordinatesMoveToFront(t *testing.T) {
	cache := NewRecentSearchCache(newTestLocal(t), 10, zap.NewNop())

	cache.Add(snapshotAt("London", 51.5, -0.12))
	cache.Add(snapshotAt("Paris", 48.85, 2.35))
	cache.Add(snapshotAt("London", 51.5, -0.12))

	entries := cache.List()
	require.Len(t, entries, 2)
	assert.Equal(t, "London", entries[0].CityName)
	assert.Equal(t, "Paris", entries[1].CityName)
}

func TestRecentSearchCache_SurvivesReload(t *testing.T) {
	local := newTestLocal(t)

	cache := NewRecentSearchCache(local, 10, zap.NewNop())
	cache.Add(snapshotAt("London", 51.5, -0.12))

	reloaded := NewRecentSearchCache(local, 10, zap.NewNop())
	entries := reloaded.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "London", entries[0].CityName)
}

func TestRecentSearchCache_UndecodableBlobReadsAsEmpty(t *testing.T) {
	local := newTestLocal(t)
	require.NoError(t, local.Put("recentSearches", []byte("not json")))

	cache := NewRecentSearchCache(local, 10, zap.NewNop())
	assert.Empty(t, cache.List())
}

func TestRecentSearchCache_ClearRemovesPersistedState(t *testing.T) {
	local := newTestLocal(t)

	cache := NewRecentSearchCache(local, 10, zap.NewNop())
	cache.Add(snapshotAt("London", 51.5, -0.12))
	cache.Clear()

	assert.Empty(t, cache.List())

	reloaded := NewRecentSearchCache(local, 10, zap.NewNop())
	assert.Empty(t, reloaded.List())
}

func TestPreferences_DefaultAndRoundTrip(t *testing.T) {
	local := newTestLocal(t)
	prefs := NewPreferences(local, zap.NewNop())

	assert.Equal(t, models.Celsius, prefs.TemperatureUnit())

	require.NoError(t, prefs.SetTemperatureUnit(models.Fahrenheit))
	assert.Equal(t, models.Fahrenheit, prefs.TemperatureUnit())
}

func TestPreferences_InvalidStoredValueFallsBack(t *testing.T) {
	local := newTestLocal(t)
	require.NoError(t, local.Put("temperatureUnit", []byte("kelvin")))

	prefs := NewPreferences(local, zap.NewNop())
	assert.Equal(t, models.Celsius, prefs.TemperatureUnit())
}
