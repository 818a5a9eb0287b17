package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"glasscast/internal/auth"
	"glasscast/internal/models"
	"glasscast/internal/services"
	"glasscast/internal/store"
	"glasscast/internal/widget"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWeatherAPI struct {
	current  *models.CurrentResponse
	forecast *models.ForecastResponse
	search   []*models.CurrentResponse
	err      error
}

func (f *fakeWeatherAPI) CurrentByCoords(ctx context.Context, lat, lon float64) (*models.CurrentResponse, error) {
	return f.current, f.err
}

func (f *fakeWeatherAPI) CurrentByCity(ctx context.Context, city string) (*models.CurrentResponse, error) {
	return f.current, f.err
}

func (f *fakeWeatherAPI) Forecast(ctx context.Context, lat, lon float64) (*models.ForecastResponse, error) {
	return f.forecast, f.err
}

func (f *fakeWeatherAPI) Search(ctx context.Context, query string) ([]*models.CurrentResponse, error) {
	return f.search, f.err
}

type fakeAuthProvider struct{}

func (fakeAuthProvider) SignUp(ctx context.Context, email, password string) (*auth.SignUpResult, error) {
	return &auth.SignUpResult{Session: fakeProviderSession()}, nil
}

func (fakeAuthProvider) SignIn(ctx context.Context, email, password string) (*auth.ProviderSession, error) {
	return fakeProviderSession(), nil
}

func (fakeAuthProvider) SignOut(ctx context.Context, accessToken string) error { return nil }

func (fakeAuthProvider) Recover(ctx context.Context, email, redirectTo string) error { return nil }

func (fakeAuthProvider) GetUser(ctx context.Context, accessToken string) (*auth.ProviderUser, error) {
	s := fakeProviderSession()
	return &s.User, nil
}

func fakeProviderSession() *auth.ProviderSession {
	return &auth.ProviderSession{
		AccessToken: "token-abc",
		User: auth.ProviderUser{
			ID:    "7b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d",
			Email: "user@example.com",
		},
	}
}

// emptyTableDB reports the favorites table as not provisioned, which the
// store treats as zero favorites.
type emptyTableDB struct{}

func (emptyTableDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (emptyTableDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, &pgconn.PgError{Code: "42P01"}
}

func (emptyTableDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func londonCurrent() *models.CurrentResponse {
	r := &models.CurrentResponse{
		Name:  "London",
		Coord: models.Coordinates{Lat: 51.5074, Lon: -0.1278},
		Weather: []models.WeatherCondition{
			{Main: "Clouds", Description: "overcast clouds", Icon: "04d"},
		},
	}
	r.Main.Temp = 18.5
	r.Main.TempMin = 15
	r.Main.TempMax = 21
	r.Main.Humidity = 70
	r.Sys.Country = "GB"
	return r
}

func newTestApp(t *testing.T, weather *fakeWeatherAPI) *fiber.App {
	t.Helper()
	log := zap.NewNop()

	local, err := store.OpenLocalStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })

	session := auth.NewSession(fakeAuthProvider{}, "glasscast://reset-password", log)
	favorites := store.NewFavoritesStore(emptyTableDB{}, log)
	recent := store.NewRecentSearchCache(local, 10, log)
	prefs := store.NewPreferences(local, log)
	bridge := widget.NewSnapshotBridge(local, log)

	aggregator := services.NewAggregator(weather, bridge, nil, log)
	search := services.NewSearchOrchestrator(weather, recent, favorites, aggregator, 350*time.Millisecond, 2, log)

	app := fiber.New()
	handler := NewHandler(session, aggregator, search, favorites, recent, prefs, bridge, log)
	SetupRoutes(app, handler, log)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestRoutes_Health(t *testing.T) {
	app := newTestApp(t, &fakeWeatherAPI{})

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestRoutes_UnknownPathIs404(t *testing.T) {
	app := newTestApp(t, &fakeWeatherAPI{})

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Endpoint not found", body["error"])
}

func TestRoutes_WeatherRequiresCoordinates(t *testing.T) {
	app := newTestApp(t, &fakeWeatherAPI{})

	resp, _ := doJSON(t, app, http.MethodGet, "/api/v1/weather?lat=51.5", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRoutes_WeatherMergesAndReportsUnit(t *testing.T) {
	weather := &fakeWeatherAPI{
		current:  londonCurrent(),
		forecast: &models.ForecastResponse{},
	}
	app := newTestApp(t, weather)

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/weather?lat=51.5074&lon=-0.1278", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "°C", body["unit"])
	view := body["weather"].(map[string]any)
	current := view["current"].(map[string]any)
	assert.Equal(t, "London", current["city_name"])
	assert.Equal(t, 18.5, current["temperature"])
}

func TestRoutes_WeatherConvertsToFahrenheitPreference(t *testing.T) {
	weather := &fakeWeatherAPI{
		current:  londonCurrent(),
		forecast: &models.ForecastResponse{},
	}
	app := newTestApp(t, weather)

	resp, _ := doJSON(t, app, http.MethodPut, "/api/v1/preferences/unit", fiber.Map{"unit": "°F"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/weather?lat=51.5074&lon=-0.1278", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "°F", body["unit"])
	view := body["weather"].(map[string]any)
	current := view["current"].(map[string]any)
	// 18.5 / 21 / 15 °C converted.
	assert.InDelta(t, 65.3, current["temperature"].(float64), 1e-9)
	assert.InDelta(t, 69.8, current["high"].(float64), 1e-9)
	assert.InDelta(t, 59.0, current["low"].(float64), 1e-9)
}

func TestRoutes_SearchAnnotatesResults(t *testing.T) {
	weather := &fakeWeatherAPI{search: []*models.CurrentResponse{londonCurrent()}}
	app := newTestApp(t, weather)

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/search?q=London", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	results := body["results"].([]any)
	require.Len(t, results, 1)
	hit := results[0].(map[string]any)
	assert.Equal(t, false, hit["is_favorite"])
	assert.Equal(t, false, hit["is_recent"])
}

func TestRoutes_TemperatureUnitRoundTrip(t *testing.T) {
	app := newTestApp(t, &fakeWeatherAPI{})

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/preferences/unit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "°C", body["unit"])

	resp, _ = doJSON(t, app, http.MethodPut, "/api/v1/preferences/unit", fiber.Map{"unit": "°F"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/preferences/unit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "°F", body["unit"])
}

func TestRoutes_TemperatureUnitRejectsUnknownValue(t *testing.T) {
	app := newTestApp(t, &fakeWeatherAPI{})

	resp, _ := doJSON(t, app, http.MethodPut, "/api/v1/preferences/unit", fiber.Map{"unit": "K"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRoutes_FavoritesRequireSignIn(t *testing.T) {
	app := newTestApp(t, &fakeWeatherAPI{})

	resp, _ := doJSON(t, app, http.MethodGet, "/api/v1/favorites/", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRoutes_SignInThenListFavorites(t *testing.T) {
	app := newTestApp(t, &fakeWeatherAPI{})

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/auth/signin",
		fiber.Map{"email": "user@example.com", "password": "password1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	identity := body["identity"].(map[string]any)
	assert.Equal(t, "user@example.com", identity["email"])

	// Unprovisioned favorites table reads as an empty list, not an error.
	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/favorites/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["favorites"])
}

func TestRoutes_SignInValidationFailureIs400(t *testing.T) {
	app := newTestApp(t, &fakeWeatherAPI{})

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/auth/signin",
		fiber.Map{"email": "user@example.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRoutes_WidgetSnapshotFollowsWeatherFetch(t *testing.T) {
	weather := &fakeWeatherAPI{
		current:  londonCurrent(),
		forecast: &models.ForecastResponse{},
	}
	app := newTestApp(t, weather)

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/widget/snapshot", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, body["snapshot"])

	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/weather?lat=51.5074&lon=-0.1278", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/widget/snapshot", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snapshot := body["snapshot"].(map[string]any)
	assert.Equal(t, "London", snapshot["city"])
}

func TestRoutes_RecentStartsEmptyAndClears(t *testing.T) {
	app := newTestApp(t, &fakeWeatherAPI{})

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/recent", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["recent"])

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/v1/recent", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
