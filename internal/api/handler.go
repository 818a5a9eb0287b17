package api

import (
	"errors"
	"strconv"
	"time"

	"glasscast/internal/auth"
	"glasscast/internal/models"
	"glasscast/internal/services"
	"glasscast/internal/store"
	"glasscast/internal/widget"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handler struct {
	session    *auth.Session
	aggregator *services.Aggregator
	search     *services.SearchOrchestrator
	favorites  *store.FavoritesStore
	recent     *store.RecentSearchCache
	prefs      *store.Preferences
	bridge     *widget.SnapshotBridge
	logger     *zap.Logger
}

func NewHandler(
	session *auth.Session,
	aggregator *services.Aggregator,
	search *services.SearchOrchestrator,
	favorites *store.FavoritesStore,
	recent *store.RecentSearchCache,
	prefs *store.Preferences,
	bridge *widget.SnapshotBridge,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		session:    session,
		aggregator: aggregator,
		search:     search,
		favorites:  favorites,
		recent:     recent,
		prefs:      prefs,
		bridge:     bridge,
		logger:     logger,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp handles POST /api/v1/auth/signup
func (h *Handler) SignUp(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	identity, err := h.session.SignUp(c.Context(), req.Email, req.Password)
	if err != nil {
		return h.authError(c, err)
	}
	return c.JSON(fiber.Map{"identity": identity})
}

// SignIn handles POST /api/v1/auth/signin
func (h *Handler) SignIn(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	identity, err := h.session.SignIn(c.Context(), req.Email, req.Password)
	if err != nil {
		return h.authError(c, err)
	}
	return c.JSON(fiber.Map{"identity": identity})
}

// SignOut handles POST /api/v1/auth/signout
func (h *Handler) SignOut(c *fiber.Ctx) error {
	if err := h.session.SignOut(c.Context()); err != nil {
		h.logger.Error("Sign out failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"success": true})
}

// ResetPassword handles POST /api/v1/auth/reset-password
func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.session.ResetPassword(c.Context(), req.Email); err != nil {
		return h.authError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// GetSession handles GET /api/v1/auth/session
func (h *Handler) GetSession(c *fiber.Ctx) error {
	state := h.session.CheckStatus(c.Context())
	resp := fiber.Map{"state": state}
	if identity := h.session.Identity(); identity != nil {
		resp["identity"] = identity
	}
	return c.JSON(resp)
}

// GetWeather handles GET /api/v1/weather?lat=&lon=
func (h *Handler) GetWeather(c *fiber.Ctx) error {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lon, err2 := strconv.ParseFloat(c.Query("lon"), 64)
	if err1 != nil || err2 != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "lat and lon parameters are required",
		})
	}

	view, err := h.aggregator.Fetch(c.Context(), lat, lon)
	if err != nil {
		h.logger.Error("Failed to fetch weather",
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
			zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "Failed to fetch weather data",
			"details": err.Error(),
		})
	}

	unit := h.prefs.TemperatureUnit()
	convertView(view, unit)

	return c.JSON(fiber.Map{
		"weather": view,
		"unit":    unit,
	})
}

// convertView rewrites the view's Celsius readings into the display unit.
func convertView(view *services.WeatherView, unit models.TemperatureUnit) {
	if unit == models.Celsius {
		return
	}
	view.Current.Temperature = models.ConvertTemperature(view.Current.Temperature, unit)
	view.Current.High = models.ConvertTemperature(view.Current.High, unit)
	view.Current.Low = models.ConvertTemperature(view.Current.Low, unit)
	for i := range view.Hourly {
		view.Hourly[i].Temperature = models.ConvertTemperature(view.Hourly[i].Temperature, unit)
	}
	for i := range view.Daily {
		view.Daily[i].High = models.ConvertTemperature(view.Daily[i].High, unit)
		view.Daily[i].Low = models.ConvertTemperature(view.Daily[i].Low, unit)
	}
}

// SearchCities handles GET /api/v1/search?q=
func (h *Handler) SearchCities(c *fiber.Ctx) error {
	query := c.Query("q")
	results, err := h.search.SearchNow(c.Context(), query)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Search failed",
		})
	}
	return c.JSON(fiber.Map{"results": results, "query": query})
}

// SelectCity handles POST /api/v1/search/select
func (h *Handler) SelectCity(c *fiber.Ctx) error {
	var snapshot models.WeatherSnapshot
	if err := c.BodyParser(&snapshot); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	view, err := h.search.Select(c.Context(), snapshot)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "Failed to load weather for selection",
			"details": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"weather": view})
}

// ListFavorites handles GET /api/v1/favorites
func (h *Handler) ListFavorites(c *fiber.Ctx) error {
	identity := h.session.Identity()
	if identity == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Not signed in",
		})
	}

	cities, err := h.favorites.List(c.Context(), identity.UserID.String())
	if err != nil {
		h.logger.Error("Failed to list favorites", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to load favorites",
		})
	}
	return c.JSON(fiber.Map{"favorites": cities})
}

// AddFavorite handles POST /api/v1/favorites
func (h *Handler) AddFavorite(c *fiber.Ctx) error {
	identity := h.session.Identity()
	if identity == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Not signed in",
		})
	}

	var snapshot models.WeatherSnapshot
	if err := c.BodyParser(&snapshot); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	city, err := h.favorites.Add(c.Context(), identity.UserID.String(), snapshot)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyFavorite) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "City already in favorites",
			})
		}
		h.logger.Error("Failed to add favorite", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to add city",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"favorite": city})
}

// RemoveFavorite handles DELETE /api/v1/favorites/:id
func (h *Handler) RemoveFavorite(c *fiber.Ctx) error {
	identity := h.session.Identity()
	if identity == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Not signed in",
		})
	}

	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid favorite id",
		})
	}

	city := models.FavoriteCity{ID: &id, UserID: identity.UserID.String()}
	if err := h.favorites.Remove(c.Context(), identity.UserID.String(), city); err != nil {
		if errors.Is(err, store.ErrNotPersisted) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Cannot remove: city was never saved",
			})
		}
		h.logger.Error("Failed to remove favorite", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to remove city",
		})
	}
	return c.JSON(fiber.Map{"success": true})
}

// CheckFavorite handles GET /api/v1/favorites/check?lat=&lon=
func (h *Handler) CheckFavorite(c *fiber.Ctx) error {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lon, err2 := strconv.ParseFloat(c.Query("lon"), 64)
	if err1 != nil || err2 != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "lat and lon parameters are required",
		})
	}

	snapshot := models.WeatherSnapshot{Coordinates: models.Coordinates{Lat: lat, Lon: lon}}
	if match := h.favorites.Find(snapshot); match != nil {
		return c.JSON(fiber.Map{"is_favorite": true, "favorite": match})
	}
	return c.JSON(fiber.Map{"is_favorite": false})
}

// ListRecentSearches handles GET /api/v1/recent
func (h *Handler) ListRecentSearches(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"recent": h.recent.List()})
}

// ClearRecentSearches handles DELETE /api/v1/recent
func (h *Handler) ClearRecentSearches(c *fiber.Ctx) error {
	h.recent.Clear()
	return c.JSON(fiber.Map{"success": true})
}

// GetTemperatureUnit handles GET /api/v1/preferences/unit
func (h *Handler) GetTemperatureUnit(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"unit": h.prefs.TemperatureUnit()})
}

// SetTemperatureUnit handles PUT /api/v1/preferences/unit
func (h *Handler) SetTemperatureUnit(c *fiber.Ctx) error {
	var req struct {
		Unit models.TemperatureUnit `json:"unit"`
	}
	if err := c.BodyParser(&req); err != nil || !req.Unit.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unit must be \"°C\" or \"°F\"",
		})
	}

	if err := h.prefs.SetTemperatureUnit(req.Unit); err != nil {
		h.logger.Error("Failed to save temperature unit", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save preference",
		})
	}
	return c.JSON(fiber.Map{"unit": req.Unit})
}

// GetWidgetSnapshot handles GET /api/v1/widget/snapshot
func (h *Handler) GetWidgetSnapshot(c *fiber.Ctx) error {
	snapshot, ok := h.bridge.Load()
	if !ok {
		return c.JSON(fiber.Map{"snapshot": nil})
	}
	return c.JSON(fiber.Map{"snapshot": snapshot})
}

// GetHealth handles GET /api/v1/health
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now(),
		"uptime":    time.Since(startTime).String(),
		"session":   h.session.State(),
	})
}

func (h *Handler) authError(c *fiber.Ctx, err error) error {
	status := fiber.StatusUnauthorized
	if errors.Is(err, auth.ErrInvalidInput) {
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

var startTime = time.Now()
