package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

func SetupRoutes(app *fiber.App, handler *Handler, log *zap.Logger) {
	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} ${pid} ${locals:requestid} ${status} - ${method} ${path}\n",
		TimeFormat: time.RFC3339,
	}))

	// API v1 routes
	api := app.Group("/api/v1")

	api.Get("/health", handler.GetHealth)

	// Auth routes
	authGroup := api.Group("/auth")
	authGroup.Post("/signup", handler.SignUp)
	authGroup.Post("/signin", handler.SignIn)
	authGroup.Post("/signout", handler.SignOut)
	authGroup.Post("/reset-password", handler.ResetPassword)
	authGroup.Get("/session", handler.GetSession)

	// Weather routes
	api.Get("/weather", handler.GetWeather)

	// Search routes
	api.Get("/search", handler.SearchCities)
	api.Post("/search/select", handler.SelectCity)

	// Favorites routes
	favorites := api.Group("/favorites")
	favorites.Get("/", handler.ListFavorites)
	favorites.Post("/", handler.AddFavorite)
	favorites.Get("/check", handler.CheckFavorite)
	favorites.Delete("/:id", handler.RemoveFavorite)

	// Recent searches
	api.Get("/recent", handler.ListRecentSearches)
	api.Delete("/recent", handler.ClearRecentSearches)

	// Preferences
	api.Get("/preferences/unit", handler.GetTemperatureUnit)
	api.Put("/preferences/unit", handler.SetTemperatureUnit)

	// Widget snapshot
	api.Get("/widget/snapshot", handler.GetWidgetSnapshot)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
			"path":  c.Path(),
		})
	})
}
