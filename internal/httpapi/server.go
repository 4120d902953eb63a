package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// NewApp builds the Fiber application serving the planning view.
func NewApp(h *Handler, jwtSecret string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "cart-meal-planner",
		ErrorHandler: ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	Register(app, h, jwtSecret)
	return app
}

// Register mounts the planning routes on router.
func Register(router fiber.Router, h *Handler, jwtSecret string) {
	router.Get("/health", h.Health)

	api := router.Group("/api", AuthRequired(jwtSecret))
	api.Get("/usage", h.Usage)
	api.Get("/weeks", h.ListWeeks)

	week := api.Group("/weeks/:week")
	week.Get("/", h.GetWeek)
	week.Post("/", h.CreateWeek)
	week.Post("/generate", h.GenerateWeek)
	week.Post("/slots/assign", h.AssignSlot)
	week.Post("/slots/move", h.MoveSlot)
	week.Post("/slots/clear", h.ClearSlot)
	week.Post("/slots/lock", h.ToggleLock)
	week.Post("/locks/clear", h.ClearLocks)
	week.Delete("/", h.DeleteWeek)
	week.Post("/reset", h.ResetWeek)
	week.Post("/undo", h.Undo)
	week.Post("/regenerate", h.Regenerate)
	week.Get("/regenerate", h.RegenerationStatus)
	week.Delete("/regenerate", h.CancelRegeneration)
}
