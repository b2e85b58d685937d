package handlers

import (
	"game-match-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupHistoryRoutes mounts the match history read endpoints behind the /s/
// prefix so the gateway's user-context middleware guards them.
func SetupHistoryRoutes(app *fiber.App, historyService *services.HistoryService) {
	app.Get("/s/history/:user_id", historyService.ListUserHistory)
	app.Get("/s/history/match/:id", historyService.GetMatch)
}
