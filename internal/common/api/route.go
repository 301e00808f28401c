package api

import "github.com/gofiber/fiber/v2"

// Route is implemented by every feature's API struct so the fx "routes"
// group can register them uniformly.
type Route interface {
	Setup(app *fiber.App)
}
