package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/welcome-api/internal/http/v1/greeting"
)

// Register wires all application routes into the provided API router.
func Register(api huma.API) {
	greeting.Register(api)
}
