package greeting

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Register wires the greeting route into the provided API router.
func Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "home",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Test",
		Description: "Returns a fixed greeting. Headers and query parameters are ignored.",
	}, getHandler)
}

func getHandler(_ context.Context, _ *struct{}) (*Output, error) {
	return &Output{ContentType: contentType, Body: Message}, nil
}
