package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "jotagateway/internal/docs"
)

// MountSwagger wires http-swagger's UI and spec endpoints under /swagger/*,
// backed by the generated spec registered as a side effect of importing
// internal/docs.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.WrapHandler)
}
