package server

import (
	"github.com/compozy/docbuddy/engine/infra/monitoring"
	sessionsrouter "github.com/compozy/docbuddy/engine/infra/server/router/sessions"
	"github.com/compozy/docbuddy/engine/infra/server/routes"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the versioned API plus health and metrics endpoints.
func RegisterRoutes(r *gin.Engine, mon *monitoring.Service) {
	apiBase := r.Group(routes.Base())
	registerHealth(r, apiBase)
	sessionsrouter.Register(apiBase)
	if mon != nil && mon.IsInitialized() {
		r.GET(mon.Path(), gin.WrapH(mon.ExporterHandler()))
	}
}
