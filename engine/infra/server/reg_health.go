package server

import (
	"net/http"

	"github.com/compozy/docbuddy/engine/infra/server/router"
	"github.com/compozy/docbuddy/engine/infra/server/routes"
	"github.com/compozy/docbuddy/engine/knowledge/vectordb"
	"github.com/compozy/docbuddy/pkg/version"
	"github.com/gin-gonic/gin"
)

// Health endpoint
//
//	@Summary      Get server health
//	@Description  Reports liveness, build info and the configured backends
//	@Tags         health
//	@Produce      json
//	@Success      200 {object} router.Response "Service is healthy"
//	@Router       /api/v0/health [get]
func CreateHealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		state := router.GetAppState(c)
		if state == nil {
			return
		}
		cfg := state.Config
		router.RespondOK(c, "Success", gin.H{
			"status":   "healthy",
			"version":  version.Get(),
			"sessions": state.Sessions.Len(),
			"uptime":   state.Uptime().String(),
			"vector_db": gin.H{
				"provider":   vectordb.Provider(cfg.VectorDB.Provider).DisplayName(),
				"collection": cfg.VectorDB.Collection,
			},
			"embedder": gin.H{"provider": cfg.Embedder.Provider, "model": cfg.Embedder.Model},
			"llm":      gin.H{"provider": cfg.LLM.Provider, "model": cfg.LLM.Model},
		})
	}
}

func registerHealth(r *gin.Engine, apiBase *gin.RouterGroup) {
	handler := CreateHealthHandler()
	apiBase.GET(routes.HealthPath, handler)
	r.GET(routes.HealthPath, handler)
	r.HEAD(routes.HealthPath, func(c *gin.Context) { c.Status(http.StatusOK) })
}
