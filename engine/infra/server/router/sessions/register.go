package sessionsrouter

import (
	"github.com/gin-gonic/gin"

	"github.com/compozy/docbuddy/engine/infra/server/routes"
)

// Register mounts the session endpoints under apiBase.
func Register(apiBase *gin.RouterGroup) {
	g := apiBase.Group(routes.SessionsPath)
	g.POST("", createSession)
	one := g.Group("/:" + routes.SessionParam)
	one.GET("", getSession)
	one.DELETE("", deleteSession)
	one.POST("/document", uploadDocument)
	one.POST("/embeddings", createEmbeddings)
	one.GET("/messages", listMessages)
	one.POST("/messages", sendMessage)
}
