package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(h *Handler, allowedOrigins []string) *gin.Engine {
	r := gin.Default()

	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = normalizeOrigin(o); o != "" {
			allowed[o] = struct{}{}
		}
	}
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			_, ok := allowed[normalizeOrigin(origin)]
			return ok
		},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       10 * time.Minute,
	}))
	r.Use(loopbackOnly())

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.POST("/parse", h.Parse)
		api.GET("/tokens", h.ListTokens)
		api.GET("/networks", h.ListNetworks)

		api.POST("/sessions", h.OpenSession)

		s := api.Group("/sessions/:id", h.withSession)
		s.GET("", h.GetSession)
		s.DELETE("", h.CloseSession)
		s.PUT("/asset", h.SelectAsset)
		s.PUT("/recipients", h.SetRecipients)
		s.POST("/allowance/refresh", h.RefreshAllowance)
		s.POST("/allowance/approve", h.Approve)
		s.POST("/allowance/revoke", h.Revoke)
		s.POST("/send", h.Send)
	}

	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	})

	return r
}

// loopbackOnly rejects requests that did not originate on this machine.
func loopbackOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isLoopbackRequest(c.Request) {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: "forbidden"})
			return
		}
		c.Next()
	}
}
