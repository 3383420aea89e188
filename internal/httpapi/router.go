package httpapi

import (
	"net/http"
	"time"

	"github.com/condorhq/fieldops/internal/auth"
	"github.com/condorhq/fieldops/internal/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies. Order payloads carry base64 photos, so
// the cap is generous but finite.
const maxBodyBytes = 10 << 20

// NewRouter builds the gin engine with all routes mounted.
func NewRouter(h *Handlers, cfg *config.Server, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.Use(bodyLimit(maxBodyBytes))

	corsCfg := cors.DefaultConfig()
	if cfg.CORSOrigin == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSOrigin}
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.POST("/auth/login", h.Login)
		api.GET("/clientes/buscar", h.BuscarClientes)

		authed := api.Group("", auth.Middleware(cfg.JWTSecret))
		{
			authed.GET("/tecnicos", h.Tecnicos)
			authed.POST("/ordenes", h.CrearOrden)
			authed.GET("/ordenes", h.ListarOrdenes)
			authed.POST("/ordenes/:id/reenviar", h.ReenviarOrden)
			authed.PUT("/ordenes/:id", h.ActualizarOrden)
		}
	}

	return r
}

// bodyLimit rejects oversize requests up front and hard-caps chunked bodies
// so a runaway upload cannot exhaust the server.
func bodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"success": false,
				"error":   "Cuerpo de la solicitud demasiado grande",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
