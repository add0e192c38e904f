// Package http exposes the client's diagnostics surface: health,
// session/peer state and prometheus metrics.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/arezvov/voicemesh/internal/client"
	"github.com/arezvov/voicemesh/internal/config"
)

func SetupRouter(cfg *config.Config, c *client.Client) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(gc *gin.Context) {
		gc.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/session", func(gc *gin.Context) {
		gc.JSON(http.StatusOK, c.Session())
	})
	api.GET("/peers", func(gc *gin.Context) {
		gc.JSON(http.StatusOK, c.Peers())
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Info().Str("module", "transport.http").Str("addr", cfg.DebugAddr).Msg("router setup")
	return r
}
