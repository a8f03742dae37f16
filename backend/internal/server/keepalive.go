// Package server exposes the tiny HTTP surface the hosting platform
// probes to keep the bot process awake. A GET against / is what the
// /wake command fires at a sleeping deployment.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"osananajimi-bot/backend/internal/state"
)

// NewRouter builds the keep-alive routes
func NewRouter(tracker *state.Tracker, production bool) *gin.Engine {
	if production {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "up",
			"connection": tracker.State().String(),
		})
	})

	return router
}

// Run serves the router until ctx is cancelled, then shuts down
// gracefully
func Run(ctx context.Context, router *gin.Engine, port string) error {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
