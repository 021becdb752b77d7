package frontend

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	corehttp "github.com/npc-engine/npc-engine/core/http"
)

// HTTP is the HTTP Server Front-End variant: GET/POST on "/" and "/:name",
// functionally equivalent to Socket at the JSON-RPC layer (spec §4.D).
type HTTP struct {
	Dispatcher Dispatcher
	Addr       string

	server *http.Server
}

// Run starts the HTTP listener and blocks until ctx is cancelled.
func (h *HTTP) Run(ctx context.Context) error {
	router := gin.New()
	router.Use(gin.Recovery(), corehttp.LoggerMiddleware())

	router.GET("/", h.handle)
	router.GET("/:name", h.handle)
	router.POST("/", h.handle)
	router.POST("/:name", h.handle)

	h.server = &http.Server{Addr: h.Addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return h.server.Close()
	case err := <-errCh:
		return err
	}
}

func (h *HTTP) handle(c *gin.Context) {
	address := c.Param("name")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "%v", err)
		return
	}

	log.WithFields(log.Fields{"address": address}).Debug("received request")

	reply, _ := safeDispatch(c.Request.Context(), h.Dispatcher, address, string(body))
	c.Data(http.StatusOK, "application/json", []byte(reply))
}
