package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"streamd/internal/stream"
)

const shutdownTimeout = 5 * time.Second

// Endpoint serves the node's blobs over HTTP: GET and HEAD on /<hash>.
// Binding happens at construction so a taken port fails node startup
// instead of surfacing later from a background goroutine.
type Endpoint struct {
	store    *BlobStore
	listener net.Listener
	server   *http.Server
	logger   stream.Logger
}

// NewEndpoint binds the listen address and prepares the router. Call Serve
// to start accepting.
func NewEndpoint(store *BlobStore, listen string, logger stream.Logger) (*Endpoint, error) {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("%w: binding %s: %v", stream.ErrNetwork, listen, err)
	}

	e := &Endpoint{
		store:    store,
		listener: ln,
		logger:   logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/:hash", e.getBlob)
	router.HEAD("/:hash", e.headBlob)

	e.server = &http.Server{Handler: router}
	return e, nil
}

// Serve starts accepting connections in the background.
func (e *Endpoint) Serve() {
	go func() {
		if err := e.server.Serve(e.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("blob endpoint stopped", "error", err)
		}
	}()
	e.logger.Info("blob endpoint listening", "addr", e.Addr())
}

// Addr returns the bound address, useful when listening on port 0.
func (e *Endpoint) Addr() string {
	return e.listener.Addr().String()
}

// Close drains in-flight requests and stops the listener.
func (e *Endpoint) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%w: shutting down blob endpoint: %v", stream.ErrNetwork, err)
	}
	return nil
}

func (e *Endpoint) getBlob(c *gin.Context) {
	hash := stream.Hash(c.Param("hash"))
	if _, err := hash.Digest(); err != nil {
		c.String(http.StatusBadRequest, "malformed hash")
		return
	}

	rc, size, err := e.store.Open(hash)
	if err != nil {
		if errors.Is(err, stream.ErrFileNotFound) {
			c.String(http.StatusNotFound, "unknown blob")
			return
		}
		e.logger.Error("opening blob", "hash", hash, "error", err)
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, size, "application/octet-stream", rc, nil)
}

func (e *Endpoint) headBlob(c *gin.Context) {
	hash := stream.Hash(c.Param("hash"))
	if _, err := hash.Digest(); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	size, err := e.store.Stat(hash)
	if err != nil {
		if errors.Is(err, stream.ErrFileNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		e.logger.Error("stat blob", "hash", hash, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Length", strconv.FormatInt(size, 10))
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
}
