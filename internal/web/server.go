// Package web provides the HTTP dashboard, live websocket feed and trip
// control for the ev-telemetry daemon.
package web

import (
	"context"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sweeney/ev-telemetry/internal/status"
)

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	tracker    *status.Tracker
	hub        *Hub
	resets     chan<- struct{}
}

// New creates a Server that reads state from the given tracker and pushes
// trip reset requests to resets. The main loop owns the analytics context
// and performs the reset itself.
func New(addr string, tracker *status.Tracker, hub *Hub, resets chan<- struct{}) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, tracker: tracker, hub: hub, resets: resets}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: engine,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/index.html", s.handleIndex)
	s.engine.GET("/index.json", s.handleJSON)
	s.engine.GET("/ws", s.handleWS)
	s.engine.POST("/api/trip/reset", s.handleTripReset)
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(c *gin.Context) {
	snap := s.tracker.Snapshot()
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	renderHTML(c.Writer, snap)
}

func (s *Server) handleJSON(c *gin.Context) {
	snap := s.tracker.Snapshot()
	c.Data(http.StatusOK, "application/json", status.FormatJSON(snap))
}

func (s *Server) handleWS(c *gin.Context) {
	s.hub.serve(c.Writer, c.Request)
}

func (s *Server) handleTripReset(c *gin.Context) {
	select {
	case s.resets <- struct{}{}:
		c.JSON(http.StatusAccepted, gin.H{"status": "reset requested"})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reset already pending"})
	}
}
