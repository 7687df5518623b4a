//go:build !windows

// Package server provides the embeddable HTTP control plane.
// Endpoints:
//
//	POST {basePath}/start     start every managed service
//	POST {basePath}/stop      stop every managed service
//	POST {basePath}/restart   stop, sweep, truncate logs, start
//	GET  {basePath}/status    status of every managed service
//	GET  {basePath}/history   query: name=...&limit=50
//	GET  {basePath}/healthz
//	GET  {basePath}/metrics   Prometheus exposition
//
// basePath may be empty or start with '/'; no trailing slash.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/askanalytics/opsctl/internal/metrics"
	"github.com/askanalytics/opsctl/internal/supervisor"
)

type Router struct {
	sup      *supervisor.Supervisor
	basePath string
}

// NewRouter constructs a Router with a configurable basePath.
// Example basePath: "/ops" results in /ops/start, /ops/stop, ...
func NewRouter(sup *supervisor.Supervisor, basePath string) *Router {
	return &Router{sup: sup, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted
// in any server or mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.POST("/restart", r.handleRestart)
	group.GET("/status", r.handleStatus)
	group.GET("/history", r.handleHistory)
	group.GET("/healthz", r.handleHealthz)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this
// router. Callers shut it down via the returned server's Close or
// Shutdown.
func NewServer(addr, basePath string, sup *supervisor.Supervisor) (*http.Server, error) {
	r := NewRouter(sup, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) handleStart(c *gin.Context) {
	if err := r.sup.StartAll(c.Request.Context()); err != nil {
		// Start is best-effort: some services may have launched even
		// when an error comes back, so report it without implying a
		// rollback.
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStop(c *gin.Context) {
	if err := r.sup.StopAll(c.Request.Context()); err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleRestart(c *gin.Context) {
	if err := r.sup.RestartAll(c.Request.Context()); err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.sup.StatusAll())
}

func (r *Router) handleHistory(c *gin.Context) {
	name := c.Query("name")
	limit := 50
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	events, err := r.sup.History(c.Request.Context(), name, limit)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, events)
}

func (r *Router) handleHealthz(c *gin.Context) {
	writeJSON(c, http.StatusOK, okResp{OK: true})
}
