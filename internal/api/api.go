// Package api serves the roster and its operations over HTTP.
//
// Routes:
//
//	GET    /api/students      roster snapshot
//	GET    /api/state         operation status, last error and pending input
//	POST   /api/students      register student, body {"id": "...", "name": "..."}
//	DELETE /api/students/:id  remove student
//	POST   /api/refresh       refresh roster
//	GET    /api/events        server-sent events with every state change
//	GET    /metrics           Prometheus metrics, if enabled
//
// Operations are detached from the request: once started, a transaction is
// awaited even if the client goes away.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nspcc-dev/student-roster/internal/controller"
	"github.com/nspcc-dev/student-roster/internal/roster"
	"go.uber.org/zap"
)

// Controller executes roster operations and exposes their state.
type Controller interface {
	Register(ctx context.Context, id, name string) error
	Remove(ctx context.Context, id string) error
	Refresh(ctx context.Context) error
	State() controller.State
	Subscribe() (<-chan controller.State, func())
}

// Prm groups parameters of the Server.
type Prm struct {
	// Logs served requests. Optional.
	Logger *zap.Logger

	Controller Controller

	// Limits each operation. No limit when zero.
	OperationTimeout time.Duration

	// Serves /metrics when set.
	Metrics http.Handler
}

// Server is the HTTP view of the roster.
type Server struct {
	log     *zap.Logger
	ctrl    Controller
	timeout time.Duration
	engine  *gin.Engine
}

// New constructs Server and its routes.
func New(prm Prm) *Server {
	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}

	s := &Server{
		log:     prm.Logger,
		ctrl:    prm.Controller,
		timeout: prm.OperationTimeout,
		engine:  gin.New(),
	}

	s.engine.Use(gin.Recovery(), s.logRequests)

	api := s.engine.Group("/api")
	api.GET("/students", s.getStudents)
	api.POST("/students", s.registerStudent)
	api.DELETE("/students/:id", s.removeStudent)
	api.GET("/state", s.getState)
	api.POST("/refresh", s.refresh)
	api.GET("/events", s.events)

	if prm.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(prm.Metrics))
	}

	return s
}

// Handler returns HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves HTTP on addr until ctx is done, then shuts the
// server down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving HTTP", zap.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		return err
	}

	err = <-errCh
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type registerRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type errorResponse struct {
	Error string          `json:"error"`
	Kind  controller.Kind `json:"kind"`
}

type stateResponse struct {
	Status        controller.Status       `json:"status"`
	LastError     string                  `json:"last_error,omitempty"`
	LastErrorKind controller.Kind         `json:"last_error_kind"`
	Pending       controller.PendingInput `json:"pending"`
	Students      []roster.Student        `json:"students"`
}

func newStateResponse(st controller.State) stateResponse {
	return stateResponse{
		Status:        st.Status,
		LastError:     st.LastError,
		LastErrorKind: st.LastErrorKind,
		Pending:       st.Pending,
		Students:      st.Roster.Students(),
	}
}

func (s *Server) getStudents(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.State().Roster.Students())
}

func (s *Server) getState(c *gin.Context) {
	c.JSON(http.StatusOK, newStateResponse(s.ctrl.State()))
}

func (s *Server) registerStudent(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error: "invalid request body: " + err.Error(),
			Kind:  controller.KindValidation,
		})
		return
	}

	s.run(c, func(ctx context.Context) error {
		return s.ctrl.Register(ctx, req.ID, req.Name)
	})
}

func (s *Server) removeStudent(c *gin.Context) {
	id := c.Param("id")
	s.run(c, func(ctx context.Context) error {
		return s.ctrl.Remove(ctx, id)
	})
}

func (s *Server) refresh(c *gin.Context) {
	s.run(c, s.ctrl.Refresh)
}

// run executes the operation outside the request lifetime and responds with
// the resulting state.
func (s *Server) run(c *gin.Context, op func(context.Context) error) {
	ctx := context.WithoutCancel(c.Request.Context())
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	err := op(ctx)
	if err != nil {
		kind := controller.KindOf(err)
		c.JSON(statusCode(kind), errorResponse{Error: err.Error(), Kind: kind})
		return
	}

	c.JSON(http.StatusOK, newStateResponse(s.ctrl.State()))
}

func statusCode(k controller.Kind) int {
	switch k {
	case controller.KindValidation:
		return http.StatusBadRequest
	case controller.KindAuthorization:
		return http.StatusUnauthorized
	case controller.KindBusy:
		return http.StatusConflict
	case controller.KindBinding:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) events(c *gin.Context) {
	states, cancel := s.ctrl.Subscribe()
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		select {
		case st, ok := <-states:
			if !ok {
				return false
			}
			c.SSEvent("state", newStateResponse(st))
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()

	s.log.Debug("HTTP request served",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("took", time.Since(start)))
}
