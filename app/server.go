package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/kilianp07/bessopt/core/input"
	"github.com/kilianp07/bessopt/core/milp"
	"github.com/kilianp07/bessopt/core/model"
	"github.com/kilianp07/bessopt/core/optimizer"
	"github.com/kilianp07/bessopt/core/runlog"
	"github.com/kilianp07/bessopt/infra/logger"
	"github.com/kilianp07/bessopt/infra/params"
)

// OptimizeRequest is the body of POST /optimize.
type OptimizeRequest struct {
	Points  []model.TimeSeriesPoint  `json:"points" binding:"required"`
	Grid    params.Grid              `json:"grid"`
	Battery *model.BatteryParameters `json:"battery" binding:"required"`
}

// Server exposes the optimizer over HTTP.
type Server struct {
	runner   Runner
	store    runlog.Store
	maxSteps int
	origins  []string
	log      logger.Logger
}

// NewServer returns a Server. A nil store serves an empty run history.
func NewServer(runner Runner, store runlog.Store, maxSteps int, origins []string) *Server {
	if store == nil {
		store = runlog.NopStore{}
	}
	return &Server{runner: runner, store: store, maxSteps: maxSteps, origins: origins, log: logger.New("http")}
}

// Handler returns the router wrapped with CORS and gzip compression.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", s.health)
	router.POST("/optimize", s.optimize)
	router.GET("/runs", s.runs)
	router.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Not found")
	})

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(gziphandler.GzipHandler(router))
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http server shutdown: %v", err)
		}
	}()
	s.log.Infof("Serving optimizer API on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "backends": milp.Backends()})
}

func (s *Server) optimize(c *gin.Context) {
	var req OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if s.maxSteps > 0 && len(req.Points) > s.maxSteps {
		writeError(c, http.StatusRequestEntityTooLarge, "HORIZON_TOO_LONG",
			"at most "+strconv.Itoa(s.maxSteps)+" points per request")
		return
	}
	sched, err := s.runner.Run(c.Request.Context(), req.Points, req.Grid.Parameters(), *req.Battery)
	if err != nil {
		status, code := classify(err)
		if status >= http.StatusInternalServerError {
			s.log.Errorf("optimize: %v", err)
		}
		writeError(c, status, code, err.Error())
		return
	}
	c.JSON(http.StatusOK, sched)
}

func (s *Server) runs(c *gin.Context) {
	var q runlog.Query
	q.Status = c.Query("status")
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a non-negative integer")
			return
		}
		q.Limit = n
	}
	for _, b := range []struct {
		key string
		dst *time.Time
	}{{"start", &q.Start}, {"end", &q.End}} {
		v := c.Query(b.key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", b.key+" must be RFC3339")
			return
		}
		*b.dst = t
	}
	recs, err := s.store.Query(c.Request.Context(), q)
	if err != nil {
		s.log.Errorf("query runs: %v", err)
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "run log unavailable")
		return
	}
	if recs == nil {
		recs = []runlog.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": recs})
}

// classify maps optimizer errors to an HTTP status and error code.
func classify(err error) (int, string) {
	var insufficient *input.InsufficientDataError
	var unavailable *milp.SolverUnavailableError
	var infeasible *optimizer.ModelInfeasibleError
	switch {
	case errors.As(err, &insufficient):
		return http.StatusBadRequest, "INSUFFICIENT_DATA"
	case errors.Is(err, input.ErrInvalidParameters), errors.Is(err, input.ErrInvalidInterval), errors.Is(err, input.ErrNonFinite):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.As(err, &infeasible):
		return http.StatusUnprocessableEntity, "INFEASIBLE"
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable, "SOLVER_UNAVAILABLE"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "CANCELED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func writeError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": msg}})
}
