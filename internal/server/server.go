// Package server exposes range and aliveness queries over HTTP.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ppiankov/lifespan/internal/date"
	"github.com/ppiankov/lifespan/internal/estimate"
	"github.com/ppiankov/lifespan/internal/logger"
	"github.com/ppiankov/lifespan/internal/record"
)

type Server struct {
	decider *estimate.Decider
	people  record.Accessor // Redacted view served by /persons/:handle, nil disables the route
	log     *zap.SugaredLogger
}

func NewServer(decider *estimate.Decider, people record.Accessor, log *zap.SugaredLogger) *Server {
	return &Server{decider: decider, people: people, log: logger.Or(log)}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/healthz", s.Health)

	v1 := r.Group("/api/v1")
	v1.GET("/persons/:handle/range", s.Range)
	v1.GET("/persons/:handle/alive", s.Alive)
	if s.people != nil {
		v1.GET("/persons/:handle", s.Person)
	}
	return r
}

// Run serves on addr until ctx is cancelled
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("Server listening", logger.FieldAddress, addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Infow("Server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type relativeResponse struct {
	Handle string `json:"handle"`
	Name   string `json:"name"`
}

type RangeResponse struct {
	Handle      string            `json:"handle"`
	Name        string            `json:"name"`
	Birth       string            `json:"birth,omitempty"`
	Death       string            `json:"death,omitempty"`
	Phase       string            `json:"phase"`
	Explanation string            `json:"explanation"`
	Relative    *relativeResponse `json:"relative,omitempty"`
}

type AliveResponse struct {
	RangeResponse
	Alive      bool   `json:"alive"`
	Reference  string `json:"reference"`
	GraceYears int    `json:"grace_years,omitempty"`
}

type errorResponse struct {
	Error string   `json:"error"`
	Path  []string `json:"path,omitempty"`
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Range(c *gin.Context) {
	handle := c.Param("handle")
	p, r, err := s.decider.Estimator().EstimateHandle(c.Request.Context(), handle)
	if err != nil {
		s.fail(c, handle, err)
		return
	}
	c.JSON(http.StatusOK, rangeResponse(p, r.Birth, r.Death, r.Phase, r.Explanation, r.Relative))
}

// Alive answers for ?date= (default today), extended by ?grace= years
func (s *Server) Alive(c *gin.Context) {
	handle := c.Param("handle")

	var ref date.Date
	if raw := c.Query("date"); raw != "" {
		d, err := date.Parse(raw)
		if err != nil || !d.IsValid() {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid date " + strconv.Quote(raw)})
			return
		}
		ref = d
	}
	var opts []estimate.Option
	grace := 0
	if raw := c.Query("grace"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid grace " + strconv.Quote(raw)})
			return
		}
		grace = n
		opts = append(opts, estimate.WithGraceYears(n))
	}
	if !ref.IsValid() {
		ref = date.Today(s.decider.Estimator().Config().Clock)
	}

	p, v, err := s.decider.DecideHandle(c.Request.Context(), handle, ref, opts...)
	if err != nil {
		s.fail(c, handle, err)
		return
	}
	c.JSON(http.StatusOK, AliveResponse{
		RangeResponse: rangeResponse(p, v.Birth, v.Death, v.Phase, v.Explanation, v.Relative),
		Alive:         v.Alive,
		Reference:     ref.String(),
		GraceYears:    grace,
	})
}

// Person returns the record as the privacy filter lets it through
func (s *Server) Person(c *gin.Context) {
	handle := c.Param("handle")
	p, err := s.people.Person(c.Request.Context(), handle)
	if err != nil {
		s.fail(c, handle, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) fail(c *gin.Context, handle string, err error) {
	var cycle *estimate.CycleError
	switch {
	case errors.As(err, &cycle):
		s.log.Warnw("Cycle in records", logger.FieldHandle, handle, logger.FieldError, err)
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error(), Path: cycle.Path})
	case record.IsNotFound(err):
		c.JSON(http.StatusNotFound, errorResponse{Error: "person " + handle + " not found"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "request cancelled"})
	default:
		s.log.Errorw("Request failed", logger.FieldHandle, handle, logger.FieldError, err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debugw("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			logger.FieldDurationMS, time.Since(start).Milliseconds())
	}
}

func rangeResponse(p *record.Person, birth, death date.Date, phase estimate.Phase, why string, rel *record.Person) RangeResponse {
	resp := RangeResponse{
		Handle:      p.Handle,
		Name:        p.DisplayName(),
		Birth:       birth.String(),
		Death:       death.String(),
		Phase:       phase.String(),
		Explanation: why,
	}
	if rel != nil {
		resp.Relative = &relativeResponse{Handle: rel.Handle, Name: rel.DisplayName()}
	}
	return resp
}
