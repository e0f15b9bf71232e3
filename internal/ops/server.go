// Package ops exposes the read-only operational HTTP surface: health,
// aggregate stats and the recent audit trail, plus a manual sweep
// trigger. It observes the daemon; triage behavior never depends on it.
package ops

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nhle/mail-triage/internal/sched"
	"github.com/nhle/mail-triage/internal/store"
)

// queryTimeout bounds one audit store read.
const queryTimeout = 5 * time.Second

// Sweeper is the scheduler surface the ops server needs.
type Sweeper interface {
	TriggerSweep()
	Stats() sched.Snapshot
}

// Server serves the operational HTTP API.
type Server struct {
	store   store.Store
	sweeper Sweeper
	logger  logrus.FieldLogger
	http    *http.Server
}

// NewServer builds the ops server listening on addr.
func NewServer(
	addr string,
	st store.Store,
	sweeper Sweeper,
	logger logrus.FieldLogger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		store:   st,
		sweeper: sweeper,
		logger:  logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.health)

	api := router.Group("/api/v1")
	{
		api.GET("/stats", s.stats)
		api.GET("/outcomes", s.outcomes)
		api.POST("/sweep", s.sweep)
	}

	s.http = &http.Server{
		Addr:    addr,
		Handler: router,
	}
	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.http.Addr).Info("ops server listening")

	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the HTTP handler for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) health(c *gin.Context) {
	snap := s.sweeper.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"in_flight": snap.InFlight,
		"excluded":  snap.Excluded,
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) stats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	stats, err := s.store.GetStats(ctx)
	if err != nil {
		s.logger.WithError(err).Error("stats query failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to load stats",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (s *Server) outcomes(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	filter := store.OutcomeFilter{
		Limit:  limit,
		Offset: offset,
	}
	if category := c.Query("category"); category != "" {
		filter.Category = &category
	}
	if runID := c.Query("run_id"); runID != "" {
		filter.RunID = &runID
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	outcomes, err := s.store.GetOutcomes(ctx, filter)
	if err != nil {
		s.logger.WithError(err).Error("outcome query failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to load outcomes",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"outcomes": outcomes,
		"count":    len(outcomes),
	})
}

func (s *Server) sweep(c *gin.Context) {
	s.sweeper.TriggerSweep()
	c.JSON(http.StatusAccepted, gin.H{
		"message": "sweep scheduled",
	})
}
