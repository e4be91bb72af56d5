// Package api exposes the computed index over HTTP for the dashboard
// and CLI consumers. Handlers only read engine state; they never
// trigger computation.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arkodell/cpmi/internal/models"
	"github.com/arkodell/cpmi/internal/storage"
)

// IndexReader is the engine's read surface consumed by the handlers.
type IndexReader interface {
	CurrentIndex() models.CurrentIndex
	CategoryBreakdown() map[string]models.CategoryBreakdown
	History() []models.IndexHistoryEntry
	Statistics() *models.IndexStatistics
	Export() models.IndexSnapshot
}

// SnapshotStore serves persisted snapshot rows for diagnostics.
type SnapshotStore interface {
	RecentSnapshots(limit int) ([]storage.SnapshotRow, error)
}

// Server wires the index read surface into a gin router.
type Server struct {
	reader IndexReader
	store  SnapshotStore
}

// NewServer creates a Server. store may be nil, which disables the
// snapshots endpoint.
func NewServer(reader IndexReader, store SnapshotStore) *Server {
	return &Server{reader: reader, store: store}
}

// Router builds the HTTP routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)

	cpmi := r.Group("/api/cpmi")
	{
		cpmi.GET("/current", s.handleCurrent)
		cpmi.GET("/history", s.handleHistory)
		cpmi.GET("/categories", s.handleCategories)
		cpmi.GET("/export", s.handleExport)
		cpmi.GET("/snapshots", s.handleSnapshots)
	}

	return r
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleCurrent(c *gin.Context) {
	current := s.reader.CurrentIndex()
	ok(c, gin.H{
		"index": gin.H{
			"value":          current.Value,
			"interpretation": current.Interpretation,
			"lastUpdate":     current.LastUpdate,
		},
		"categories":  current.Categories,
		"historyTail": historyPayload(current.HistoryTail),
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	ok(c, gin.H{
		"history":    historyPayload(s.reader.History()),
		"statistics": s.reader.Statistics(),
	})
}

func (s *Server) handleCategories(c *gin.Context) {
	ok(c, s.reader.CategoryBreakdown())
}

func (s *Server) handleExport(c *gin.Context) {
	ok(c, s.reader.Export())
}

func (s *Server) handleSnapshots(c *gin.Context) {
	if s.store == nil {
		fail(c, http.StatusNotFound, "snapshot storage disabled")
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			fail(c, http.StatusBadRequest, "limit must be an integer between 1 and 1000")
			return
		}
		limit = n
	}
	rows, err := s.store.RecentSnapshots(limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to load snapshots")
		return
	}
	ok(c, gin.H{"snapshots": rows})
}

// historyPayload renders history entries with the field names the
// dashboard expects ("index" rather than "value").
func historyPayload(entries []models.IndexHistoryEntry) []gin.H {
	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, gin.H{
			"timestamp":   e.Timestamp,
			"index":       e.Value,
			"probability": e.Probability,
		})
	}
	return out
}
