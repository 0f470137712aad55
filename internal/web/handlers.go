package web

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/slopezpereyra/icf-visualization-app/internal/aggregate"
	"github.com/slopezpereyra/icf-visualization-app/internal/dashboard"
	"github.com/slopezpereyra/icf-visualization-app/internal/dataset"
	"github.com/slopezpereyra/icf-visualization-app/internal/render"
	"github.com/slopezpereyra/icf-visualization-app/internal/service"
	"github.com/slopezpereyra/icf-visualization-app/internal/state"
)

// Image size bounds accepted from query parameters.
const (
	minImageSize = 100
	maxImageSize = 4000
)

// Selection query parameters.
const (
	paramSubject       = "subject"
	paramBaseline      = "baseline"
	paramDisruption    = "disruption"
	paramAdjusted      = "adjusted"
	paramHideMDD       = "hide_mdd"
	paramHideHC        = "hide_hc"
	paramGroupAdjusted = "group_adjusted"
	paramView          = "view"
)

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": ServiceName,
	})
}

// handleStatus reports uptime, version and the loaded dataset.
func (s *Server) handleStatus(c *gin.Context) {
	uptime := time.Since(s.startTime)

	health := "healthy"
	if s.GetStatus().GetStatus() != service.StatusRunning {
		health = "unhealthy"
	}

	info := s.dash.Store().Info()
	c.JSON(http.StatusOK, gin.H{
		"status":         health,
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": int64(uptime.Seconds()),
		"version":        s.version,
		"timestamp":      time.Now().Format(time.RFC3339),
		"dataset":        info,
	})
}

// handleDashboard recomputes the full view for the selection in the query.
func (s *Server) handleDashboard(c *gin.Context) {
	sel, ok := s.selection(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.dash.Compute(sel))
}

func (s *Server) handleParticipants(c *gin.Context) {
	c.JSON(http.StatusOK, s.dash.Store().Participants())
}

func (s *Server) handleListSubjects(c *gin.Context) {
	subjects := s.dash.Store().Subjects()
	c.JSON(http.StatusOK, gin.H{
		"subjects": subjects,
		"count":    len(subjects),
	})
}

// handleSubjectSeries returns one subject's ISI-ordered subject-level rows.
func (s *Server) handleSubjectSeries(c *gin.Context) {
	subject, session, ok := s.subjectParams(c)
	if !ok {
		return
	}
	rows, err := s.dash.Aggregator().SubjectSeries(subject, session)
	if err != nil {
		s.lookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subject":      subject,
		"session_type": session,
		"rows":         rows,
	})
}

// handleSubjectTrials returns one subject's raw trials.
func (s *Server) handleSubjectTrials(c *gin.Context) {
	subject, session, ok := s.subjectParams(c)
	if !ok {
		return
	}
	trials, err := s.dash.Aggregator().SubjectVarianceSeries(subject, session)
	if err != nil {
		s.lookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subject":      subject,
		"session_type": session,
		"trials":       trials,
	})
}

func (s *Server) handleListCharts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"charts": dashboard.ChartNames()})
}

// handleChart returns one chart spec, or an image of it when format is set.
func (s *Server) handleChart(c *gin.Context) {
	sel, ok := s.selection(c)
	if !ok {
		return
	}

	ch, err := s.dash.Chart(c.Param("name"), sel)
	switch {
	case err == nil:
	case errors.Is(err, dashboard.ErrUnknownChart):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, dashboard.ErrNoSubject):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'subject' is required for this chart"})
		return
	case errors.Is(err, dashboard.ErrMalformedQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": dashboard.SubjectMessage(sel.SubjectQuery, err)})
		return
	case errors.Is(err, aggregate.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": dashboard.SubjectMessage(sel.SubjectQuery, err)})
		return
	case errors.Is(err, dataset.ErrSchema):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	default:
		s.LogError("Failed to build chart", err, "chart", c.Param("name"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build chart"})
		return
	}

	if c.Query("format") == "" {
		c.JSON(http.StatusOK, ch)
		return
	}

	format, err := render.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	opts, err := s.imageOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := render.Render(&buf, ch, format, opts); err != nil {
		if errors.Is(err, render.ErrUnsupportedKind) || errors.Is(err, render.ErrEmptyChart) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		s.LogError("Failed to render chart", err, "chart", ch.ID, "format", format)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render chart"})
		return
	}
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

func (s *Server) handleListViews(c *gin.Context) {
	if !s.requireState(c) {
		return
	}
	views, err := s.stateMgr.ListViews(c.Request.Context())
	if err != nil {
		s.LogError("Failed to list views", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list views"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"views": views,
		"count": len(views),
	})
}

// handleSaveView stores a named selection. A missing selection saves the
// default one.
func (s *Server) handleSaveView(c *gin.Context) {
	if !s.requireState(c) {
		return
	}

	var req struct {
		Name      string               `json:"name" binding:"required"`
		Selection *dashboard.Selection `json:"selection"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	sel := dashboard.DefaultSelection()
	if req.Selection != nil {
		sel = *req.Selection
	}

	view, err := s.stateMgr.SaveView(c.Request.Context(), req.Name, sel)
	if err != nil {
		if errors.Is(err, state.ErrViewName) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.LogError("Failed to save view", err, "name", req.Name)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save view"})
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (s *Server) handleGetView(c *gin.Context) {
	if !s.requireState(c) {
		return
	}
	view, err := s.stateMgr.GetView(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.viewError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleDeleteView(c *gin.Context) {
	if !s.requireState(c) {
		return
	}
	if err := s.stateMgr.DeleteView(c.Request.Context(), c.Param("id")); err != nil {
		s.viewError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleListLoads returns the dataset load history, newest first.
func (s *Server) handleListLoads(c *gin.Context) {
	if !s.requireState(c) {
		return
	}

	limit := state.DefaultLoadsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid limit: %s", raw)})
			return
		}
		limit = n
	}

	loads, err := s.stateMgr.ListLoads(c.Request.Context(), limit)
	if err != nil {
		s.LogError("Failed to list loads", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list loads"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"loads": loads,
		"count": len(loads),
	})
}

// handleGetConfig returns the effective configuration with credentials
// masked.
func (s *Server) handleGetConfig(c *gin.Context) {
	if s.configSvc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Configuration service not available",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"path":   s.configSvc.Path(),
		"config": s.configSvc.Get().Redacted(),
	})
}

// selection builds the dashboard selection from query parameters, starting
// from a saved view when view=<id> is given. It writes the error response
// itself and reports false on bad input.
func (s *Server) selection(c *gin.Context) (dashboard.Selection, bool) {
	sel := dashboard.DefaultSelection()

	if id := c.Query(paramView); id != "" {
		if !s.requireState(c) {
			return sel, false
		}
		view, err := s.stateMgr.GetView(c.Request.Context(), id)
		if err != nil {
			s.viewError(c, err)
			return sel, false
		}
		sel = view.Selection
	}

	if q, ok := c.GetQuery(paramSubject); ok {
		sel.SubjectQuery = q
	}

	flags := []struct {
		name string
		dst  *bool
	}{
		{paramBaseline, &sel.IncludeBaseline},
		{paramDisruption, &sel.IncludeDisruption},
		{paramAdjusted, &sel.UseAdjusted},
		{paramHideMDD, &sel.HideMDD},
		{paramHideHC, &sel.HideHC},
		{paramGroupAdjusted, &sel.GroupAdjusted},
	}
	for _, f := range flags {
		raw, ok := c.GetQuery(f.name)
		if !ok {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Invalid value for %s: %q (must be true or false)", f.name, raw),
			})
			return sel, false
		}
		*f.dst = v
	}
	return sel, true
}

// subjectParams parses the :id path parameter and the session query
// parameter (default BL).
func (s *Server) subjectParams(c *gin.Context) (int, dataset.SessionType, bool) {
	raw := c.Param("id")
	subject, ok, err := dashboard.ParseSubjectQuery(raw)
	if err != nil || !ok {
		s.observeLookupFailure(dashboard.MessageMalformed)
		c.JSON(http.StatusBadRequest, gin.H{"error": dashboard.SubjectMessage(raw, dashboard.ErrMalformedQuery)})
		return 0, "", false
	}

	session := dataset.SessionBaseline
	if q := c.Query("session"); q != "" {
		session, err = dataset.ParseSessionType(q)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return 0, "", false
		}
	}
	return subject, session, true
}

func (s *Server) lookupError(c *gin.Context, err error) {
	var nf *aggregate.NotFoundError
	if errors.As(err, &nf) {
		s.observeLookupFailure(dashboard.MessageNotFound)
		c.JSON(http.StatusNotFound, gin.H{"error": dashboard.SubjectMessage(strconv.Itoa(nf.Subject), err)})
		return
	}
	s.LogError("Subject lookup failed", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Subject lookup failed"})
}

func (s *Server) viewError(c *gin.Context, err error) {
	if errors.Is(err, state.ErrViewNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	s.LogError("Saved view request failed", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Saved view request failed"})
}

func (s *Server) requireState(c *gin.Context) bool {
	if s.stateMgr == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "State manager not available",
		})
		return false
	}
	return true
}

func (s *Server) observeLookupFailure(reason string) {
	if s.metrics != nil {
		s.metrics.LookupFailed(reason)
	}
}

// imageOptions takes the configured chart size, overridden by width and
// height query parameters.
func (s *Server) imageOptions(c *gin.Context) (render.Options, error) {
	var opts render.Options
	if s.configSvc != nil {
		charts := s.configSvc.Get().Charts
		opts.Width, opts.Height = charts.Width, charts.Height
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"width", &opts.Width}, {"height", &opts.Height}} {
		raw := strings.TrimSpace(c.Query(p.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < minImageSize || n > maxImageSize {
			return opts, fmt.Errorf("invalid %s %q (must be an integer between %d and %d)", p.name, raw, minImageSize, maxImageSize)
		}
		*p.dst = n
	}
	return opts, nil
}
