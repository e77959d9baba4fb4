package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classportal/internal/attendance"
	"classportal/internal/auth"
	"classportal/internal/classes"
	"classportal/internal/config"
	"classportal/internal/httpmiddleware"
	"classportal/internal/logger"
	"classportal/internal/metrics"
	"classportal/internal/sessionwindow"
	"classportal/internal/store"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Config     config.App
	Sessions   *classes.Service
	Attendance *attendance.Repository
	Clock      sessionwindow.Clock
	Health     map[string]HealthCheck
}

type handler struct {
	cfg        config.App
	sessions   *classes.Service
	attendance *attendance.Repository
	clock      sessionwindow.Clock
	health     map[string]HealthCheck
}

// NewRouter builds the gin engine with all routes and middleware.
func NewRouter(d Deps) *gin.Engine {
	h := &handler{
		cfg:        d.Config,
		sessions:   d.Sessions,
		attendance: d.Attendance,
		clock:      d.Clock,
		health:     d.Health,
	}
	if h.clock == nil {
		h.clock = sessionwindow.SystemClock{}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Output:    logger.Logger.Writer(),
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	// security headers first so CORS preflight responses carry them too
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.CORS())

	limiter := httpmiddleware.NewSimpleTokenBucket(d.Config.RateLimitPerMin, d.Config.RateLimitPerMin)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.healthz)

	if !d.Config.Production() {
		r.POST("/v1/auth/token", limiter.GinMiddleware(), h.issueToken)
	}

	v1 := r.Group("/v1", auth.Require(d.Config.JWTSigningKey, d.Config.JWTIssuer), limiter.GinMiddleware())
	v1.GET("/sessions", h.listSessions)
	v1.GET("/sessions/stream", h.streamSessions)
	v1.GET("/sessions/:id", h.getSession)
	v1.POST("/sessions/:id/join", h.joinSession)

	staff := v1.Group("", auth.RequireRole(auth.RoleFaculty, auth.RoleAdmin))
	staff.POST("/sessions", h.createSession)
	staff.GET("/sessions/:id/attendance", h.sessionAttendance)

	return r
}

func (h *handler) healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

func (h *handler) issueToken(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
		Role   string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tokens, err := auth.Issue(req.UserID, role, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

func (h *handler) listSessions(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	views, err := h.sessions.List(c.Request.Context(), c.Query("course_id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": views})
}

func (h *handler) getSession(c *gin.Context) {
	view, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handler) createSession(c *gin.Context) {
	var req struct {
		CourseID    string    `json:"course_id" binding:"required"`
		Title       string    `json:"title"`
		StartTime   time.Time `json:"start_time" binding:"required"`
		EndTime     time.Time `json:"end_time" binding:"required"`
		MeetingLink string    `json:"meeting_link"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, _ := auth.FromContext(c)
	sess, err := h.sessions.Schedule(c.Request.Context(), p, req.CourseID, req.Title, req.StartTime, req.EndTime, req.MeetingLink)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *handler) joinSession(c *gin.Context) {
	p, _ := auth.FromContext(c)
	res, err := h.sessions.Join(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) sessionAttendance(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.sessions.Get(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	records, err := h.attendance.ListBySession(ctx, id, queryInt(c, "limit", 200))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "attendance": records})
}

// reloadEvery is how many ticks pass between store reloads on a live stream.
const reloadEvery = 30

// streamSessions pushes a fresh session snapshot on every tick until the client goes away.
func (h *handler) streamSessions(c *gin.Context) {
	metrics.LiveViews.Inc()
	defer metrics.LiveViews.Dec()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	courseID := c.Query("course_id")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	var sessions []classes.ClassSession
	ticks := 0
	sessionwindow.Watch(ctx, h.clock, h.cfg.StreamTick, func(now time.Time) {
		if ticks%reloadEvery == 0 {
			loaded, err := h.sessions.Load(ctx, courseID, now)
			if err != nil {
				logger.Logger.WithError(err).Warn("session stream reload failed")
				c.SSEvent("error", gin.H{"error": "sessions unavailable"})
				c.Writer.Flush()
				cancel()
				return
			}
			sessions = loaded
		}
		ticks++
		c.SSEvent("sessions", gin.H{"now": now, "sessions": h.sessions.Views(sessions, now)})
		c.Writer.Flush()
	})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, classes.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, classes.ErrJoinClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, classes.ErrInvalidWindow), errors.Is(err, classes.ErrMissingID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, classes.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	default:
		logger.Logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
