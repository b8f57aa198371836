// Package handlers wires the HTTP routes to the service layer.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"codesense/internal/analysis"
	"codesense/internal/auth"
	"codesense/internal/logging"
	"codesense/internal/middleware"
	"codesense/internal/store"
	"codesense/pkg/models"
)

// ModelLister enumerates the models the configured AI provider exposes. Only
// the debug route uses it.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Handler holds the dependencies the routes need.
type Handler struct {
	authSvc      *auth.Service
	store        *store.Store
	blobs        *store.BlobStore
	orchestrator *analysis.Orchestrator
	models       ModelLister
	geminiKeySet bool
	hasTemplates bool
	log          *zap.SugaredLogger
}

// New builds a Handler. hasTemplates reports whether the HTML templates were
// loaded into the router; without them the index route serves 404.
func New(authSvc *auth.Service, st *store.Store, blobs *store.BlobStore, orch *analysis.Orchestrator, lister ModelLister, geminiKeySet, hasTemplates bool) *Handler {
	return &Handler{
		authSvc:      authSvc,
		store:        st,
		blobs:        blobs,
		orchestrator: orch,
		models:       lister,
		geminiKeySet: geminiKeySet,
		hasTemplates: hasTemplates,
		log:          logging.S(),
	}
}

// Register attaches all routes to the router.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", h.index)
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/api/debug/ping", h.ping)
	r.GET("/api/debug/models", h.listModels)

	r.POST("/auth/signup", h.signup)
	r.POST("/auth/login", h.login)

	authed := r.Group("/", middleware.RequireAuth(h.authSvc, h.store))
	authed.GET("/auth/me", h.me)
	authed.POST("/api/analyze", h.analyze)
	authed.GET("/api/submissions", h.listSubmissions)
	authed.GET("/api/submissions/:id", h.getSubmission)
}

func (h *Handler) index(c *gin.Context) {
	if !h.hasTemplates {
		c.JSON(http.StatusNotFound, gin.H{"detail": "frontend not available"})
		return
	}
	c.HTML(http.StatusOK, "index.html", nil)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) listModels(c *gin.Context) {
	if !h.geminiKeySet || h.models == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "GEMINI_API_KEY is not configured"})
		return
	}

	names, err := h.models.ListModels(c.Request.Context())
	if err != nil {
		h.log.Errorw("model listing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to list models"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"api_provider": "gemini",
		"count":        len(names),
		"models":       names,
	})
}

type signupRequest struct {
	Username string  `json:"username" binding:"required"`
	Password string  `json:"password" binding:"required"`
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	User        models.UserView `json:"user"`
}

func (h *Handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "username and password are required"})
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		h.log.Errorw("password hash failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
		return
	}

	user := &models.User{
		Username:       req.Username,
		Email:          req.Email,
		FullName:       req.FullName,
		HashedPassword: hashed,
		IsActive:       true,
	}
	if err := h.store.CreateUser(user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Username or email already registered"})
			return
		}
		h.log.Errorw("user create failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
		return
	}

	token, err := h.authSvc.CreateAccessToken(user.Username, 0)
	if err != nil {
		h.log.Errorw("token mint failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user.View(),
	})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "username and password are required"})
		return
	}

	user, err := h.store.UserByUsername(req.Username)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Incorrect username or password"})
		return
	}
	if err := auth.CheckPassword(req.Password, user.HashedPassword); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Incorrect username or password"})
		return
	}
	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Inactive user"})
		return
	}

	var token string
	err = h.store.TouchLastLogin(user.ID, func() error {
		var mintErr error
		token, mintErr = h.authSvc.CreateAccessToken(user.Username, 0)
		return mintErr
	})
	if err != nil {
		h.log.Errorw("login finalize failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
		return
	}

	now := time.Now().UTC()
	user.LastLogin = &now

	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user.View(),
	})
}

func (h *Handler) me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
		return
	}
	c.JSON(http.StatusOK, user.View())
}

func (h *Handler) analyze(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
		return
	}

	var req analysis.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorReport("code and language are required"))
		return
	}

	report, err := h.orchestrator.Analyze(c.Request.Context(), user, req)
	if err != nil {
		if errors.Is(err, analysis.ErrBadRequest) {
			c.JSON(http.StatusBadRequest, errorReport(err.Error()))
			return
		}
		h.log.Errorw("analyze failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, errorReport("internal error during analysis"))
		return
	}
	c.JSON(http.StatusOK, report)
}

// errorReport shapes an error as an analysis report so clients parse every
// analyze response the same way.
func errorReport(detail string) *models.AnalysisReport {
	return &models.AnalysisReport{
		Errors:        []models.ErrorItem{{Line: 1, Message: detail, Severity: "error"}},
		Suggestions:   []string{},
		Optimizations: []string{},
		Output:        "",
		Detail:        detail,
	}
}

type submissionSummary struct {
	ID        uint    `json:"id"`
	Language  string  `json:"language"`
	CreatedAt string  `json:"created_at"`
	FileName  *string `json:"file_name"`
}

func (h *Handler) listSubmissions(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
		return
	}

	subs, err := h.store.SubmissionsByUser(user.ID, 0)
	if err != nil {
		h.log.Errorw("submission list failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
		return
	}

	out := make([]submissionSummary, 0, len(subs))
	for _, s := range subs {
		out = append(out, submissionSummary{
			ID:        s.ID,
			Language:  s.Language,
			CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
			FileName:  s.FileName,
		})
	}
	c.JSON(http.StatusOK, gin.H{"submissions": out})
}

func (h *Handler) getSubmission(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Submission not found"})
		return
	}

	sub, err := h.store.SubmissionByID(uint(id), user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Submission not found"})
			return
		}
		h.log.Errorw("submission fetch failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
		return
	}

	code, err := h.blobs.Read(sub.FilePath)
	if err != nil {
		h.log.Errorw("code blob read failed", "path", sub.FilePath, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"detail": "Submission not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":              sub.ID,
		"language":        sub.Language,
		"code":            string(code),
		"analysis_result": sub.AnalysisResult,
		"created_at":      sub.CreatedAt.UTC().Format(time.RFC3339),
		"file_name":       sub.FileName,
	})
}
