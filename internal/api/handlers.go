package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/AshishSingh1503/HelixMind/internal/domain"
	"github.com/AshishSingh1503/HelixMind/internal/middleware"
)

// registerRequest is the payload for account creation.
type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name"`
}

// tokenRequest is the payload for credential exchange.
type tokenRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

type uploadResponse struct {
	AnalysisID string    `json:"analysis_id"`
	Status     string    `json:"status"`
	VCFFile    string    `json:"vcf_file"`
	CreatedAt  time.Time `json:"created_at"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName,
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	storage := "ok"
	if err := s.store.Health(c.Request.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		storage = "unavailable"
		s.log.WithError(err).Warn("Storage health check failed")
	}

	// A down cache degrades performance, not availability.
	cacheStatus := "ok"
	if err := s.analysis.CacheHealth(c.Request.Context()); err != nil {
		cacheStatus = "degraded"
		s.log.WithError(err).Warn("Cache health check failed")
	}

	c.JSON(code, gin.H{
		"status":    status,
		"storage":   storage,
		"cache":     cacheStatus,
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	})
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Invalid registration payload")
		return
	}

	user, err := s.auth.Register(c.Request.Context(), req.Username, req.Email, req.Password, req.FullName)
	if err != nil {
		var validationErr *domain.ValidationError
		switch {
		case errors.As(err, &validationErr):
			s.writeError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, validationErr.Message)
		case errors.Is(err, domain.ErrDuplicateUser):
			s.writeError(c, http.StatusConflict, domain.ErrCodeInvalidInput, "Username or email already registered")
		default:
			s.internalError(c, err, "Registering user")
		}
		return
	}

	c.JSON(http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Invalid token request payload")
		return
	}

	user, err := s.auth.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.Header("WWW-Authenticate", "Bearer")
		s.writeError(c, http.StatusUnauthorized, domain.ErrCodeAuthentication, "Incorrect username or password")
		return
	}

	token, err := s.auth.IssueToken(user)
	if err != nil {
		s.internalError(c, err, "Issuing token")
		return
	}

	c.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleMe(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		s.writeError(c, http.StatusUnauthorized, domain.ErrCodeAuthentication, "Could not validate credentials")
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

func (s *Server) handleUpload(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		s.writeError(c, http.StatusUnauthorized, domain.ErrCodeAuthentication, "Could not validate credentials")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "A VCF file upload is required")
		return
	}

	filename := filepath.Base(fileHeader.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".vcf") {
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Only .vcf files are accepted")
		return
	}
	if fileHeader.Size > s.cfg.Upload.MaxFileSize {
		s.writeError(c, http.StatusRequestEntityTooLarge, domain.ErrCodeInvalidInput, "Uploaded file exceeds the size limit")
		return
	}

	rec, err := s.analysis.CreateAnalysis(c.Request.Context(), user.ID, filename)
	if err != nil {
		s.internalError(c, err, "Creating analysis record")
		return
	}

	staged := s.analysis.StagedPath(rec.ID, filename)
	if err := c.SaveUploadedFile(fileHeader, staged); err != nil {
		s.failUpload(c, rec.ID, "could not stage uploaded file")
		s.internalError(c, err, "Staging uploaded file")
		return
	}

	if err := s.analysis.Enqueue(rec.ID, staged); err != nil {
		s.failUpload(c, rec.ID, "scoring queue is full")
		s.log.WithError(err).WithField("analysis_id", rec.ID).Warn("Could not enqueue analysis")
		s.writeError(c, http.StatusServiceUnavailable, domain.ErrCodeInternalServer, "Scoring queue is full, retry later")
		return
	}

	c.JSON(http.StatusAccepted, uploadResponse{
		AnalysisID: rec.ID,
		Status:     string(rec.Status),
		VCFFile:    rec.VCFFile,
		CreatedAt:  rec.CreatedAt,
	})
}

// failUpload marks a freshly created record failed when it never
// reached the queue. Best effort; the record is still pending if the
// transition loses a race.
func (s *Server) failUpload(c *gin.Context, analysisID, reason string) {
	if err := s.store.FailAnalysis(c.Request.Context(), analysisID, reason); err != nil {
		s.log.WithError(err).WithField("analysis_id", analysisID).Error("Could not mark analysis failed")
	}
}

func (s *Server) handleGetResults(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		s.writeError(c, http.StatusUnauthorized, domain.ErrCodeAuthentication, "Could not validate credentials")
		return
	}

	rec, err := s.analysis.GetAnalysis(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		s.writeDomainError(c, err, "Fetching analysis")
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleHistory(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		s.writeError(c, http.StatusUnauthorized, domain.ErrCodeAuthentication, "Could not validate credentials")
		return
	}

	records, err := s.analysis.ListAnalyses(c.Request.Context(), user.ID)
	if err != nil {
		s.internalError(c, err, "Listing analyses")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analyses": records,
		"count":    len(records),
	})
}

func (s *Server) handleDelete(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		s.writeError(c, http.StatusUnauthorized, domain.ErrCodeAuthentication, "Could not validate credentials")
		return
	}

	if err := s.analysis.DeleteAnalysis(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		s.writeDomainError(c, err, "Deleting analysis")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Analysis deleted"})
}

// writeDomainError maps the shared sentinel errors onto HTTP statuses.
func (s *Server) writeDomainError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(c, http.StatusNotFound, domain.ErrCodeNotFound, "Analysis not found")
	case errors.Is(err, domain.ErrForbidden):
		s.writeError(c, http.StatusForbidden, domain.ErrCodeForbidden, "You do not have access to this analysis")
	case errors.Is(err, os.ErrNotExist):
		s.writeError(c, http.StatusNotFound, domain.ErrCodeNotFound, "Analysis not found")
	default:
		s.internalError(c, err, action)
	}
}

func (s *Server) writeError(c *gin.Context, status int, code, message string) {
	requestID := c.GetString(middleware.ContextRequestIDKey)
	c.JSON(status, domain.NewAPIError(code, message, requestID))
}

func (s *Server) internalError(c *gin.Context, err error, action string) {
	s.log.WithError(err).WithFields(logrus.Fields{
		"request_id": c.GetString(middleware.ContextRequestIDKey),
		"path":       c.FullPath(),
	}).Error(action + " failed")
	s.writeError(c, http.StatusInternalServerError, domain.ErrCodeInternalServer, "An internal error occurred")
}
