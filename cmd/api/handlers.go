package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/jpeg"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cutlinehq/cutline/internal/cache"
	"github.com/cutlinehq/cutline/internal/commands"
	"github.com/cutlinehq/cutline/internal/database"
	"github.com/cutlinehq/cutline/internal/logging"
	"github.com/cutlinehq/cutline/internal/middleware"
	"github.com/cutlinehq/cutline/internal/preview"
	"github.com/cutlinehq/cutline/internal/project"
	"github.com/cutlinehq/cutline/internal/session"
	"github.com/cutlinehq/cutline/internal/upload"
	"github.com/cutlinehq/cutline/pkg/models"
	"github.com/cutlinehq/cutline/pkg/timeline"
)

// cancelFlagTTL bounds how long an export cancel request stays visible
// to workers.
const cancelFlagTTL = time.Hour

// ProjectService is the project layer the handlers depend on.
type ProjectService interface {
	Create(ctx context.Context, ownerID, name string) (*models.Project, error)
	Get(ctx context.Context, id string) (*models.Project, error)
	List(ctx context.Context, ownerID string, limit, offset int) ([]*models.Project, error)
	Delete(ctx context.Context, id string) error
	Load(ctx context.Context, projectID string) (*project.LoadedState, error)
	Save(ctx context.Context, projectID string, state *timeline.EditorState, expectedRevision int64) (int64, error)
}

// AssetIngester imports uploaded media files.
type AssetIngester interface {
	Ingest(ctx context.Context, projectID, filePath, originalName string) (*timeline.Asset, error)
}

// ExportStore is the job persistence the handlers depend on.
type ExportStore interface {
	CreateExportJob(ctx context.Context, job *models.ExportJob) error
	GetExportJob(ctx context.Context, id string) (*models.ExportJob, error)
	ListExportJobs(ctx context.Context, projectID string, limit, offset int) ([]*models.ExportJob, error)
	CreateWebhook(ctx context.Context, webhook *models.Webhook) error
}

// ExportPublisher queues export requests for workers.
type ExportPublisher interface {
	PublishExport(ctx context.Context, req *models.ExportRequest) error
}

// ProgressCache serves export progress and cancel flags.
type ProgressCache interface {
	GetExportProgress(ctx context.Context, jobID string) (*cache.ExportProgress, error)
	RequestExportCancel(ctx context.Context, jobID string, ttl time.Duration) error
}

// API wires the HTTP surface to the editing, ingestion and export
// services.
type API struct {
	projects ProjectService
	sessions *session.Manager
	assets   AssetIngester
	exports  ExportStore
	queue    ExportPublisher
	progress ProgressCache
	uploads  *upload.Manager
	previews *preview.Manager
	health   func(ctx context.Context) error
	log      *logging.Logger
}

func setupRouter(api *API, logger *logging.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if logger != nil {
		router.Use(middleware.Logger(logger))
	}

	router.GET("/health", api.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/api/v1/auth/token", api.issueToken)

	rl := middleware.NewRateLimiter(50, 100)
	v1 := router.Group("/api/v1")
	v1.Use(middleware.JWTAuth(), middleware.RateLimit(rl))
	{
		v1.POST("/projects", api.createProject)
		v1.GET("/projects", api.listProjects)
		v1.GET("/projects/:id", api.getProject)
		v1.DELETE("/projects/:id", api.deleteProject)

		v1.GET("/projects/:id/document", api.getDocument)
		v1.PUT("/projects/:id/document", api.putDocument)

		v1.POST("/projects/:id/assets", api.uploadAsset)
		v1.POST("/projects/:id/commands", api.runCommand)

		v1.POST("/projects/:id/preview", api.startPreview)
		v1.DELETE("/projects/:id/preview", api.stopPreview)
		v1.POST("/projects/:id/preview/play", api.previewPlay)
		v1.POST("/projects/:id/preview/pause", api.previewPause)
		v1.POST("/projects/:id/preview/seek", api.previewSeek)
		v1.GET("/projects/:id/preview/position", api.previewPosition)
		v1.GET("/projects/:id/preview/frame", api.previewFrame)

		v1.POST("/projects/:id/uploads", api.initiateUpload)
		v1.PUT("/uploads/:id/parts/:part", api.uploadPart)
		v1.POST("/uploads/:id/complete", api.completeUpload)
		v1.DELETE("/uploads/:id", api.abortUpload)

		v1.POST("/projects/:id/exports", api.createExport)
		v1.GET("/projects/:id/exports", api.listExports)
		v1.GET("/exports/:id", api.getExport)
		v1.GET("/exports/:id/progress", api.getExportProgress)
		v1.POST("/exports/:id/cancel", api.cancelExport)

		v1.POST("/webhooks", api.createWebhook)
	}

	return router
}

func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if api.health != nil {
		if err := api.health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// issueToken mints a development token. Production deployments front
// this with a real identity provider.
func (api *API) issueToken(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
		Email  string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := middleware.GenerateToken(req.UserID, req.Email, 24*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (api *API) createProject(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := api.projects.Create(c.Request.Context(), userID, req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (api *API) listProjects(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	limit, offset := pagination(c)

	projects, err := api.projects.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects, "limit": limit, "offset": offset})
}

func (api *API) getProject(c *gin.Context) {
	p, ok := api.requireProject(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p)
}

func (api *API) deleteProject(c *gin.Context) {
	p, ok := api.requireProject(c)
	if !ok {
		return
	}

	api.sessions.Evict(p.ID)
	if err := api.projects.Delete(c.Request.Context(), p.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete project"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Project deleted", "project_id": p.ID})
}

func (api *API) getDocument(c *gin.Context) {
	p, ok := api.requireProject(c)
	if !ok {
		return
	}

	loaded, err := api.projects.Load(c.Request.Context(), p.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"document": loaded.State.ToDocument(),
		"revision": loaded.Revision,
		"warnings": loaded.Warnings,
	})
}

// putDocument is the direct save path for clients that edit locally:
// the whole document plus the revision it was loaded at.
func (api *API) putDocument(c *gin.Context) {
	p, ok := api.requireProject(c)
	if !ok {
		return
	}

	var req struct {
		Document json.RawMessage `json:"document" binding:"required"`
		Revision int64           `json:"revision" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := timeline.UnmarshalDocument(req.Document)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	state, warnings, err := timeline.FromDocument(doc)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	revision, err := api.projects.Save(c.Request.Context(), p.ID, state, req.Revision)
	if err != nil {
		if errors.Is(err, database.ErrRevisionConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Document was modified by another client"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// An external write supersedes any live session state.
	api.sessions.Evict(p.ID)

	c.JSON(http.StatusOK, gin.H{"revision": revision, "warnings": warnings})
}

func (api *API) uploadAsset(c *gin.Context) {
	p, ok := api.requireProject(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No media file provided"})
		return
	}

	tempPath := filepath.Join(os.TempDir(), uuid.New().String()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, tempPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
		return
	}
	defer os.Remove(tempPath)

	asset, err := api.assets.Ingest(c.Request.Context(), p.ID, tempPath, file.Filename)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	api.registerAsset(c, p.ID, asset)
	c.JSON(http.StatusCreated, asset)
}

// registerAsset adds an ingested asset to the live session so clips can
// reference it immediately; the save persists it.
func (api *API) registerAsset(c *gin.Context, projectID string, asset *timeline.Asset) {
	sess, err := api.sessions.Get(c.Request.Context(), projectID)
	if err != nil {
		if api.log != nil {
			api.log.WithProjectID(projectID).ErrorWithErr("failed to open session for asset", err)
		}
		return
	}
	if _, err := sess.Engine().AddAsset(*asset); err != nil && api.log != nil {
		api.log.WithProjectID(projectID).ErrorWithErr("failed to register asset in session", err)
	}
	if _, err := api.sessions.Save(c.Request.Context(), projectID); err != nil && api.log != nil {
		api.log.WithProjectID(projectID).ErrorWithErr("failed to save session after ingest", err)
	}
}

func (api *API) initiateUpload(c *gin.Context) {
	p, ok := api.requireProject(c)
	if !ok {
		return
	}

	var req struct {
		Filename  string `json:"filename" binding:"required"`
		TotalSize int64  `json:"total_size" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := api.uploads.Initiate(p.ID, req.Filename, req.TotalSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (api *API) uploadPart(c *gin.Context) {
	if _, ok := api.requireUploadSession(c); !ok {
		return
	}

	partNumber, err := strconv.Atoi(c.Param("part"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid part number"})
		return
	}

	part, err := api.uploads.PutPart(c.Param("id"), partNumber, c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, part)
}

func (api *API) completeUpload(c *gin.Context) {
	sess, ok := api.requireUploadSession(c)
	if !ok {
		return
	}

	finalPath, err := api.uploads.Complete(sess.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	asset, err := api.assets.Ingest(c.Request.Context(), sess.ProjectID, finalPath, sess.Filename)
	// The session directory holds the assembled file; reclaim it either
	// way once ingestion has run.
	defer api.uploads.Abort(sess.ID)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	api.registerAsset(c, sess.ProjectID, asset)
	c.JSON(http.StatusCreated, asset)
}

func (api *API) abortUpload(c *gin.Context) {
	sess, ok := api.requireUploadSession(c)
	if !ok {
		return
	}
	if err := api.uploads.Abort(sess.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Upload aborted", "upload_id": sess.ID})
}

// requireUploadSession resolves an upload session and enforces
// ownership of its project.
func (api *API) requireUploadSession(c *gin.Context) (*upload.Session, bool) {
	userID, _ := middleware.GetUserID(c)

	sess, err := api.uploads.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Upload not found"})
		return nil, false
	}
	p, err := api.projects.Get(c.Request.Context(), sess.ProjectID)
	if err != nil || p.OwnerID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Upload not found"})
		return nil, false
	}
	return sess, true
}

func (api *API) runCommand(c *gin.Context) {
	p, ok := api.requireProject(c)
	if !ok {
		return
	}

	var cmd commands.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := api.sessions.Get(c.Request.Context(), p.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result, err := sess.Dispatch(cmd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	revision, err := api.sessions.Save(c.Request.Context(), p.ID)
	if err != nil {
		if errors.Is(err, database.ErrRevisionConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Document was modified by another client"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result, "revision": revision})
}

func (api *API) startPreview(c *gin.Context) {
	p, ok := api.requireProject(c)
	if !ok {
		return
	}

	projectID := p.ID
	state := func(ctx context.Context) (*timeline.EditorState, error) {
		sess, err := api.sessions.Get(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return sess.Snapshot(), nil
	}

	s, err := api.previews.Open(projectID, state)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	pos, playing := s.Position()
	width, height := s.Size()
	c.JSON(http.StatusCreated, gin.H{
		"project_id": projectID,
		"position":   pos,
		"playing":    playing,
		"width":      width,
		"height":     height,
	})
}

func (api *API) stopPreview(c *gin.Context) {
	p, ok := api.requireProject(c)
	if !ok {
		return
	}
	if err := api.previews.Close(p.ID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No preview session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Preview closed"})
}

func (api *API) requirePreview(c *gin.Context) (*preview.Session, bool) {
	p, ok := api.requireProject(c)
	if !ok {
		return nil, false
	}
	s, err := api.previews.Get(p.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No preview session"})
		return nil, false
	}
	return s, true
}

func (api *API) previewPlay(c *gin.Context) {
	s, ok := api.requirePreview(c)
	if !ok {
		return
	}
	s.Play()
	pos, playing := s.Position()
	c.JSON(http.StatusOK, gin.H{"position": pos, "playing": playing})
}

func (api *API) previewPause(c *gin.Context) {
	s, ok := api.requirePreview(c)
	if !ok {
		return
	}
	s.Pause()
	pos, playing := s.Position()
	c.JSON(http.StatusOK, gin.H{"position": pos, "playing": playing})
}

func (api *API) previewSeek(c *gin.Context) {
	s, ok := api.requirePreview(c)
	if !ok {
		return
	}

	var req struct {
		Position float64 `json:"position"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pos := s.Seek(req.Position)
	_, playing := s.Position()
	c.JSON(http.StatusOK, gin.H{"position": pos, "playing": playing})
}

func (api *API) previewPosition(c *gin.Context) {
	s, ok := api.requirePreview(c)
	if !ok {
		return
	}
	pos, playing := s.Position()
	c.JSON(http.StatusOK, gin.H{"position": pos, "playing": playing})
}

func (api *API) previewFrame(c *gin.Context) {
	s, ok := api.requirePreview(c)
	if !ok {
		return
	}

	var at *float64
	if raw := c.Query("t"); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid frame time"})
			return
		}
		at = &t
	}

	frame, err := s.Frame(c.Request.Context(), at)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: 85}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", buf.Bytes())
}

func (api *API) createExport(c *gin.Context) {
	p, ok := api.requireProject(c)
	if !ok {
		return
	}

	var req struct {
		AspectRatio string `json:"aspect_ratio"`
		FrameRate   int    `json:"frame_rate"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	// Flush any live edits so the worker renders what the user sees.
	if _, err := api.sessions.Save(c.Request.Context(), p.ID); err != nil {
		if errors.Is(err, database.ErrRevisionConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Document was modified by another client"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	job := &models.ExportJob{
		ID:        uuid.New().String(),
		ProjectID: p.ID,
		Status:    models.ExportStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := api.exports.CreateExportJob(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create export job"})
		return
	}

	exportReq := &models.ExportRequest{
		JobID:       job.ID,
		ProjectID:   p.ID,
		AspectRatio: req.AspectRatio,
		FrameRate:   req.FrameRate,
	}
	if err := api.queue.PublishExport(c.Request.Context(), exportReq); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue export"})
		return
	}

	c.JSON(http.StatusAccepted, job)
}

func (api *API) listExports(c *gin.Context) {
	p, ok := api.requireProject(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	jobs, err := api.exports.ListExportJobs(c.Request.Context(), p.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exports": jobs})
}

func (api *API) getExport(c *gin.Context) {
	job, ok := api.requireExportJob(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, job)
}

func (api *API) getExportProgress(c *gin.Context) {
	job, ok := api.requireExportJob(c)
	if !ok {
		return
	}

	if api.progress != nil {
		if p, err := api.progress.GetExportProgress(c.Request.Context(), job.ID); err == nil && p != nil {
			c.JSON(http.StatusOK, p)
			return
		}
	}
	// Fall back to the last persisted progress.
	c.JSON(http.StatusOK, cache.ExportProgress{
		PercentComplete: job.Progress,
		StatusMessage:   job.StatusMessage,
	})
}

func (api *API) cancelExport(c *gin.Context) {
	job, ok := api.requireExportJob(c)
	if !ok {
		return
	}

	switch job.Status {
	case models.ExportStatusCompleted, models.ExportStatusFailed, models.ExportStatusCancelled:
		c.JSON(http.StatusConflict, gin.H{"error": "Export already finished"})
		return
	}

	if api.progress == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Cancellation unavailable"})
		return
	}
	if err := api.progress.RequestExportCancel(c.Request.Context(), job.ID, cancelFlagTTL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Cancellation requested", "job_id": job.ID})
}

func (api *API) createWebhook(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req struct {
		URL    string               `json:"url" binding:"required"`
		Secret string               `json:"secret"`
		Events models.WebhookEvents `json:"events"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wh := &models.Webhook{
		ID:       uuid.New().String(),
		OwnerID:  userID,
		URL:      req.URL,
		Secret:   req.Secret,
		Events:   req.Events,
		IsActive: true,
	}
	if err := api.exports.CreateWebhook(c.Request.Context(), wh); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create webhook"})
		return
	}
	c.JSON(http.StatusCreated, wh)
}

// requireProject resolves the :id route parameter and enforces
// ownership.
func (api *API) requireProject(c *gin.Context) (*models.Project, bool) {
	userID, _ := middleware.GetUserID(c)

	p, err := api.projects.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return nil, false
	}
	if p.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your project"})
		return nil, false
	}
	return p, true
}

// requireExportJob resolves an export job and enforces ownership of its
// project.
func (api *API) requireExportJob(c *gin.Context) (*models.ExportJob, bool) {
	userID, _ := middleware.GetUserID(c)

	job, err := api.exports.GetExportJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Export not found"})
		return nil, false
	}
	p, err := api.projects.Get(c.Request.Context(), job.ProjectID)
	if err != nil || p.OwnerID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Export not found"})
		return nil, false
	}
	return job, true
}

func pagination(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
