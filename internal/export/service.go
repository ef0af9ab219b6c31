package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/cutlinehq/cutline/internal/cache"
	"github.com/cutlinehq/cutline/internal/config"
	"github.com/cutlinehq/cutline/internal/logging"
	"github.com/cutlinehq/cutline/internal/media"
	"github.com/cutlinehq/cutline/internal/storage"
	"github.com/cutlinehq/cutline/internal/tracing"
	"github.com/cutlinehq/cutline/internal/webhook"
	"github.com/cutlinehq/cutline/pkg/models"
	"github.com/cutlinehq/cutline/pkg/timeline"
)

const (
	// jobLockTTL bounds how long one worker owns a job before another
	// may reclaim it.
	jobLockTTL = 30 * time.Minute
	// progressTTL keeps progress entries pollable well past completion.
	progressTTL = time.Hour
	// progressPersistStep is the minimum percent advance between
	// database writes; the cache gets every callback.
	progressPersistStep = 5.0
)

// ObjectStore is the slice of the storage layer the export worker needs.
type ObjectStore interface {
	DownloadFile(ctx context.Context, objectName, filePath string) error
	UploadFile(ctx context.Context, objectName, filePath string) error
}

// JobRepository is the slice of the database layer the export worker
// needs.
type JobRepository interface {
	GetExportJob(ctx context.Context, id string) (*models.ExportJob, error)
	GetDocument(ctx context.Context, projectID string) (*models.ProjectDocument, error)
	MarkExportJobStarted(ctx context.Context, id, workerID string) error
	MarkExportJobCompleted(ctx context.Context, id, outputPath, codec string, duration float64) error
	UpdateExportJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateExportJobProgress(ctx context.Context, id string, progress float64, statusMessage string) error
}

// Service runs queued export jobs end to end: it claims the job, loads
// the project document, renders it and uploads the result.
type Service struct {
	exportCfg config.ExportConfig
	editorCfg config.EditorConfig
	repo      JobRepository
	store     ObjectStore
	cache     *cache.Cache
	hooks     *webhook.Service
	log       *logging.Logger
	workerID  string
}

// NewService creates an export worker service. cache and hooks may be
// nil; claiming then degrades to database state only.
func NewService(exportCfg config.ExportConfig, editorCfg config.EditorConfig, repo JobRepository, store ObjectStore, c *cache.Cache, hooks *webhook.Service, log *logging.Logger) *Service {
	hostname, _ := os.Hostname()
	return &Service{
		exportCfg: exportCfg,
		editorCfg: editorCfg,
		repo:      repo,
		store:     store,
		cache:     c,
		hooks:     hooks,
		log:       log,
		workerID:  fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8]),
	}
}

// WorkerID identifies this worker instance in job records.
func (s *Service) WorkerID() string { return s.workerID }

// ProcessExport handles one queued export request. A returned error
// means the job should be retried; permanent failures (empty timeline,
// no codec, cancellation) are recorded on the job and swallowed.
func (s *Service) ProcessExport(ctx context.Context, req *models.ExportRequest) error {
	span, ctx := tracing.StartSpan(ctx, "export.process")
	defer tracing.FinishSpan(span)
	tracing.TagProject(span, req.ProjectID)
	tracing.TagExport(span, req.JobID)

	if s.cache != nil {
		acquired, err := s.cache.AcquireLock(ctx, "export:"+req.JobID, jobLockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire job lock: %w", err)
		}
		if !acquired {
			if s.log != nil {
				s.log.WithExportID(req.JobID).Warn("job already claimed by another worker")
			}
			return nil
		}
		defer s.cache.ReleaseLock(context.Background(), "export:"+req.JobID)
	}

	job, err := s.repo.GetExportJob(ctx, req.JobID)
	if err != nil {
		return fmt.Errorf("failed to load export job: %w", err)
	}
	switch job.Status {
	case models.ExportStatusCompleted, models.ExportStatusCancelled:
		return nil
	}

	if err := s.repo.MarkExportJobStarted(ctx, job.ID, s.workerID); err != nil {
		return fmt.Errorf("failed to mark job started: %w", err)
	}

	result, renderErr := s.render(ctx, job, req)
	if renderErr != nil {
		tracing.LogError(span, renderErr)
		return s.recordFailure(ctx, job, renderErr)
	}

	objectName := storage.ExportObjectName(job.ProjectID, job.ID, containerExt(result.Codec.Container))
	if err := s.store.UploadFile(ctx, objectName, result.OutputPath); err != nil {
		tracing.LogError(span, err)
		return s.recordFailure(ctx, job, fmt.Errorf("failed to upload export output: %w", err))
	}

	if err := s.repo.MarkExportJobCompleted(ctx, job.ID, objectName, result.Codec.Label, result.Duration); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	s.publishProgress(ctx, job.ID, 100, "completed")

	if s.hooks != nil {
		job.Status = models.ExportStatusCompleted
		job.OutputPath = objectName
		job.Codec = result.Codec.Label
		job.Duration = result.Duration
		if err := s.hooks.NotifyExportCompleted(ctx, job); err != nil && s.log != nil {
			s.log.WithExportID(job.ID).ErrorWithErr("failed to send completion webhook", err)
		}
	}

	if s.log != nil {
		s.log.WithProjectID(job.ProjectID).WithExportID(job.ID).
			WithField("frames", result.FramesWritten).
			WithField("codec", result.Codec.Label).
			Info("export completed")
	}
	return nil
}

// render loads the document, stages the referenced assets locally and
// runs the renderer.
func (s *Service) render(ctx context.Context, job *models.ExportJob, req *models.ExportRequest) (*Result, error) {
	rec, err := s.repo.GetDocument(ctx, job.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project document: %w", err)
	}
	doc, err := timeline.UnmarshalDocument(rec.Document)
	if err != nil {
		return nil, err
	}
	state, warnings, err := timeline.FromDocument(doc)
	if err != nil {
		return nil, err
	}
	if len(warnings) > 0 && s.log != nil {
		s.log.WithExportID(job.ID).WithField("orphan_clips", warnings).Warn("exporting with orphan clips skipped")
	}
	if req.AspectRatio != "" {
		state.AspectRatio = req.AspectRatio
	}

	workDir := filepath.Join(s.tempDir(), "export-"+job.ID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	paths, err := s.stageAssets(ctx, state, workDir)
	if err != nil {
		return nil, err
	}

	ffmpeg := media.NewFFmpeg(s.editorCfg.FFmpegPath, s.editorCfg.FFprobePath)
	enc := NewFFmpegEncoder(s.editorCfg.FFmpegPath)

	variants := s.codecVariants()
	codec, err := SelectCodec(ctx, enc.ProbeVariant, variants)
	if err != nil {
		return nil, err
	}
	outputPath := filepath.Join(workDir, "output."+containerExt(codec.Container))

	resolve := func(asset *timeline.Asset) string { return paths[asset.ID] }
	renderer := NewRenderer(
		&localFrameSource{ffmpeg: ffmpeg, paths: paths},
		enc,
		enc.ProbeVariant,
		func() media.Element { return media.NewClockElement(nil) },
		resolve,
		nil,
		s.log,
	)

	renderCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	frameRate := req.FrameRate
	if frameRate <= 0 {
		frameRate = s.exportCfg.FrameRate
	}

	lastPersisted := -progressPersistStep
	onProgress := func(p Progress) {
		s.publishProgress(renderCtx, job.ID, p.PercentComplete, p.StatusMessage)
		if p.PercentComplete-lastPersisted >= progressPersistStep {
			lastPersisted = p.PercentComplete
			if err := s.repo.UpdateExportJobProgress(renderCtx, job.ID, p.PercentComplete, p.StatusMessage); err != nil && s.log != nil {
				s.log.WithExportID(job.ID).ErrorWithErr("failed to persist progress", err)
			}
		}
		// Cancellation is polled between frames so a cancel request
		// takes effect before the next tick.
		if s.cache != nil {
			if cancelled, err := s.cache.ExportCancelRequested(renderCtx, job.ID); err == nil && cancelled {
				cancel()
			}
		}
	}

	return renderer.Render(renderCtx, state, Options{
		FrameRate:   frameRate,
		GracePeriod: s.exportCfg.GracePeriod,
		OutputPath:  outputPath,
		Variants:    []CodecVariant{codec},
		OnProgress:  onProgress,
	})
}

// stageAssets downloads every asset referenced by a clip into the work
// directory and returns the asset id to local path mapping.
func (s *Service) stageAssets(ctx context.Context, state *timeline.EditorState, workDir string) (map[string]string, error) {
	used := make(map[string]bool)
	for _, c := range state.Clips {
		used[c.AssetID] = true
	}

	paths := make(map[string]string)
	for _, a := range state.Assets {
		if !used[a.ID] || a.ContentPath == "" {
			continue
		}
		localPath := filepath.Join(workDir, a.ID+filepath.Ext(a.ContentPath))
		if err := s.store.DownloadFile(ctx, a.ContentPath, localPath); err != nil {
			return nil, fmt.Errorf("failed to stage asset %s (%s): %w", a.ID, a.Name, err)
		}
		paths[a.ID] = localPath
	}
	return paths, nil
}

// recordFailure writes the terminal status for a failed render. Only
// transient errors propagate so the queue retries them.
func (s *Service) recordFailure(ctx context.Context, job *models.ExportJob, renderErr error) error {
	status := models.ExportStatusFailed
	if errors.Is(renderErr, context.Canceled) {
		status = models.ExportStatusCancelled
	}
	if err := s.repo.UpdateExportJobStatus(ctx, job.ID, status, renderErr.Error()); err != nil && s.log != nil {
		s.log.WithExportID(job.ID).ErrorWithErr("failed to record job failure", err)
	}
	s.publishProgress(ctx, job.ID, job.Progress, status)

	if s.hooks != nil && status == models.ExportStatusFailed {
		job.Status = status
		job.ErrorMsg = renderErr.Error()
		if err := s.hooks.NotifyExportFailed(ctx, job); err != nil && s.log != nil {
			s.log.WithExportID(job.ID).ErrorWithErr("failed to send failure webhook", err)
		}
	}

	if s.log != nil {
		s.log.WithExportID(job.ID).ErrorWithErr("export did not complete", renderErr)
	}
	// Structural failures will fail identically on every retry.
	if errors.Is(renderErr, ErrEmptyTimeline) ||
		errors.Is(renderErr, ErrNoSupportedCodec) ||
		errors.Is(renderErr, context.Canceled) {
		return nil
	}
	return renderErr
}

// publishProgress pushes a progress entry to the cache for polling.
func (s *Service) publishProgress(ctx context.Context, jobID string, percent float64, status string) {
	if s.cache == nil {
		return
	}
	p := cache.ExportProgress{PercentComplete: percent, StatusMessage: status}
	if err := s.cache.SetExportProgress(ctx, jobID, p, progressTTL); err != nil && s.log != nil {
		s.log.WithExportID(jobID).ErrorWithErr("failed to publish progress", err)
	}
}

// codecVariants filters the default fallback order down to the
// configured labels; an empty configuration keeps the full order.
func (s *Service) codecVariants() []CodecVariant {
	all := DefaultCodecVariants()
	if len(s.exportCfg.CodecLabels) == 0 {
		return all
	}
	var out []CodecVariant
	for _, label := range s.exportCfg.CodecLabels {
		for _, v := range all {
			if v.Label == label {
				out = append(out, v)
			}
		}
	}
	if len(out) == 0 {
		return all
	}
	return out
}

func (s *Service) tempDir() string {
	if s.exportCfg.TempDir != "" {
		return s.exportCfg.TempDir
	}
	return os.TempDir()
}

// containerExt maps a container format to its file extension.
func containerExt(container string) string {
	if container == "matroska" {
		return "mkv"
	}
	return container
}

// localFrameSource decodes frames from assets staged on the local disk.
type localFrameSource struct {
	ffmpeg *media.FFmpeg
	paths  map[string]string
}

func (l *localFrameSource) FrameAt(ctx context.Context, asset *timeline.Asset, localTime float64, width, height int) (*image.RGBA, error) {
	path, ok := l.paths[asset.ID]
	if !ok {
		return nil, fmt.Errorf("asset %s is not staged", asset.ID)
	}
	return l.ffmpeg.FrameAt(ctx, path, localTime, width, height)
}
