package assets

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cutlinehq/cutline/internal/logging"
	"github.com/cutlinehq/cutline/internal/media"
	"github.com/cutlinehq/cutline/internal/metrics"
	"github.com/cutlinehq/cutline/internal/storage"
	"github.com/cutlinehq/cutline/pkg/timeline"
)

// thumbnailTTL bounds how long a cached thumbnail pointer stays warm.
const thumbnailTTL = 24 * time.Hour

// Prober extracts media properties and preview stills from a local file.
type Prober interface {
	Probe(ctx context.Context, inputPath string) (*media.SourceInfo, error)
	ExtractThumbnail(ctx context.Context, inputPath, outputPath string, timeSeconds float64) error
}

// ObjectStore is the slice of the storage layer ingestion needs.
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName, filePath string) error
	Delete(ctx context.Context, objectName string) error
}

// ThumbnailCache remembers where an asset's thumbnail lives.
type ThumbnailCache interface {
	SetThumbnail(ctx context.Context, assetID string, path string, ttl time.Duration) error
}

// Notifier is invoked after an asset has been fully ingested.
type Notifier interface {
	NotifyAssetIngested(ctx context.Context, data interface{}) error
}

// IngestedAsset is the webhook payload emitted after ingestion.
type IngestedAsset struct {
	ProjectID string         `json:"project_id"`
	Asset     timeline.Asset `json:"asset"`
	SizeBytes int64          `json:"size_bytes"`
}

// Service ingests uploaded media files: it probes them, stores the bytes
// and a thumbnail, and produces the asset record the editor works with.
type Service struct {
	store    ObjectStore
	prober   Prober
	thumbs   ThumbnailCache
	notifier Notifier
	log      *logging.Logger
	tempDir  string
}

// NewService creates an ingestion service. notifier may be nil when no
// webhook delivery is configured.
func NewService(store ObjectStore, prober Prober, thumbs ThumbnailCache, notifier Notifier, tempDir string, log *logging.Logger) *Service {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Service{
		store:    store,
		prober:   prober,
		thumbs:   thumbs,
		notifier: notifier,
		log:      log,
		tempDir:  tempDir,
	}
}

// imageExtensions are ingested as still images without probing streams.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// Ingest probes a local media file, uploads it under the project's asset
// prefix and returns the asset record to add to the editor state. The
// source file is left in place; callers own its cleanup.
func (s *Service) Ingest(ctx context.Context, projectID, filePath, originalName string) (*timeline.Asset, error) {
	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat upload: %w", err)
	}

	asset := &timeline.Asset{
		ID:   uuid.New().String(),
		Name: originalName,
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	if imageExtensions[ext] {
		asset.Kind = timeline.AssetKindImage
	} else {
		info, err := s.prober.Probe(ctx, filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to probe %s: %w", originalName, err)
		}
		switch {
		case info.HasVideo:
			asset.Kind = timeline.AssetKindVideo
		case info.HasAudio:
			asset.Kind = timeline.AssetKindAudio
		default:
			return nil, fmt.Errorf("unsupported media file %s: no audio or video streams", originalName)
		}
		if info.Duration > 0 {
			d := info.Duration
			asset.Duration = &d
		}
	}

	objectName := storage.AssetObjectName(projectID, asset.ID, originalName)
	start := time.Now()
	if err := s.store.UploadFile(ctx, objectName, filePath); err != nil {
		return nil, fmt.Errorf("failed to upload asset %s: %w", asset.ID, err)
	}
	if s.log != nil {
		s.log.LogStorageOperation("upload", "media", objectName, stat.Size(), time.Since(start), nil)
	}
	asset.ContentPath = objectName

	if asset.Kind != timeline.AssetKindAudio {
		thumb, err := s.ingestThumbnail(ctx, projectID, asset, filePath)
		if err != nil {
			// Thumbnails are cosmetic; a failed extraction never sinks
			// the ingest.
			s.logError(asset.ID, "failed to extract thumbnail", err)
		} else {
			asset.Thumbnail = thumb
		}
	}

	metrics.RecordAssetIngest(string(asset.Kind), stat.Size())

	if s.notifier != nil {
		payload := IngestedAsset{ProjectID: projectID, Asset: *asset, SizeBytes: stat.Size()}
		if err := s.notifier.NotifyAssetIngested(ctx, payload); err != nil {
			s.logError(asset.ID, "failed to send asset webhook", err)
		}
	}

	if s.log != nil {
		s.log.WithProjectID(projectID).WithAssetID(asset.ID).
			WithField("kind", string(asset.Kind)).
			WithField("size_bytes", stat.Size()).
			Info("asset ingested")
	}

	return asset, nil
}

// ingestThumbnail extracts a still, uploads it and records its location.
// Videos are sampled one second in (or at the midpoint of very short
// clips); images are sampled at zero.
func (s *Service) ingestThumbnail(ctx context.Context, projectID string, asset *timeline.Asset, filePath string) (string, error) {
	at := 0.0
	if asset.Kind == timeline.AssetKindVideo {
		at = 1.0
		if asset.HasKnownDuration() && *asset.Duration < 2.0 {
			at = *asset.Duration / 2
		}
	}

	tmpPath := filepath.Join(s.tempDir, fmt.Sprintf("thumb-%s.jpg", asset.ID))
	if err := s.prober.ExtractThumbnail(ctx, filePath, tmpPath, at); err != nil {
		return "", err
	}
	defer os.Remove(tmpPath)

	objectName := storage.ThumbnailObjectName(projectID, asset.ID)
	if err := s.store.UploadFile(ctx, objectName, tmpPath); err != nil {
		return "", fmt.Errorf("failed to upload thumbnail: %w", err)
	}

	if s.thumbs != nil {
		if err := s.thumbs.SetThumbnail(ctx, asset.ID, objectName, thumbnailTTL); err != nil {
			s.logError(asset.ID, "failed to cache thumbnail path", err)
		}
	}
	return objectName, nil
}

func (s *Service) logError(assetID, msg string, err error) {
	if s.log != nil {
		s.log.WithAssetID(assetID).ErrorWithErr(msg, err)
	}
}

// Remove deletes an asset's stored content and thumbnail. The editor-side
// cascade (dropping clips that reference the asset) happens in the
// timeline state, not here.
func (s *Service) Remove(ctx context.Context, asset *timeline.Asset) error {
	if asset.ContentPath != "" {
		if err := s.store.Delete(ctx, asset.ContentPath); err != nil {
			return fmt.Errorf("failed to delete asset content: %w", err)
		}
	}
	if asset.Thumbnail != "" {
		if err := s.store.Delete(ctx, asset.Thumbnail); err != nil {
			s.logError(asset.ID, "failed to delete thumbnail", err)
		}
	}
	return nil
}

// CopyToTemp spools an uploaded stream to the ingest temp directory and
// returns the local path. Callers remove the file when done.
func (s *Service) CopyToTemp(r io.Reader, originalName string) (string, error) {
	f, err := os.CreateTemp(s.tempDir, "ingest-*"+filepath.Ext(originalName))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to spool upload: %w", err)
	}
	return f.Name(), nil
}
