package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutlinehq/cutline/internal/config"
	"github.com/cutlinehq/cutline/pkg/models"
	"github.com/cutlinehq/cutline/pkg/timeline"
)

type fakeObjectStore struct {
	downloads map[string]string
	uploads   map[string]string
	failOn    string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{downloads: make(map[string]string), uploads: make(map[string]string)}
}

func (f *fakeObjectStore) DownloadFile(ctx context.Context, objectName, filePath string) error {
	if f.failOn != "" && objectName == f.failOn {
		return os.ErrNotExist
	}
	f.downloads[objectName] = filePath
	return os.WriteFile(filePath, []byte("bytes"), 0o644)
}

func (f *fakeObjectStore) UploadFile(ctx context.Context, objectName, filePath string) error {
	f.uploads[objectName] = filePath
	return nil
}

type fakeJobRepo struct {
	jobs     map[string]*models.ExportJob
	statuses []string
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]*models.ExportJob)}
}

func (f *fakeJobRepo) GetExportJob(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, os.ErrNotExist
	}
	return job, nil
}

func (f *fakeJobRepo) GetDocument(ctx context.Context, projectID string) (*models.ProjectDocument, error) {
	return nil, os.ErrNotExist
}

func (f *fakeJobRepo) MarkExportJobStarted(ctx context.Context, id, workerID string) error {
	f.statuses = append(f.statuses, models.ExportStatusProcessing)
	return nil
}

func (f *fakeJobRepo) MarkExportJobCompleted(ctx context.Context, id, outputPath, codec string, duration float64) error {
	f.statuses = append(f.statuses, models.ExportStatusCompleted)
	return nil
}

func (f *fakeJobRepo) UpdateExportJobStatus(ctx context.Context, id, status, errorMsg string) error {
	f.statuses = append(f.statuses, status)
	if job, ok := f.jobs[id]; ok {
		job.Status = status
		job.ErrorMsg = errorMsg
	}
	return nil
}

func (f *fakeJobRepo) UpdateExportJobProgress(ctx context.Context, id string, progress float64, statusMessage string) error {
	return nil
}

func newExportService(cfg config.ExportConfig, repo JobRepository, store ObjectStore) *Service {
	return NewService(cfg, config.EditorConfig{}, repo, store, nil, nil, nil)
}

func TestCodecVariantsFilter(t *testing.T) {
	svc := newExportService(config.ExportConfig{CodecLabels: []string{"webm/vp9", "mp4/h264"}}, nil, nil)

	variants := svc.codecVariants()
	require.Len(t, variants, 2)
	assert.Equal(t, "webm/vp9", variants[0].Label)
	assert.Equal(t, "mp4/h264", variants[1].Label)
}

func TestCodecVariantsEmptyConfigKeepsDefaults(t *testing.T) {
	svc := newExportService(config.ExportConfig{}, nil, nil)
	assert.Equal(t, DefaultCodecVariants(), svc.codecVariants())
}

func TestCodecVariantsUnknownLabelsFallBack(t *testing.T) {
	svc := newExportService(config.ExportConfig{CodecLabels: []string{"prores/hq"}}, nil, nil)
	assert.Equal(t, DefaultCodecVariants(), svc.codecVariants())
}

func TestContainerExt(t *testing.T) {
	assert.Equal(t, "mp4", containerExt("mp4"))
	assert.Equal(t, "webm", containerExt("webm"))
	assert.Equal(t, "mkv", containerExt("matroska"))
}

func TestStageAssetsDownloadsOnlyReferenced(t *testing.T) {
	store := newFakeObjectStore()
	svc := newExportService(config.ExportConfig{}, nil, store)

	dur := 10.0
	state := timeline.NewEditorState()
	state.Assets = []timeline.Asset{
		{ID: "used", Kind: timeline.AssetKindVideo, Name: "a.mp4", ContentPath: "assets/p/used.mp4", Duration: &dur},
		{ID: "unused", Kind: timeline.AssetKindVideo, Name: "b.mp4", ContentPath: "assets/p/unused.mp4", Duration: &dur},
	}
	state.Clips = []timeline.Clip{
		{ID: "c1", AssetID: "used", StartTime: 0, Duration: 5, Volume: 1, Speed: 1},
	}

	workDir := t.TempDir()
	paths, err := svc.stageAssets(context.Background(), state, workDir)
	require.NoError(t, err)

	require.Contains(t, paths, "used")
	assert.NotContains(t, paths, "unused")
	assert.Equal(t, ".mp4", filepath.Ext(paths["used"]))
	assert.Len(t, store.downloads, 1)
}

func TestStageAssetsFailureNamesAsset(t *testing.T) {
	store := newFakeObjectStore()
	store.failOn = "assets/p/used.mp4"
	svc := newExportService(config.ExportConfig{}, nil, store)

	dur := 10.0
	state := timeline.NewEditorState()
	state.Assets = []timeline.Asset{
		{ID: "used", Kind: timeline.AssetKindVideo, Name: "a.mp4", ContentPath: "assets/p/used.mp4", Duration: &dur},
	}
	state.Clips = []timeline.Clip{
		{ID: "c1", AssetID: "used", StartTime: 0, Duration: 5, Volume: 1, Speed: 1},
	}

	_, err := svc.stageAssets(context.Background(), state, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "used")
	assert.Contains(t, err.Error(), "a.mp4")
}

func TestRecordFailureClassification(t *testing.T) {
	tests := []struct {
		name       string
		renderErr  error
		wantStatus string
		wantRetry  bool
	}{
		{"empty timeline is permanent", ErrEmptyTimeline, models.ExportStatusFailed, false},
		{"no codec is permanent", ErrNoSupportedCodec, models.ExportStatusFailed, false},
		{"cancellation is recorded as cancelled", context.Canceled, models.ExportStatusCancelled, false},
		{"transient errors retry", errors.New("connection reset"), models.ExportStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeJobRepo()
			job := &models.ExportJob{ID: "job-1", ProjectID: "p-1", Status: models.ExportStatusProcessing}
			repo.jobs[job.ID] = job

			svc := newExportService(config.ExportConfig{}, repo, newFakeObjectStore())
			err := svc.recordFailure(context.Background(), job, tt.renderErr)

			assert.Equal(t, tt.wantStatus, job.Status)
			if tt.wantRetry {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProcessExportSkipsFinishedJobs(t *testing.T) {
	repo := newFakeJobRepo()
	repo.jobs["job-1"] = &models.ExportJob{ID: "job-1", Status: models.ExportStatusCompleted}
	svc := newExportService(config.ExportConfig{}, repo, newFakeObjectStore())

	err := svc.ProcessExport(context.Background(), &models.ExportRequest{JobID: "job-1", ProjectID: "p-1"})
	require.NoError(t, err)
	assert.Empty(t, repo.statuses, "a finished job is never restarted")
}

func TestWorkerIDIsStable(t *testing.T) {
	svc := newExportService(config.ExportConfig{}, nil, nil)
	assert.NotEmpty(t, svc.WorkerID())
	assert.Equal(t, svc.WorkerID(), svc.WorkerID())
}
