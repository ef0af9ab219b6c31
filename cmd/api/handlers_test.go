package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutlinehq/cutline/internal/cache"
	"github.com/cutlinehq/cutline/internal/database"
	"github.com/cutlinehq/cutline/internal/middleware"
	"github.com/cutlinehq/cutline/internal/preview"
	"github.com/cutlinehq/cutline/internal/project"
	"github.com/cutlinehq/cutline/internal/session"
	"github.com/cutlinehq/cutline/internal/upload"
	"github.com/cutlinehq/cutline/pkg/models"
	"github.com/cutlinehq/cutline/pkg/timeline"
)

type fakeProjects struct {
	projects  map[string]*models.Project
	states    map[string]*timeline.EditorState
	revisions map[string]int64
}

func newFakeProjects() *fakeProjects {
	return &fakeProjects{
		projects:  make(map[string]*models.Project),
		states:    make(map[string]*timeline.EditorState),
		revisions: make(map[string]int64),
	}
}

func (f *fakeProjects) seed(ownerID string) *models.Project {
	p := &models.Project{ID: uuid.New().String(), OwnerID: ownerID, Name: "Cut"}
	f.projects[p.ID] = p
	f.states[p.ID] = timeline.NewEditorState()
	f.revisions[p.ID] = 1
	return p
}

func (f *fakeProjects) Create(ctx context.Context, ownerID, name string) (*models.Project, error) {
	p := f.seed(ownerID)
	p.Name = name
	return p, nil
}

func (f *fakeProjects) Get(ctx context.Context, id string) (*models.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return p, nil
}

func (f *fakeProjects) List(ctx context.Context, ownerID string, limit, offset int) ([]*models.Project, error) {
	var out []*models.Project
	for _, p := range f.projects {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProjects) Delete(ctx context.Context, id string) error {
	delete(f.projects, id)
	return nil
}

func (f *fakeProjects) Load(ctx context.Context, projectID string) (*project.LoadedState, error) {
	state, ok := f.states[projectID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &project.LoadedState{State: state.Clone(), Revision: f.revisions[projectID]}, nil
}

func (f *fakeProjects) Save(ctx context.Context, projectID string, state *timeline.EditorState, expectedRevision int64) (int64, error) {
	if f.revisions[projectID] != expectedRevision {
		return 0, database.ErrRevisionConflict
	}
	f.revisions[projectID]++
	f.states[projectID] = state.Clone()
	return f.revisions[projectID], nil
}

type fakeExports struct {
	jobs     map[string]*models.ExportJob
	webhooks []*models.Webhook
}

func newFakeExports() *fakeExports {
	return &fakeExports{jobs: make(map[string]*models.ExportJob)}
}

func (f *fakeExports) CreateExportJob(ctx context.Context, job *models.ExportJob) error {
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeExports) GetExportJob(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return job, nil
}

func (f *fakeExports) ListExportJobs(ctx context.Context, projectID string, limit, offset int) ([]*models.ExportJob, error) {
	var out []*models.ExportJob
	for _, j := range f.jobs {
		if j.ProjectID == projectID {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeExports) CreateWebhook(ctx context.Context, wh *models.Webhook) error {
	f.webhooks = append(f.webhooks, wh)
	return nil
}

type fakePublisher struct {
	published []*models.ExportRequest
}

func (f *fakePublisher) PublishExport(ctx context.Context, req *models.ExportRequest) error {
	f.published = append(f.published, req)
	return nil
}

type fakeProgress struct {
	entries map[string]*cache.ExportProgress
	cancels []string
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{entries: make(map[string]*cache.ExportProgress)}
}

func (f *fakeProgress) GetExportProgress(ctx context.Context, jobID string) (*cache.ExportProgress, error) {
	return f.entries[jobID], nil
}

func (f *fakeProgress) RequestExportCancel(ctx context.Context, jobID string, ttl time.Duration) error {
	f.cancels = append(f.cancels, jobID)
	return nil
}

type fakeIngester struct {
	ingested []string
	fail     bool
}

func (f *fakeIngester) Ingest(ctx context.Context, projectID, filePath, originalName string) (*timeline.Asset, error) {
	if f.fail {
		return nil, context.DeadlineExceeded
	}
	f.ingested = append(f.ingested, originalName)
	dur := 10.0
	return &timeline.Asset{
		ID: uuid.New().String(), Kind: timeline.AssetKindVideo, Name: originalName,
		ContentPath: "assets/" + projectID + "/" + originalName, Duration: &dur,
	}, nil
}

// fakeDecoder serves a solid white frame for any source.
type fakeDecoder struct{}

func (fakeDecoder) FrameAt(_ context.Context, _ string, _ float64, width, height int) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img, nil
}

type apiFixture struct {
	api      *API
	router   *gin.Engine
	projects *fakeProjects
	exports  *fakeExports
	queue    *fakePublisher
	progress *fakeProgress
	ingester *fakeIngester
	token    string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.SetJWTSecret("test-secret")

	projects := newFakeProjects()
	exports := newFakeExports()
	queue := &fakePublisher{}
	progress := newFakeProgress()
	ingester := &fakeIngester{}
	previews := preview.NewManager(
		&fakeDecoder{},
		func(asset *timeline.Asset) string { return asset.ContentPath },
		preview.Config{Width: 32, Height: 18, FrameRate: 30},
		nil,
	)
	t.Cleanup(previews.CloseAll)

	api := &API{
		projects: projects,
		sessions: session.NewManager(projects, session.Config{FrameRate: 30}, nil),
		assets:   ingester,
		exports:  exports,
		queue:    queue,
		progress: progress,
		uploads:  upload.NewManager(t.TempDir(), 4, nil),
		previews: previews,
	}

	token, err := middleware.GenerateToken("user-1", "user@example.com", time.Hour)
	require.NoError(t, err)

	return &apiFixture{
		api:      api,
		router:   setupRouter(api, nil),
		projects: projects,
		exports:  exports,
		queue:    queue,
		progress: progress,
		ingester: ingester,
		token:    token,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+f.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	f := newAPIFixture(t)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	f := newAPIFixture(t)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateAndGetProject(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/projects", gin.H{"name": "My Cut"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeBody(t, w)

	w = f.do(t, http.MethodGet, "/api/v1/projects/"+created["id"].(string), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProjectOwnershipEnforced(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("someone-else")

	w := f.do(t, http.MethodGet, "/api/v1/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetDocument(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("user-1")

	w := f.do(t, http.MethodGet, "/api/v1/projects/"+p.ID+"/document", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["revision"])
}

func TestPutDocumentRoundTrip(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("user-1")

	doc := timeline.NewEditorState().ToDocument()
	raw, err := timeline.MarshalDocument(doc)
	require.NoError(t, err)

	w := f.do(t, http.MethodPut, "/api/v1/projects/"+p.ID+"/document", gin.H{
		"document": json.RawMessage(raw),
		"revision": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decodeBody(t, w)["revision"])
}

func TestPutDocumentRevisionConflict(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("user-1")
	f.projects.revisions[p.ID] = 5

	raw, err := timeline.MarshalDocument(timeline.NewEditorState().ToDocument())
	require.NoError(t, err)

	w := f.do(t, http.MethodPut, "/api/v1/projects/"+p.ID+"/document", gin.H{
		"document": json.RawMessage(raw),
		"revision": 1,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRunCommandSavesDocument(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("user-1")

	w := f.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/commands", gin.H{"name": "toggle-snap"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(2), body["revision"])
	result := body["result"].(map[string]interface{})
	assert.Equal(t, true, result["applied"])
	assert.Equal(t, false, result["snap_enabled"])
}

func TestRunUnknownCommand(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("user-1")

	w := f.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/commands", gin.H{"name": "rewind-tape"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateExportQueuesJob(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("user-1")

	w := f.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/exports", gin.H{"frame_rate": 24})
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Len(t, f.queue.published, 1)
	req := f.queue.published[0]
	assert.Equal(t, p.ID, req.ProjectID)
	assert.Equal(t, 24, req.FrameRate)

	job := f.exports.jobs[req.JobID]
	require.NotNil(t, job)
	assert.Equal(t, models.ExportStatusQueued, job.Status)
}

func TestExportProgressPrefersCache(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("user-1")
	job := &models.ExportJob{ID: "j1", ProjectID: p.ID, Status: models.ExportStatusProcessing, Progress: 10}
	f.exports.jobs[job.ID] = job
	f.progress.entries[job.ID] = &cache.ExportProgress{PercentComplete: 42, StatusMessage: "rendering"}

	w := f.do(t, http.MethodGet, "/api/v1/exports/j1/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(42), decodeBody(t, w)["percent_complete"])
}

func TestExportProgressFallsBackToJob(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("user-1")
	job := &models.ExportJob{ID: "j1", ProjectID: p.ID, Status: models.ExportStatusProcessing, Progress: 10, StatusMessage: "rendering"}
	f.exports.jobs[job.ID] = job

	w := f.do(t, http.MethodGet, "/api/v1/exports/j1/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(10), decodeBody(t, w)["percent_complete"])
}

func TestCancelExport(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("user-1")
	f.exports.jobs["j1"] = &models.ExportJob{ID: "j1", ProjectID: p.ID, Status: models.ExportStatusProcessing}

	w := f.do(t, http.MethodPost, "/api/v1/exports/j1/cancel", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"j1"}, f.progress.cancels)
}

func TestCancelFinishedExport(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("user-1")
	f.exports.jobs["j1"] = &models.ExportJob{ID: "j1", ProjectID: p.ID, Status: models.ExportStatusCompleted}

	w := f.do(t, http.MethodPost, "/api/v1/exports/j1/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, f.progress.cancels)
}

func TestExportHiddenFromOtherUsers(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("someone-else")
	f.exports.jobs["j1"] = &models.ExportJob{ID: "j1", ProjectID: p.ID, Status: models.ExportStatusProcessing}

	w := f.do(t, http.MethodGet, "/api/v1/exports/j1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateWebhook(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/webhooks", gin.H{
		"url":    "https://example.com/hook",
		"secret": "s3cret",
		"events": gin.H{"export_completed": true},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, f.exports.webhooks, 1)
	assert.Equal(t, "user-1", f.exports.webhooks[0].OwnerID)
	assert.True(t, f.exports.webhooks[0].Events.ExportCompleted)
}

func TestIssueToken(t *testing.T) {
	f := newAPIFixture(t)
	w := httptest.NewRecorder()

	body, _ := json.Marshal(gin.H{"user_id": "user-2", "email": "u2@example.com"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decodeBody(t, w)["token"])
}

func (f *apiFixture) doRaw(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Authorization", "Bearer "+f.token)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestChunkedUploadFlow(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("user-1")

	w := f.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/uploads", gin.H{
		"filename":   "clip.mp4",
		"total_size": 10,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	sess := decodeBody(t, w)
	uploadID := sess["id"].(string)
	assert.Equal(t, float64(3), sess["total_parts"])

	for i, chunk := range []string{"abcd", "efgh", "ij"} {
		w = f.doRaw(t, http.MethodPut, "/api/v1/uploads/"+uploadID+"/parts/"+strconv.Itoa(i+1), chunk)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = f.do(t, http.MethodPost, "/api/v1/uploads/"+uploadID+"/complete", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	asset := decodeBody(t, w)
	assert.Equal(t, "clip.mp4", asset["name"])
	require.Equal(t, []string{"clip.mp4"}, f.ingester.ingested)

	sessSnap, err := f.api.sessions.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, sessSnap.Snapshot().Assets, 1)
}

func TestCompleteUploadMissingPart(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("user-1")

	w := f.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/uploads", gin.H{
		"filename":   "clip.mp4",
		"total_size": 10,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	uploadID := decodeBody(t, w)["id"].(string)

	w = f.doRaw(t, http.MethodPut, "/api/v1/uploads/"+uploadID+"/parts/1", "abcd")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/uploads/"+uploadID+"/complete", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.ingester.ingested)
}

func TestCompleteUploadIngestFailure(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("user-1")
	f.ingester.fail = true

	w := f.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/uploads", gin.H{
		"filename":   "bad.mp4",
		"total_size": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	uploadID := decodeBody(t, w)["id"].(string)

	w = f.doRaw(t, http.MethodPut, "/api/v1/uploads/"+uploadID+"/parts/1", "ab")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/uploads/"+uploadID+"/complete", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// The session directory is reclaimed either way.
	w = f.do(t, http.MethodDelete, "/api/v1/uploads/"+uploadID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAbortUpload(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("user-1")

	w := f.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/uploads", gin.H{
		"filename":   "clip.mp4",
		"total_size": 8,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	uploadID := decodeBody(t, w)["id"].(string)

	w = f.do(t, http.MethodDelete, "/api/v1/uploads/"+uploadID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.doRaw(t, http.MethodPut, "/api/v1/uploads/"+uploadID+"/parts/1", "abcd")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadHiddenFromOtherUsers(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("someone-else")

	w := f.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/uploads", gin.H{
		"filename":   "clip.mp4",
		"total_size": 8,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPreviewLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("user-1")

	w := f.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/preview", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(0), body["position"])
	assert.Equal(t, false, body["playing"])
	assert.Equal(t, float64(32), body["width"])

	w = f.do(t, http.MethodGet, "/api/v1/projects/"+p.ID+"/preview/position", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/preview/play", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["playing"])

	w = f.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/preview/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["playing"])

	w = f.do(t, http.MethodDelete, "/api/v1/projects/"+p.ID+"/preview", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/projects/"+p.ID+"/preview/position", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPreviewSeekClampsToTimeline(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("user-1")

	// An empty timeline has zero duration, so every seek lands at 0.
	w := f.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/preview", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/preview/seek", gin.H{"position": 42.0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decodeBody(t, w)["position"])
}

func TestPreviewFrameIsJPEG(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("user-1")

	w := f.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/preview", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/projects/"+p.ID+"/preview/frame?t=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Body.Bytes())
}

func TestPreviewRequiresSession(t *testing.T) {
	f := newAPIFixture(t)
	p := f.projects.seed("user-1")

	w := f.do(t, http.MethodPost, "/api/v1/projects/"+p.ID+"/preview/play", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
