package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/visionhub/odh/config"
	"github.com/visionhub/odh/database"
	"github.com/visionhub/odh/detection"
	"github.com/visionhub/odh/storage"
)

type stubDetector struct {
	dets     []detection.Detection
	lastConf float32
}

func (d *stubDetector) Predict(img gocv.Mat, conf float32) ([]detection.Detection, error) {
	d.lastConf = conf
	return d.dets, nil
}

func (d *stubDetector) Close() error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.UploadsDir = filepath.Join(dir, "uploads")
	cfg.ResultsDir = filepath.Join(dir, "results")
	cfg.Database = database.Config{Type: "sqlite", DSN: filepath.Join(dir, "odh.db")}

	db, err := database.Open(cfg.Database)
	require.NoError(t, err)

	store, err := storage.New(cfg.UploadsDir, cfg.ResultsDir)
	require.NoError(t, err)

	return New(cfg, db, store, &stubDetector{})
}

func seedImageBundle(t *testing.T, s *Server) storage.Meta {
	t.Helper()
	meta := storage.Meta{
		AnalysisID:    storage.NewAnalysisID(),
		Type:          storage.TypeImage,
		Model:         "yolov8n.onnx",
		ConfThreshold: 0.25,
		DurationMS:    42,
		NumDetections: 2,
	}
	dets := []detection.Detection{
		{ClassID: 0, ClassName: "person", Confidence: 0.91, X1: 10, Y1: 20, X2: 110, Y2: 220},
		{ClassID: 2, ClassName: "car", Confidence: 0.66, X1: 300, Y1: 40, X2: 500, Y2: 180},
	}
	require.NoError(t, s.store.SaveImageBundle(meta, dets))
	return meta
}

func doRequest(s *Server, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, body)
		req.Header.Set("Content-Type", contentType)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGetAnalysisNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/api/analysis/deadbeef", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAnalysis(t *testing.T) {
	s := newTestServer(t)
	meta := seedImageBundle(t, s)

	rec := doRequest(s, http.MethodGet, "/api/analysis/"+meta.AnalysisID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc analysisDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Equal(t, meta.AnalysisID, doc.AnalysisID)
	require.Len(t, doc.Detections, 2)
	require.Equal(t, "person", doc.Detections[0].ClassName)
	require.Empty(t, doc.PerFrame)
}

func TestExportCSV(t *testing.T) {
	s := newTestServer(t)
	meta := seedImageBundle(t, s)

	rec := doRequest(s, http.MethodGet, "/api/analysis/"+meta.AnalysisID+"/export.csv", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Equal(t, "analysis_id,"+meta.AnalysisID, strings.TrimSpace(lines[0]))
	require.Equal(t, "model,yolov8n.onnx", strings.TrimSpace(lines[1]))
	require.Equal(t, "conf_threshold,0.25", strings.TrimSpace(lines[2]))
	require.Equal(t, "duration_ms,42", strings.TrimSpace(lines[3]))
	require.Contains(t, lines, "class_id,class_name,confidence,x1,y1,x2,y2")
	require.Contains(t, rec.Body.String(), "0,person,0.9100,10.0,20.0,110.0,220.0")
	require.Contains(t, rec.Body.String(), "2,car,0.6600,300.0,40.0,500.0,180.0")
}

func TestReportRegeneratedOnDemand(t *testing.T) {
	s := newTestServer(t)
	meta := seedImageBundle(t, s)

	rec := doRequest(s, http.MethodGet, "/api/analysis/"+meta.AnalysisID+"/report.pdf", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func imageUploadBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestUploadImageHonorsQueryConf(t *testing.T) {
	s := newTestServer(t)
	det := s.detector.(*stubDetector)
	det.dets = []detection.Detection{
		{ClassID: 0, ClassName: "person", Confidence: 0.95, X1: 1, Y1: 1, X2: 10, Y2: 10},
	}

	body, contentType := imageUploadBody(t, nil)
	rec := doRequest(s, http.MethodPost, "/api/upload/image?conf=0.9", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code)
	require.InDelta(t, 0.9, float64(det.lastConf), 1e-6)

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	meta, err := s.store.LoadMeta(resp.AnalysisID)
	require.NoError(t, err)
	require.Equal(t, 0.9, meta.ConfThreshold)
}

func TestUploadImageFormConfWinsOverQuery(t *testing.T) {
	s := newTestServer(t)
	det := s.detector.(*stubDetector)

	body, contentType := imageUploadBody(t, map[string]string{"conf": "0.6"})
	rec := doRequest(s, http.MethodPost, "/api/upload/image?conf=0.9", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code)
	require.InDelta(t, 0.6, float64(det.lastConf), 1e-6)
}

func TestUploadImageRejectsBadConf(t *testing.T) {
	s := newTestServer(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "photo.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("not really a jpeg"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("conf", "1.5"))
	require.NoError(t, mw.Close())

	rec := doRequest(s, http.MethodPost, "/api/upload/image", body, mw.FormDataContentType())
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "conf")
}

func TestUploadImageMissingFile(t *testing.T) {
	s := newTestServer(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.Close())

	rec := doRequest(s, http.MethodPost, "/api/upload/image", body, mw.FormDataContentType())
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadVideoRejectsBadFrameStep(t *testing.T) {
	s := newTestServer(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "clip.mp4")
	require.NoError(t, err)
	_, err = part.Write([]byte("not a video"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("frame_step", "0"))
	require.NoError(t, mw.Close())

	rec := doRequest(s, http.MethodPost, "/api/upload/video", body, mw.FormDataContentType())
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "frame_step")
}

func TestUploadVideoRejectsBadQueryFrameStep(t *testing.T) {
	s := newTestServer(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "clip.mp4")
	require.NoError(t, err)
	_, err = part.Write([]byte("not a video"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := doRequest(s, http.MethodPost, "/api/upload/video?frame_step=0", body, mw.FormDataContentType())
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "frame_step")
}

func TestTimeseriesRequiresClassName(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/api/stats/timeseries", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAnalyses(t *testing.T) {
	s := newTestServer(t)

	file, err := database.CreateFile(s.db, "photo.jpg", "image/jpeg", "/tmp/photo.jpg")
	require.NoError(t, err)
	a, err := database.CreateAnalysis(s.db, "abc123", file.ID, "yolov8n.onnx", 0.25, 10)
	require.NoError(t, err)
	require.NoError(t, database.BulkInsertDetections(s.db, a.ID, []detection.Detection{
		{ClassID: 0, ClassName: "person", Confidence: 0.9},
	}))

	rec := doRequest(s, http.MethodGet, "/api/analyses", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Analyses []database.AnalysisListItem `json:"analyses"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Analyses, 1)
	require.Equal(t, "abc123", resp.Analyses[0].AnalysisID)
	require.Equal(t, int64(1), resp.Analyses[0].NumDetections)

	// Out-of-range limits fall back to the default instead of erroring.
	rec = doRequest(s, http.MethodGet, "/api/analyses?limit=999", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "abc123")
}

func TestStatsEndpoints(t *testing.T) {
	s := newTestServer(t)

	file, err := database.CreateFile(s.db, "clip.mp4", "video/mp4", "/tmp/clip.mp4")
	require.NoError(t, err)
	a, err := database.CreateAnalysis(s.db, "vid001", file.ID, "yolov8n.onnx", 0.3, 900)
	require.NoError(t, err)
	require.NoError(t, database.BulkInsertDetections(s.db, a.ID, []detection.Detection{
		{ClassName: "car", Confidence: 0.8},
		{ClassName: "car", Confidence: 0.7},
		{ClassName: "person", Confidence: 0.9},
	}))

	rec := doRequest(s, http.MethodGet, "/api/stats/classes", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"car"`)

	rec = doRequest(s, http.MethodGet, "/api/stats/analysis/vid001/classes", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Classes []database.ClassCount `json:"classes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "car", resp.Classes[0].ClassName)
	require.Equal(t, int64(2), resp.Classes[0].Count)

	rec = doRequest(s, http.MethodGet, "/api/stats/analysis/nosuch/classes", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/stats/timeseries?class_name=car", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"points"`)
}

func TestIndexPage(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Object Detection Hub")
}

func TestAnalysisPageNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/analysis/deadbeef", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
