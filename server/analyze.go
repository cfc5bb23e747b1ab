package server

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gocv.io/x/gocv"

	"github.com/visionhub/odh/annotate"
	"github.com/visionhub/odh/database"
	"github.com/visionhub/odh/detection"
	"github.com/visionhub/odh/logger"
	"github.com/visionhub/odh/report"
	"github.com/visionhub/odh/storage"
	"github.com/visionhub/odh/video"
)

const (
	defaultFrameStep = 5
	maxFrameStep     = 60
	maxMaxFrames     = 20000
)

// httpError carries the status code an analysis failure maps to.
type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string { return e.msg }

func badRequest(format string, args ...interface{}) *httpError {
	return &httpError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func internal(err error) *httpError {
	return &httpError{status: http.StatusInternalServerError, msg: err.Error()}
}

// videoParams are the validated per-request video options.
type videoParams struct {
	conf      float64
	frameStep int
	maxFrames int
}

// formOrQuery reads a request parameter from the form body, falling back
// to the query string. API clients pass these as query parameters; the
// HTML forms submit them in the body.
func formOrQuery(c *gin.Context, key string) string {
	if v := c.PostForm(key); v != "" {
		return v
	}
	return c.Query(key)
}

func (s *Server) parseConf(c *gin.Context) (float64, *httpError) {
	raw := formOrQuery(c, "conf")
	if raw == "" {
		return s.cfg.DefaultConf, nil
	}
	conf, err := strconv.ParseFloat(raw, 64)
	if err != nil || conf < 0 || conf > 1 {
		return 0, badRequest("conf must be a number in [0,1], got %q", raw)
	}
	return conf, nil
}

func (s *Server) parseVideoParams(c *gin.Context) (videoParams, *httpError) {
	p := videoParams{frameStep: defaultFrameStep}

	conf, herr := s.parseConf(c)
	if herr != nil {
		return p, herr
	}
	p.conf = conf

	if raw := formOrQuery(c, "frame_step"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxFrameStep {
			return p, badRequest("frame_step must be an integer in [1,%d], got %q", maxFrameStep, raw)
		}
		p.frameStep = n
	}
	if raw := formOrQuery(c, "max_frames"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxMaxFrames {
			return p, badRequest("max_frames must be an integer in [0,%d], got %q", maxMaxFrames, raw)
		}
		p.maxFrames = n
	}
	return p, nil
}

func (s *Server) checkUploadSize(header *multipart.FileHeader) *httpError {
	limit := int64(s.cfg.MaxUploadMB) << 20
	if header.Size > limit {
		return &httpError{
			status: http.StatusRequestEntityTooLarge,
			msg:    fmt.Sprintf("upload exceeds %d MB limit", s.cfg.MaxUploadMB),
		}
	}
	return nil
}

func (s *Server) saveUpload(header *multipart.FileHeader) (string, *httpError) {
	f, err := header.Open()
	if err != nil {
		return "", badRequest("reading upload: %v", err)
	}
	defer f.Close()

	path, err := s.store.SaveUpload(header.Filename, f)
	if err != nil {
		return "", internal(err)
	}
	return path, nil
}

// analyzeImage runs the full image flow: decode, detect, annotate, persist,
// index, report. Returns the analysis id.
func (s *Server) analyzeImage(header *multipart.FileHeader, conf float64) (string, *httpError) {
	inputPath, herr := s.saveUpload(header)
	if herr != nil {
		return "", herr
	}

	img := gocv.IMRead(inputPath, gocv.IMReadColor)
	if img.Empty() {
		return "", badRequest("file %q is not a decodable image", header.Filename)
	}
	defer img.Close()

	start := time.Now()
	dets, err := s.detector.Predict(img, float32(conf))
	if err != nil {
		return "", internal(err)
	}
	durationMS := time.Since(start).Milliseconds()

	analysisID := storage.NewAnalysisID()
	if _, err := s.store.AnalysisDir(analysisID); err != nil {
		return "", internal(err)
	}

	annotated := annotate.Draw(img, dets)
	previewPath := s.store.ArtifactPath(analysisID, storage.PreviewFile)
	ok := gocv.IMWrite(previewPath, annotated)
	annotated.Close()
	if !ok {
		return "", internal(fmt.Errorf("writing preview %s", previewPath))
	}

	meta := storage.Meta{
		AnalysisID:    analysisID,
		Type:          storage.TypeImage,
		InputFile:     inputPath,
		PreviewFile:   storage.PreviewFile,
		Model:         s.model,
		ConfThreshold: conf,
		DurationMS:    durationMS,
		CreatedAt:     time.Now().Unix(),
		NumDetections: len(dets),
	}
	if err := s.store.SaveImageBundle(meta, dets); err != nil {
		return "", internal(err)
	}
	s.indexAnalysis(meta, header, dets)
	s.writeReport(meta, dets, nil)
	return analysisID, nil
}

// analyzeVideo runs the full video flow around the pipeline.
func (s *Server) analyzeVideo(header *multipart.FileHeader, p videoParams) (string, *httpError) {
	inputPath, herr := s.saveUpload(header)
	if herr != nil {
		return "", herr
	}

	analysisID := storage.NewAnalysisID()
	if _, err := s.store.AnalysisDir(analysisID); err != nil {
		return "", internal(err)
	}
	outputPath := s.store.ArtifactPath(analysisID, storage.OutputVideoFile)

	start := time.Now()
	res, err := s.pipeline.Process(inputPath, outputPath, video.Options{
		Conf:      float32(p.conf),
		FrameStep: p.frameStep,
		MaxFrames: p.maxFrames,
	})
	if err != nil {
		if _, ok := err.(*video.OpenError); ok {
			return "", badRequest("file %q is not a decodable video", header.Filename)
		}
		return "", internal(err)
	}
	durationMS := time.Since(start).Milliseconds()

	previewPath := s.store.ArtifactPath(analysisID, storage.PreviewFile)
	if err := video.CaptureFrame(outputPath, previewPath); err != nil {
		logger.Warn("capturing preview for %s: %v", analysisID, err)
	}

	meta := storage.Meta{
		AnalysisID:      analysisID,
		Type:            storage.TypeVideo,
		InputFile:       inputPath,
		PreviewFile:     storage.PreviewFile,
		OutputVideoFile: storage.OutputVideoFile,
		Model:           s.model,
		ConfThreshold:   p.conf,
		DurationMS:      durationMS,
		CreatedAt:       time.Now().Unix(),
		NumDetections:   len(res.Flat),
		Video:           &res.Meta,
	}
	if err := s.store.SaveVideoBundle(meta, res); err != nil {
		return "", internal(err)
	}
	s.indexAnalysis(meta, header, res.Flat)
	s.writeReport(meta, res.Flat, videoReportLines(res.Meta))
	return analysisID, nil
}

// indexAnalysis mirrors the bundle into the relational store. Database
// failures are logged and absorbed; the JSON bundle remains authoritative.
func (s *Server) indexAnalysis(meta storage.Meta, header *multipart.FileHeader, dets []detection.Detection) {
	file, err := database.CreateFile(s.db, header.Filename, header.Header.Get("Content-Type"), meta.InputFile)
	if err != nil {
		logger.Error("indexing file for %s: %v", meta.AnalysisID, err)
		return
	}
	a, err := database.CreateAnalysis(s.db, meta.AnalysisID, file.ID, meta.Model, meta.ConfThreshold, meta.DurationMS)
	if err != nil {
		logger.Error("indexing analysis %s: %v", meta.AnalysisID, err)
		return
	}
	if err := database.BulkInsertDetections(s.db, a.ID, dets); err != nil {
		logger.Error("indexing detections for %s: %v", meta.AnalysisID, err)
	}
}

func (s *Server) writeReport(meta storage.Meta, dets []detection.Detection, extraLines []string) {
	out := s.store.ArtifactPath(meta.AnalysisID, storage.ReportFile)
	preview := s.store.ArtifactPath(meta.AnalysisID, storage.PreviewFile)
	if err := report.Generate(out, meta, dets, preview, extraLines); err != nil {
		logger.Error("generating report for %s: %v", meta.AnalysisID, err)
	}
}

func videoReportLines(m detection.VideoStreamMeta) []string {
	return []string{
		fmt.Sprintf("FPS: %.1f | frame_step: %d | sampled_frames: %d", m.FPS, m.FrameStep, m.SampledFrames),
		fmt.Sprintf("Resolution: %dx%d | frames_read: %d", m.Width, m.Height, m.FramesRead),
	}
}
