package server

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/visionhub/odh/database"
	"github.com/visionhub/odh/detection"
	"github.com/visionhub/odh/logger"
	"github.com/visionhub/odh/storage"
)

// uploadResponse is the JSON body returned by the upload endpoints.
type uploadResponse struct {
	AnalysisID     string `json:"analysis_id"`
	NumDetections  int    `json:"num_detections"`
	DurationMS     int64  `json:"duration_ms"`
	AnalysisURL    string `json:"analysis_url"`
	AnalysisPage   string `json:"analysis_page_url"`
	PreviewURL     string `json:"preview_url"`
	ReportURL      string `json:"report_pdf_url"`
	ExportCSVURL   string `json:"export_csv_url"`
	OutputVideoURL string `json:"output_video_url,omitempty"`
}

func (s *Server) uploadResponseFor(meta storage.Meta) uploadResponse {
	id := meta.AnalysisID
	resp := uploadResponse{
		AnalysisID:    id,
		NumDetections: meta.NumDetections,
		DurationMS:    meta.DurationMS,
		AnalysisURL:   "/api/analysis/" + id,
		AnalysisPage:  "/analysis/" + id,
		PreviewURL:    "/api/analysis/" + id + "/preview",
		ReportURL:     "/api/analysis/" + id + "/report.pdf",
		ExportCSVURL:  "/api/analysis/" + id + "/export.csv",
	}
	if meta.Type == storage.TypeVideo {
		resp.OutputVideoURL = "/api/analysis/" + id + "/video"
	}
	return resp
}

func (s *Server) uploadImageAPI(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}
	if herr := s.checkUploadSize(header); herr != nil {
		c.JSON(herr.status, gin.H{"error": herr.msg})
		return
	}
	conf, herr := s.parseConf(c)
	if herr != nil {
		c.JSON(herr.status, gin.H{"error": herr.msg})
		return
	}

	id, herr := s.analyzeImage(header, conf)
	if herr != nil {
		logger.Error("image upload failed: %s", herr.msg)
		c.JSON(herr.status, gin.H{"error": herr.msg})
		return
	}

	meta, err := s.store.LoadMeta(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.uploadResponseFor(meta))
}

func (s *Server) uploadVideoAPI(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}
	if herr := s.checkUploadSize(header); herr != nil {
		c.JSON(herr.status, gin.H{"error": herr.msg})
		return
	}
	params, herr := s.parseVideoParams(c)
	if herr != nil {
		c.JSON(herr.status, gin.H{"error": herr.msg})
		return
	}

	id, herr := s.analyzeVideo(header, params)
	if herr != nil {
		logger.Error("video upload failed: %s", herr.msg)
		c.JSON(herr.status, gin.H{"error": herr.msg})
		return
	}

	meta, err := s.store.LoadMeta(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.uploadResponseFor(meta))
}

// analysisDocument is the full JSON view of one analysis.
type analysisDocument struct {
	storage.Meta
	Detections []detection.Detection   `json:"detections"`
	PerFrame   []detection.FrameRecord `json:"per_frame,omitempty"`
}

func (s *Server) loadAnalysis(c *gin.Context) (storage.Meta, bool) {
	id := c.Param("id")
	meta, err := s.store.LoadMeta(id)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return storage.Meta{}, false
	}
	return meta, true
}

func (s *Server) getAnalysis(c *gin.Context) {
	meta, ok := s.loadAnalysis(c)
	if !ok {
		return
	}
	dets, err := s.store.LoadDetections(meta.AnalysisID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	doc := analysisDocument{Meta: meta, Detections: dets}
	if meta.Type == storage.TypeVideo {
		if frames, err := s.store.LoadPerFrame(meta.AnalysisID); err == nil {
			doc.PerFrame = frames
		}
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) serveArtifact(c *gin.Context, meta storage.Meta, name, contentType string) {
	path := s.store.ArtifactPath(meta.AnalysisID, name)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": name + " not available"})
		return
	}
	c.Header("Content-Type", contentType)
	c.File(path)
}

func (s *Server) getPreview(c *gin.Context) {
	meta, ok := s.loadAnalysis(c)
	if !ok {
		return
	}
	s.serveArtifact(c, meta, storage.PreviewFile, "image/jpeg")
}

func (s *Server) getOutputVideo(c *gin.Context) {
	meta, ok := s.loadAnalysis(c)
	if !ok {
		return
	}
	if meta.Type != storage.TypeVideo {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis has no output video"})
		return
	}
	s.serveArtifact(c, meta, storage.OutputVideoFile, "video/mp4")
}

// getReportPDF serves the stored report, regenerating it when the bundle
// predates report support or the file was removed.
func (s *Server) getReportPDF(c *gin.Context) {
	meta, ok := s.loadAnalysis(c)
	if !ok {
		return
	}
	path := s.store.ArtifactPath(meta.AnalysisID, storage.ReportFile)
	if _, err := os.Stat(path); err != nil {
		dets, derr := s.store.LoadDetections(meta.AnalysisID)
		if derr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": derr.Error()})
			return
		}
		var extra []string
		if meta.Video != nil {
			extra = videoReportLines(*meta.Video)
		}
		s.writeReport(meta, dets, extra)
	}
	s.serveArtifact(c, meta, storage.ReportFile, "application/pdf")
}

// exportCSV streams the analysis as CSV: metadata rows, a blank row, then
// one row per detection.
func (s *Server) exportCSV(c *gin.Context) {
	meta, ok := s.loadAnalysis(c)
	if !ok {
		return
	}
	dets, err := s.store.LoadDetections(meta.AnalysisID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s.csv", meta.AnalysisID))

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"analysis_id", meta.AnalysisID})
	_ = w.Write([]string{"model", meta.Model})
	_ = w.Write([]string{"conf_threshold", strconv.FormatFloat(meta.ConfThreshold, 'f', 2, 64)})
	_ = w.Write([]string{"duration_ms", strconv.FormatInt(meta.DurationMS, 10)})
	_ = w.Write([]string{})
	_ = w.Write([]string{"class_id", "class_name", "confidence", "x1", "y1", "x2", "y2"})
	for _, d := range dets {
		_ = w.Write([]string{
			strconv.Itoa(d.ClassID),
			d.ClassName,
			strconv.FormatFloat(d.Confidence, 'f', 4, 64),
			strconv.FormatFloat(d.X1, 'f', 1, 64),
			strconv.FormatFloat(d.Y1, 'f', 1, 64),
			strconv.FormatFloat(d.X2, 'f', 1, 64),
			strconv.FormatFloat(d.Y2, 'f', 1, 64),
		})
	}
	w.Flush()
}

func (s *Server) listAnalyses(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	items, err := database.ListAnalyses(s.db, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": items})
}

func (s *Server) statsClasses(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	counts, err := database.GlobalClassCounts(s.db, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": counts})
}

func (s *Server) statsAnalysisClasses(c *gin.Context) {
	a, err := database.GetAnalysisByID(s.db, c.Param("id"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	counts, err := database.ClassCountsForAnalysis(s.db, a.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis_id": a.AnalysisID, "classes": counts})
}

func (s *Server) statsTimeseries(c *gin.Context) {
	className := c.Query("class_name")
	if className == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "class_name is required"})
		return
	}
	points, err := database.TimeseriesForClass(s.db, className)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"class_name": className, "points": points})
}
