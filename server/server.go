// Package server exposes the analysis service over HTTP: JSON API, CSV and
// PDF exports, artifact downloads and the HTML frontend.
package server

import (
	"embed"
	"html/template"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/visionhub/odh/config"
	"github.com/visionhub/odh/detect"
	"github.com/visionhub/odh/storage"
	"github.com/visionhub/odh/video"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server wires the HTTP surface to the pipeline, store and database.
type Server struct {
	cfg      config.Config
	db       *gorm.DB
	store    *storage.Store
	detector detect.Detector
	pipeline *video.Pipeline
	router   *gin.Engine
	model    string
}

// New builds the router and its handlers.
func New(cfg config.Config, db *gorm.DB, store *storage.Store, detector detect.Detector) *Server {
	s := &Server{
		cfg:      cfg,
		db:       db,
		store:    store,
		detector: detector,
		pipeline: &video.Pipeline{
			Detector: detector,
			Transcoder: &video.Transcoder{
				FFmpegPath: cfg.Transcode.FFmpegPath,
				Timeout:    cfg.Transcode.Timeout,
			},
		},
		model: filepath.Base(cfg.Detector.ModelPath),
	}

	r := gin.Default()
	r.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))
	s.router = r
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	r := s.router

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/upload/image", s.uploadImageAPI)
		api.POST("/upload/video", s.uploadVideoAPI)

		api.GET("/analysis/:id", s.getAnalysis)
		api.GET("/analysis/:id/preview", s.getPreview)
		api.GET("/analysis/:id/video", s.getOutputVideo)
		api.GET("/analysis/:id/report.pdf", s.getReportPDF)
		api.GET("/analysis/:id/export.csv", s.exportCSV)

		api.GET("/analyses", s.listAnalyses)
		api.GET("/stats/classes", s.statsClasses)
		api.GET("/stats/analysis/:id/classes", s.statsAnalysisClasses)
		api.GET("/stats/timeseries", s.statsTimeseries)
	}

	r.GET("/", s.indexPage)
	r.POST("/upload", s.uploadImagePage)
	r.POST("/upload/video", s.uploadVideoPage)
	r.GET("/analysis/:id", s.analysisPage)
	r.GET("/history", s.historyPage)
	r.GET("/dashboard", s.dashboardPage)
}

// Router exposes the underlying engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Run serves until the listener fails.
func (s *Server) Run() error {
	return s.router.Run(s.cfg.ListenAddr)
}
