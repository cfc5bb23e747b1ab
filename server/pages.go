package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/visionhub/odh/database"
	"github.com/visionhub/odh/logger"
	"github.com/visionhub/odh/storage"
)

func (s *Server) indexPage(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"DefaultConf": s.cfg.DefaultConf,
		"MaxUploadMB": s.cfg.MaxUploadMB,
	})
}

// uploadImagePage handles the browser form and redirects to the result page.
func (s *Server) uploadImagePage(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		s.errorPage(c, http.StatusBadRequest, "No file selected.")
		return
	}
	if herr := s.checkUploadSize(header); herr != nil {
		s.errorPage(c, herr.status, herr.msg)
		return
	}
	conf, herr := s.parseConf(c)
	if herr != nil {
		s.errorPage(c, herr.status, herr.msg)
		return
	}
	id, herr := s.analyzeImage(header, conf)
	if herr != nil {
		logger.Error("image upload failed: %s", herr.msg)
		s.errorPage(c, herr.status, herr.msg)
		return
	}
	c.Redirect(http.StatusSeeOther, "/analysis/"+id)
}

func (s *Server) uploadVideoPage(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		s.errorPage(c, http.StatusBadRequest, "No file selected.")
		return
	}
	if herr := s.checkUploadSize(header); herr != nil {
		s.errorPage(c, herr.status, herr.msg)
		return
	}
	params, herr := s.parseVideoParams(c)
	if herr != nil {
		s.errorPage(c, herr.status, herr.msg)
		return
	}
	id, herr := s.analyzeVideo(header, params)
	if herr != nil {
		logger.Error("video upload failed: %s", herr.msg)
		s.errorPage(c, herr.status, herr.msg)
		return
	}
	c.Redirect(http.StatusSeeOther, "/analysis/"+id)
}

func (s *Server) analysisPage(c *gin.Context) {
	id := c.Param("id")
	meta, err := s.store.LoadMeta(id)
	if err != nil {
		s.errorPage(c, http.StatusNotFound, "Analysis not found.")
		return
	}
	dets, err := s.store.LoadDetections(id)
	if err != nil {
		s.errorPage(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.HTML(http.StatusOK, "analysis.html", gin.H{
		"Meta":       meta,
		"Detections": dets,
		"IsVideo":    meta.Type == storage.TypeVideo,
	})
}

func (s *Server) historyPage(c *gin.Context) {
	items, err := database.ListAnalyses(s.db, 100, 0)
	if err != nil {
		s.errorPage(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.HTML(http.StatusOK, "history.html", gin.H{"Analyses": items})
}

func (s *Server) dashboardPage(c *gin.Context) {
	counts, err := database.GlobalClassCounts(s.db, 20)
	if err != nil && err != gorm.ErrRecordNotFound {
		s.errorPage(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.HTML(http.StatusOK, "dashboard.html", gin.H{"Classes": counts})
}

func (s *Server) errorPage(c *gin.Context, status int, msg string) {
	c.HTML(status, "error.html", gin.H{"Message": msg})
}
