// Command odh runs the object-detection hub: an HTTP service that accepts
// image and video uploads, runs YOLO inference, and serves the results as
// JSON, CSV, PDF and annotated media.
package main

import (
	"flag"
	"os"

	"github.com/visionhub/odh/config"
	"github.com/visionhub/odh/database"
	"github.com/visionhub/odh/detect"
	"github.com/visionhub/odh/logger"
	"github.com/visionhub/odh/server"
	"github.com/visionhub/odh/storage"
)

func main() {
	configPath := flag.String("config", "odh.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("loading config: %v", err)
		os.Exit(1)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		logger.Error("opening database: %v", err)
		os.Exit(1)
	}

	store, err := storage.New(cfg.UploadsDir, cfg.ResultsDir)
	if err != nil {
		logger.Error("preparing storage: %v", err)
		os.Exit(1)
	}

	detector, err := detect.NewYOLODetector(detect.Config{
		ModelPath:      cfg.Detector.ModelPath,
		LibraryPath:    cfg.Detector.LibraryPath,
		IntraOpThreads: cfg.Detector.IntraOpThreads,
		InterOpThreads: cfg.Detector.InterOpThreads,
	})
	if err != nil {
		logger.Error("loading detector: %v", err)
		os.Exit(1)
	}
	defer detector.Close()

	srv := server.New(cfg, db, store, detector)
	logger.Info("listening on %s (model %s)", cfg.ListenAddr, cfg.Detector.ModelPath)
	if err := srv.Run(); err != nil {
		logger.Error("server stopped: %v", err)
		os.Exit(1)
	}
}
