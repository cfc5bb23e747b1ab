// Package storage persists analysis bundles on disk: per-analysis
// directories holding metadata, detection JSON, preview stills and output
// videos, plus the uploads area.
package storage

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/visionhub/odh/detection"
)

const (
	metaFile     = "meta.json"
	flatFile     = "detections.json"
	perFrameFile = "detections_per_frame.json"

	// PreviewFile and OutputVideoFile are the well-known artifact names
	// inside an analysis directory.
	PreviewFile     = "preview.jpg"
	OutputVideoFile = "output.mp4"
	ReportFile      = "report.pdf"
)

// AnalysisType distinguishes image from video bundles.
const (
	TypeImage = "image"
	TypeVideo = "video"
)

// Meta is the per-analysis metadata document.
type Meta struct {
	AnalysisID      string                     `json:"analysis_id"`
	Type            string                     `json:"type"`
	InputFile       string                     `json:"input_file"`
	PreviewFile     string                     `json:"preview_file"`
	OutputVideoFile string                     `json:"output_video_file,omitempty"`
	Model           string                     `json:"model"`
	ConfThreshold   float64                    `json:"conf_threshold"`
	DurationMS      int64                      `json:"duration_ms"`
	CreatedAt       int64                      `json:"created_at"`
	NumDetections   int                        `json:"num_detections"`
	Video           *detection.VideoStreamMeta `json:"video,omitempty"`
}

// Store roots the uploads and results directories.
type Store struct {
	UploadsDir string
	ResultsDir string
}

// New creates a store and its directories.
func New(uploadsDir, resultsDir string) (*Store, error) {
	for _, dir := range []string{uploadsDir, resultsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating %s", dir)
		}
	}
	return &Store{UploadsDir: uploadsDir, ResultsDir: resultsDir}, nil
}

// NewAnalysisID returns a fresh 32-char hex identifier.
func NewAnalysisID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// AnalysisDir returns (and creates) the bundle directory for an analysis.
func (s *Store) AnalysisDir(analysisID string) (string, error) {
	dir := filepath.Join(s.ResultsDir, analysisID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "creating analysis dir %s", dir)
	}
	return dir, nil
}

// SaveUpload stores an uploaded file under a collision-free name and
// returns its path.
func (s *Store) SaveUpload(filename string, r io.Reader) (string, error) {
	safe := NewAnalysisID() + "_" + filepath.Base(filename)
	path := filepath.Join(s.UploadsDir, safe)

	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "creating upload %s", path)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", errors.Wrap(err, "writing upload")
	}
	return path, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding json")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// SaveImageBundle writes meta and detections for an image analysis.
func (s *Store) SaveImageBundle(meta Meta, dets []detection.Detection) error {
	dir, err := s.AnalysisDir(meta.AnalysisID)
	if err != nil {
		return err
	}
	if dets == nil {
		dets = []detection.Detection{}
	}
	if err := writeJSON(filepath.Join(dir, flatFile), dets); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, metaFile), meta)
}

// SaveVideoBundle writes meta, flattened detections and the per-frame
// records for a video analysis.
func (s *Store) SaveVideoBundle(meta Meta, res *detection.PipelineResult) error {
	dir, err := s.AnalysisDir(meta.AnalysisID)
	if err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, flatFile), res.Flat); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, perFrameFile), res.PerFrame); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, metaFile), meta)
}

// LoadMeta reads an analysis' metadata. A missing bundle surfaces as
// os.ErrNotExist.
func (s *Store) LoadMeta(analysisID string) (Meta, error) {
	var meta Meta
	err := readJSON(filepath.Join(s.ResultsDir, analysisID, metaFile), &meta)
	return meta, err
}

// LoadDetections reads the flattened detection list.
func (s *Store) LoadDetections(analysisID string) ([]detection.Detection, error) {
	var dets []detection.Detection
	err := readJSON(filepath.Join(s.ResultsDir, analysisID, flatFile), &dets)
	return dets, err
}

// LoadPerFrame reads the per-frame records of a video analysis.
func (s *Store) LoadPerFrame(analysisID string) ([]detection.FrameRecord, error) {
	var frames []detection.FrameRecord
	err := readJSON(filepath.Join(s.ResultsDir, analysisID, perFrameFile), &frames)
	return frames, err
}

// ArtifactPath returns the location of a named artifact inside an analysis
// bundle without checking existence.
func (s *Store) ArtifactPath(analysisID, name string) string {
	return filepath.Join(s.ResultsDir, analysisID, name)
}
