package database

import (
	"time"

	"gorm.io/gorm"

	"github.com/visionhub/odh/detection"
)

// CreateFile inserts the uploaded-file row.
func CreateFile(db *gorm.DB, filename, contentType, storedPath string) (*File, error) {
	f := &File{Filename: filename, ContentType: contentType, StoredPath: storedPath}
	if err := db.Create(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

// CreateAnalysis inserts an analysis run for a stored file.
func CreateAnalysis(db *gorm.DB, analysisID string, fileID uint, modelName string, conf float64, durationMS int64) (*Analysis, error) {
	a := &Analysis{
		AnalysisID:    analysisID,
		FileID:        fileID,
		ModelName:     modelName,
		ConfThreshold: conf,
		DurationMS:    durationMS,
	}
	if err := db.Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// BulkInsertDetections persists one row per detection for an analysis.
// Box coordinates are truncated to whole pixels in the relational store;
// full precision stays in the JSON bundle.
func BulkInsertDetections(db *gorm.DB, analysisPK uint, dets []detection.Detection) error {
	if len(dets) == 0 {
		return nil
	}
	rows := make([]DetectionRow, 0, len(dets))
	for _, d := range dets {
		rows = append(rows, DetectionRow{
			AnalysisFK: analysisPK,
			ClassID:    d.ClassID,
			ClassName:  d.ClassName,
			Confidence: d.Confidence,
			X1:         int(d.X1),
			Y1:         int(d.Y1),
			X2:         int(d.X2),
			Y2:         int(d.Y2),
		})
	}
	return db.CreateInBatches(rows, 500).Error
}

// AnalysisListItem is one row of the analysis history listing.
type AnalysisListItem struct {
	AnalysisID    string    `json:"analysis_id"`
	Filename      string    `json:"filename"`
	CreatedAt     time.Time `json:"-"`
	CreatedAtUnix int64     `json:"created_at" gorm:"-"`
	ModelName     string    `json:"model"`
	ConfThreshold float64   `json:"conf_threshold"`
	NumDetections int64     `json:"num_detections"`
}

// ListAnalyses returns newest-first history rows with their detection
// counts.
func ListAnalyses(db *gorm.DB, limit, offset int) ([]AnalysisListItem, error) {
	var items []AnalysisListItem
	err := db.Model(&Analysis{}).
		Select("analyses.analysis_id, files.filename, analyses.created_at, "+
			"analyses.model_name, analyses.conf_threshold, "+
			"(SELECT COUNT(*) FROM detections WHERE detections.analysis_fk = analyses.id) AS num_detections").
		Joins("JOIN files ON files.id = analyses.file_id").
		Order("analyses.created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(&items).Error
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].CreatedAtUnix = items[i].CreatedAt.Unix()
	}
	return items, nil
}

// GetAnalysisByID looks up an analysis by its public identifier.
func GetAnalysisByID(db *gorm.DB, analysisID string) (*Analysis, error) {
	var a Analysis
	if err := db.Where("analysis_id = ?", analysisID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ClassCount pairs a class name with how often it was detected.
type ClassCount struct {
	ClassName string `json:"class_name"`
	Count     int64  `json:"count"`
}

// ClassCountsForAnalysis aggregates detections of one analysis by class,
// most frequent first.
func ClassCountsForAnalysis(db *gorm.DB, analysisPK uint) ([]ClassCount, error) {
	var counts []ClassCount
	err := db.Model(&DetectionRow{}).
		Select("class_name, COUNT(*) AS count").
		Where("analysis_fk = ?", analysisPK).
		Group("class_name").
		Order("count DESC, class_name ASC").
		Scan(&counts).Error
	return counts, err
}

// GlobalClassCounts aggregates detections across all analyses.
func GlobalClassCounts(db *gorm.DB, limit int) ([]ClassCount, error) {
	var counts []ClassCount
	err := db.Model(&DetectionRow{}).
		Select("class_name, COUNT(*) AS count").
		Group("class_name").
		Order("count DESC").
		Limit(limit).
		Scan(&counts).Error
	return counts, err
}

// TimePoint is one day of detection counts for a class.
type TimePoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// TimeseriesForClass counts detections of one class per analysis day.
// DATE() works on both sqlite and postgres.
func TimeseriesForClass(db *gorm.DB, className string) ([]TimePoint, error) {
	var points []TimePoint
	err := db.Model(&DetectionRow{}).
		Select("DATE(analyses.created_at) AS date, COUNT(*) AS count").
		Joins("JOIN analyses ON analyses.id = detections.analysis_fk").
		Where("detections.class_name = ?", className).
		Group("DATE(analyses.created_at)").
		Order("date ASC").
		Scan(&points).Error
	return points, err
}
