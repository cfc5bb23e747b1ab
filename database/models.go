package database

import "time"

// File is one uploaded input file.
type File struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Filename    string    `gorm:"not null" json:"filename"`
	ContentType string    `gorm:"not null" json:"content_type"`
	StoredPath  string    `gorm:"not null" json:"stored_path"`
	UploadedAt  time.Time `gorm:"autoCreateTime;index" json:"uploaded_at"`

	Analyses []Analysis `gorm:"foreignKey:FileID;constraint:OnDelete:CASCADE" json:"analyses,omitempty"`
}

// Analysis is one detection run over an uploaded file.
type Analysis struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	AnalysisID string `gorm:"uniqueIndex;not null" json:"analysis_id"`

	FileID        uint    `gorm:"index;not null" json:"file_id"`
	ModelName     string  `gorm:"not null" json:"model_name"`
	ConfThreshold float64 `gorm:"not null" json:"conf_threshold"`
	DurationMS    int64   `gorm:"not null" json:"duration_ms"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	File       File           `gorm:"foreignKey:FileID" json:"file,omitempty"`
	Detections []DetectionRow `gorm:"foreignKey:AnalysisFK;constraint:OnDelete:CASCADE" json:"detections,omitempty"`
}

// DetectionRow is one detected object persisted relationally. Video
// analyses store their flattened detections here; frame indices live only
// in the JSON bundle.
type DetectionRow struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	AnalysisFK uint `gorm:"index;not null" json:"analysis_fk"`

	ClassID    int     `gorm:"not null" json:"class_id"`
	ClassName  string  `gorm:"index;not null" json:"class_name"`
	Confidence float64 `gorm:"not null" json:"confidence"`

	X1 int `gorm:"not null" json:"x1"`
	Y1 int `gorm:"not null" json:"y1"`
	X2 int `gorm:"not null" json:"x2"`
	Y2 int `gorm:"not null" json:"y2"`
}

// TableName keeps the historical table name for detection rows.
func (DetectionRow) TableName() string { return "detections" }
