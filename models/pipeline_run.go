package models

import "time"

// Status-Werte für PipelineRun.
const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// PipelineRun protokolliert einen Pipeline-Lauf pro logischem Tag in der Datenbank.
type PipelineRun struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// RunDate ist der logische Tag des Laufs im Format YYYY-MM-DD.
	RunDate string `json:"run_date" gorm:"index"`
	Status  string `json:"status" gorm:"index"`

	FDARecords      int `json:"fda_records"`
	TrialRecords    int `json:"trial_records"`
	EnrichedRecords int `json:"enriched_records"`

	ValidationPassed bool   `json:"validation_passed"`
	FailureReasons   string `json:"failure_reasons,omitempty" gorm:"type:text"`

	DurationMS int64 `json:"duration_ms"`
}
