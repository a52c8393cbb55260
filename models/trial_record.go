package models

import "time"

// TrialRecord repräsentiert eine abgeflachte Studien-Zeile aus der
// ClinicalTrials.gov v2 API. Primärschlüssel ist NCTID.
type TrialRecord struct {
	NCTID         string `json:"nct_id"`
	OrgStudyID    string `json:"org_study_id,omitempty"`
	BriefTitle    string `json:"brief_title"`
	OfficialTitle string `json:"official_title,omitempty"`

	OverallStatus      string     `json:"overall_status"`
	StudyFirstPostDate *time.Time `json:"study_first_post_date"`
	LastUpdatePostDate *time.Time `json:"last_update_post_date"`
	StartDate          *time.Time `json:"start_date"`
	CompletionDate     *time.Time `json:"completion_date"`

	BriefSummary string `json:"brief_summary,omitempty"`
	Conditions   string `json:"conditions"`
	Keywords     string `json:"keywords,omitempty"`

	StudyType         string `json:"study_type,omitempty"`
	Phase             string `json:"phase"`
	EnrollmentCount   *int   `json:"enrollment_count"`
	Allocation        string `json:"allocation,omitempty"`
	InterventionModel string `json:"intervention_model,omitempty"`
	PrimaryPurpose    string `json:"primary_purpose,omitempty"`
	Masking           string `json:"masking,omitempty"`

	InterventionTypes      string `json:"intervention_types,omitempty"`
	PrimaryOutcomeMeasures string `json:"primary_outcome_measures,omitempty"`

	Gender         string `json:"gender,omitempty"`
	MinAge         string `json:"min_age,omitempty"`
	MaxAge         string `json:"max_age,omitempty"`
	AcceptsHealthy bool   `json:"accepts_healthy"`

	LocationCountries string `json:"location_countries,omitempty"`
	LeadSponsor       string `json:"lead_sponsor,omitempty"`

	// Abgeleitete Spalten, gesetzt von der EnrichmentEngine.
	PhaseNumeric      float64    `json:"phase_numeric"`
	StudySizeCategory string     `json:"study_size_category,omitempty"`
	StudyDurationDays *int       `json:"study_duration_days,omitempty"`
	IsActive          bool       `json:"is_active"`
	IsCompleted       bool       `json:"is_completed"`
	ConditionsClean   string     `json:"conditions_clean,omitempty"`
	DataSource        string     `json:"data_source,omitempty"`
	ProcessedDate     *time.Time `json:"processed_date,omitempty"`
}
