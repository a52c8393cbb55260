package models

// DrugSummary ist das Gruppier-Ergebnis der DrugEvent-Zeilen: eine Zeile pro
// bereinigtem Medikamentennamen.
type DrugSummary struct {
	DrugName             string  `json:"drug_name"`
	AdverseEventCount    int     `json:"adverse_event_count"`
	AvgSeverityScore     float64 `json:"avg_severity_score"`
	DeathCount           int     `json:"death_count"`
	HospitalizationCount int     `json:"hospitalization_count"`
}

// TrialSummary ist das Gruppier-Ergebnis der TrialRecord-Zeilen: eine Zeile pro
// bereinigtem Condition-String.
type TrialSummary struct {
	Condition       string `json:"condition"`
	TrialCount      int    `json:"trial_count"`
	TotalEnrollment int    `json:"total_enrollment"`
	CompletedTrials int    `json:"completed_trials"`
}

// LinkedRecord ist das finale Artefakt der Anreicherung: Medikamenten-Kennzahlen
// plus die aufsummierten Studien-Kennzahlen aller passenden Conditions. Existieren
// nur Studiendaten, trägt die Zeile stattdessen die Condition.
type LinkedRecord struct {
	DrugName  string `json:"drug_name,omitempty"`
	Condition string `json:"condition,omitempty"`

	AdverseEventCount    int     `json:"adverse_event_count"`
	AvgSeverityScore     float64 `json:"avg_severity_score"`
	DeathCount           int     `json:"death_count"`
	HospitalizationCount int     `json:"hospitalization_count"`

	TrialCount      int `json:"trial_count"`
	TotalEnrollment int `json:"total_enrollment"`
	CompletedTrials int `json:"completed_trials"`
}
