package models

import "time"

// Quellen-Tags, die jede Zeile im zusammengeführten Datensatz kennzeichnen.
// Die Werte sind Teil des persistierten Artefakt-Formats und dürfen sich nicht ändern.
const (
	SourceFDA            = "FDA_OpenFDA"
	SourceClinicalTrials = "ClinicalTrials_gov"
)

// DrugEvent repräsentiert eine abgeflachte Zeile aus der openFDA Adverse-Event-API.
// Primärschlüssel ist SafetyReportID.
type DrugEvent struct {
	SafetyReportID             string     `json:"safetyreportid"`
	ReceiveDate                *time.Time `json:"receivedate"`
	Serious                    int        `json:"serious"`
	SeriousnessDeath           int        `json:"seriousnessdeath"`
	SeriousnessHospitalization int        `json:"seriousnesshospitalization"`
	DrugName                   string     `json:"drug_name"`
	DrugIndication             string     `json:"drug_indication"`
	Reaction                   string     `json:"reaction"`
	PatientAge                 *float64   `json:"patient_age"`
	PatientAgeUnit             string     `json:"patient_age_unit,omitempty"`
	PatientSex                 string     `json:"patient_sex,omitempty"`

	// Abgeleitete Spalten, gesetzt von der EnrichmentEngine.
	DrugNameClean string     `json:"drug_name_clean,omitempty"`
	SeverityScore float64    `json:"severity_score"`
	AgeGroup      string     `json:"age_group,omitempty"`
	IsComplete    bool       `json:"is_complete"`
	DataSource    string     `json:"data_source,omitempty"`
	ProcessedDate *time.Time `json:"processed_date,omitempty"`
}
