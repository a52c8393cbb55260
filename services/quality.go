package services

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"drug-watch/models"
)

const (
	// maximal tolerierter Null-Anteil pro kritischer Spalte.
	maxNullRate = 0.10
	// Untergrenzen für Gesamt- und Quell-Zeilenzahl.
	minTotalRecords  = 10
	minSourceRecords = 5
	// Anzahl der Prüfungen; taucht im Report auf.
	checkCount = 6
)

// QualityValidator fährt alle Prüfungen über einen transformierten Datensatz
// und sammelt jede Verletzung als eigenständige Meldung. Die Prüfungen laufen
// immer vollständig durch; ein früher Fehlschlag bricht keine spätere Prüfung ab.
type QualityValidator struct {
	Logger *zap.Logger
}

func NewQualityValidator(logger *zap.Logger) *QualityValidator {
	return &QualityValidator{Logger: logger}
}

// Run führt die sechs Prüfungen in fester Reihenfolge aus: Vollständigkeit,
// Typkonformität, Wertebereiche, Duplikate, Mindestmengen, Datumskonsistenz.
func (v *QualityValidator) Run(ds *models.Dataset) *models.ValidationReport {
	report := &models.ValidationReport{CheckCount: checkCount}
	if ds != nil {
		report.RecordCount = ds.RecordCount()
	}

	if report.RecordCount == 0 {
		report.Failures = append(report.Failures, "No data to validate")
		v.Logger.Warn("Qualitätsprüfung ohne Daten aufgerufen")
		return report
	}

	report.Failures = append(report.Failures, v.checkCompleteness(ds)...)
	report.Failures = append(report.Failures, v.checkTypes(ds)...)
	report.Failures = append(report.Failures, v.checkRanges(ds)...)
	report.Failures = append(report.Failures, v.checkDuplicates(ds)...)
	report.Failures = append(report.Failures, v.checkRecordCounts(ds)...)
	report.Failures = append(report.Failures, v.checkDates(ds)...)

	report.Passed = len(report.Failures) == 0
	if report.Passed {
		v.Logger.Info("Qualitätsprüfung bestanden", zap.Int("records", report.RecordCount))
	} else {
		v.Logger.Warn("Qualitätsprüfung fehlgeschlagen",
			zap.Int("records", report.RecordCount),
			zap.Strings("failures", report.Failures))
	}
	return report
}

// checkCompleteness misst den Null-Anteil der kritischen Spalten pro Quelle.
func (v *QualityValidator) checkCompleteness(ds *models.Dataset) []string {
	var failures []string

	if n := len(ds.DrugEvents); n > 0 {
		missing := map[string]int{}
		for _, ev := range ds.DrugEvents {
			if ev.SafetyReportID == "" {
				missing["safetyreportid"]++
			}
			if ev.DrugName == "" {
				missing["drug_name"]++
			}
			if ev.ReceiveDate == nil {
				missing["receivedate"]++
			}
		}
		for _, col := range []string{"safetyreportid", "drug_name", "receivedate"} {
			if rate := float64(missing[col]) / float64(n); rate > maxNullRate {
				failures = append(failures,
					fmt.Sprintf("FDA column %s has %.1f%% missing values", col, rate*100))
			}
		}
	}

	if n := len(ds.Trials); n > 0 {
		missing := map[string]int{}
		for _, tr := range ds.Trials {
			if tr.NCTID == "" {
				missing["nct_id"]++
			}
			if tr.BriefTitle == "" {
				missing["brief_title"]++
			}
			if tr.OverallStatus == "" {
				missing["overall_status"]++
			}
		}
		for _, col := range []string{"nct_id", "brief_title", "overall_status"} {
			if rate := float64(missing[col]) / float64(n); rate > maxNullRate {
				failures = append(failures,
					fmt.Sprintf("ClinicalTrials column %s has %.1f%% missing values", col, rate*100))
			}
		}
	}

	return failures
}

// checkTypes findet nicht-endliche Werte in den berechneten numerischen Spalten
// und ungeparste Datumswerte (gesetzter Zeiger auf den Nullzeitpunkt).
func (v *QualityValidator) checkTypes(ds *models.Dataset) []string {
	var failures []string

	invalidSeverity := 0
	invalidReceive := 0
	for _, ev := range ds.DrugEvents {
		if math.IsNaN(ev.SeverityScore) || math.IsInf(ev.SeverityScore, 0) {
			invalidSeverity++
		}
		if ev.ReceiveDate != nil && ev.ReceiveDate.IsZero() {
			invalidReceive++
		}
	}
	if invalidSeverity > 0 {
		failures = append(failures,
			fmt.Sprintf("Found %d records with invalid severity_score", invalidSeverity))
	}
	if invalidReceive > 0 {
		failures = append(failures,
			fmt.Sprintf("Found %d records with invalid receivedate", invalidReceive))
	}

	invalidPhase := 0
	invalidDates := 0
	for _, tr := range ds.Trials {
		if math.IsNaN(tr.PhaseNumeric) || math.IsInf(tr.PhaseNumeric, 0) {
			invalidPhase++
		}
		if (tr.StartDate != nil && tr.StartDate.IsZero()) ||
			(tr.CompletionDate != nil && tr.CompletionDate.IsZero()) {
			invalidDates++
		}
	}
	if invalidPhase > 0 {
		failures = append(failures,
			fmt.Sprintf("Found %d records with invalid phase_numeric", invalidPhase))
	}
	if invalidDates > 0 {
		failures = append(failures,
			fmt.Sprintf("Found %d records with invalid trial dates", invalidDates))
	}

	return failures
}

// checkRanges prüft die fachlichen Wertebereiche der numerischen Spalten.
func (v *QualityValidator) checkRanges(ds *models.Dataset) []string {
	var failures []string

	outOfRangeSeverity := 0
	outOfRangeAge := 0
	for _, ev := range ds.DrugEvents {
		if ev.SeverityScore < 0 || ev.SeverityScore > 100 {
			outOfRangeSeverity++
		}
		if ev.PatientAge != nil && (*ev.PatientAge < 0 || *ev.PatientAge > 120) {
			outOfRangeAge++
		}
	}
	if outOfRangeSeverity > 0 {
		failures = append(failures,
			fmt.Sprintf("Found %d records with severity_score outside [0, 100]", outOfRangeSeverity))
	}
	if outOfRangeAge > 0 {
		failures = append(failures,
			fmt.Sprintf("Found %d records with patient_age outside [0, 120]", outOfRangeAge))
	}

	negativeEnrollment := 0
	for _, tr := range ds.Trials {
		if tr.EnrollmentCount != nil && *tr.EnrollmentCount < 0 {
			negativeEnrollment++
		}
	}
	if negativeEnrollment > 0 {
		failures = append(failures,
			fmt.Sprintf("Found %d records with negative enrollment_count", negativeEnrollment))
	}

	return failures
}

// checkDuplicates zählt Zeilen, deren Primärschlüssel mehrfach vorkommt. Gezählt
// werden alle beteiligten Zeilen, nicht die Schlüssel.
func (v *QualityValidator) checkDuplicates(ds *models.Dataset) []string {
	var failures []string

	if n := duplicateRows(ds.DrugEvents, func(ev models.DrugEvent) string { return ev.SafetyReportID }); n > 0 {
		failures = append(failures, fmt.Sprintf("Found %d duplicate safetyreportid values", n))
	}
	if n := duplicateRows(ds.Trials, func(tr models.TrialRecord) string { return tr.NCTID }); n > 0 {
		failures = append(failures, fmt.Sprintf("Found %d duplicate nct_id values", n))
	}

	return failures
}

func duplicateRows[T any](rows []T, key func(T) string) int {
	counts := map[string]int{}
	for _, row := range rows {
		counts[key(row)]++
	}
	dupes := 0
	for _, c := range counts {
		if c > 1 {
			dupes += c
		}
	}
	return dupes
}

// checkRecordCounts prüft die Gesamtmenge und jede gelieferte Quelle gegen ihre
// Untergrenze. Eine Quelle ohne Zeilen wird hier nicht gemeldet; das fängt die
// Pipeline bereits nach der Extraktion ab.
func (v *QualityValidator) checkRecordCounts(ds *models.Dataset) []string {
	var failures []string

	if total := ds.RecordCount(); total < minTotalRecords {
		failures = append(failures,
			fmt.Sprintf("Record count (%d) is below minimum threshold (%d)", total, minTotalRecords))
	}
	if n := len(ds.DrugEvents); n > 0 && n < minSourceRecords {
		failures = append(failures,
			fmt.Sprintf("Data source %s has only %d records", models.SourceFDA, n))
	}
	if n := len(ds.Trials); n > 0 && n < minSourceRecords {
		failures = append(failures,
			fmt.Sprintf("Data source %s has only %d records", models.SourceClinicalTrials, n))
	}

	return failures
}

// checkDates prüft Start vor Abschluss und dass keine Quelldaten in der Zukunft
// liegen.
func (v *QualityValidator) checkDates(ds *models.Dataset) []string {
	var failures []string
	now := time.Now()

	inverted := 0
	futureStart := 0
	futureCompletion := 0
	for _, tr := range ds.Trials {
		if tr.StartDate != nil && tr.CompletionDate != nil && tr.StartDate.After(*tr.CompletionDate) {
			inverted++
		}
		if tr.StartDate != nil && tr.StartDate.After(now) {
			futureStart++
		}
		if tr.CompletionDate != nil && tr.CompletionDate.After(now) {
			futureCompletion++
		}
	}
	if inverted > 0 {
		failures = append(failures,
			fmt.Sprintf("Found %d records where start_date > completion_date", inverted))
	}

	futureReceive := 0
	for _, ev := range ds.DrugEvents {
		if ev.ReceiveDate != nil && ev.ReceiveDate.After(now) {
			futureReceive++
		}
	}
	if futureReceive > 0 {
		failures = append(failures,
			fmt.Sprintf("Found %d records with future receivedate", futureReceive))
	}
	if futureStart > 0 {
		failures = append(failures,
			fmt.Sprintf("Found %d records with future start_date", futureStart))
	}
	if futureCompletion > 0 {
		failures = append(failures,
			fmt.Sprintf("Found %d records with future completion_date", futureCompletion))
	}

	return failures
}
