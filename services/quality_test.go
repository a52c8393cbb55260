package services

import (
	"math"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"drug-watch/models"
)

// validDataset baut einen Datensatz, der alle Prüfungen besteht.
func validDataset() *models.Dataset {
	receive := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var events []models.DrugEvent
	for _, id := range []string{"1", "2", "3", "4", "5", "6"} {
		events = append(events, models.DrugEvent{
			SafetyReportID: id,
			DrugName:       "ASPIRIN",
			ReceiveDate:    &receive,
			SeverityScore:  7,
		})
	}

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	completion := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	var trials []models.TrialRecord
	for _, id := range []string{"NCT001", "NCT002", "NCT003", "NCT004", "NCT005"} {
		trials = append(trials, models.TrialRecord{
			NCTID:          id,
			BriefTitle:     "A Study",
			OverallStatus:  "COMPLETED",
			StartDate:      &start,
			CompletionDate: &completion,
		})
	}
	return &models.Dataset{DrugEvents: events, Trials: trials}
}

func TestRunPassesOnValidDataset(t *testing.T) {
	v := NewQualityValidator(zap.NewNop())

	report := v.Run(validDataset())
	if !report.Passed {
		t.Fatalf("expected pass, got failures: %v", report.Failures)
	}
	if report.CheckCount != 6 {
		t.Errorf("CheckCount = %d, want 6", report.CheckCount)
	}
	if report.RecordCount != 11 {
		t.Errorf("RecordCount = %d, want 11", report.RecordCount)
	}
}

func TestRunEmptyDataset(t *testing.T) {
	v := NewQualityValidator(zap.NewNop())

	for _, ds := range []*models.Dataset{nil, {}} {
		report := v.Run(ds)
		if report.Passed {
			t.Error("empty dataset must not pass")
		}
		if len(report.Failures) != 1 || report.Failures[0] != "No data to validate" {
			t.Errorf("Failures = %v", report.Failures)
		}
		if report.CheckCount != 6 {
			t.Errorf("CheckCount = %d, want 6", report.CheckCount)
		}
	}
}

func TestRunCompleteness(t *testing.T) {
	v := NewQualityValidator(zap.NewNop())

	ds := validDataset()
	// 2 von 6 FDA-Zeilen ohne Medikamentennamen -> 33.3% > 10%
	ds.DrugEvents[0].DrugName = ""
	ds.DrugEvents[1].DrugName = ""

	report := v.Run(ds)
	if report.Passed {
		t.Fatal("expected failure")
	}
	want := "FDA column drug_name has 33.3% missing values"
	if !containsFailure(report, want) {
		t.Errorf("missing %q in %v", want, report.Failures)
	}
}

func TestRunCompletenessToleratesLowNullRate(t *testing.T) {
	v := NewQualityValidator(zap.NewNop())

	ds := validDataset()
	// 11 Studien, eine ohne Titel -> 9.1% <= 10%
	extra := ds.Trials[0]
	for i := 0; i < 6; i++ {
		extra.NCTID = "NCTX" + string(rune('0'+i))
		ds.Trials = append(ds.Trials, extra)
	}
	ds.Trials[0].BriefTitle = ""

	report := v.Run(ds)
	if !report.Passed {
		t.Errorf("expected pass, got failures: %v", report.Failures)
	}
}

func TestRunTypeConformance(t *testing.T) {
	v := NewQualityValidator(zap.NewNop())

	ds := validDataset()
	ds.DrugEvents[0].SeverityScore = math.NaN()
	ds.Trials[0].PhaseNumeric = math.Inf(1)
	zero := time.Time{}
	ds.Trials[1].StartDate = &zero

	report := v.Run(ds)
	if report.Passed {
		t.Fatal("expected failure")
	}
	if !containsFailure(report, "Found 1 records with invalid severity_score") {
		t.Errorf("missing severity failure in %v", report.Failures)
	}
	if !containsFailure(report, "Found 1 records with invalid phase_numeric") {
		t.Errorf("missing phase failure in %v", report.Failures)
	}
	if !containsFailure(report, "Found 1 records with invalid trial dates") {
		t.Errorf("missing date type failure in %v", report.Failures)
	}
}

func TestRunValueRanges(t *testing.T) {
	v := NewQualityValidator(zap.NewNop())

	ds := validDataset()
	ds.DrugEvents[0].SeverityScore = 101
	ds.DrugEvents[1].SeverityScore = -1
	age := 150.0
	ds.DrugEvents[2].PatientAge = &age
	enrollment := -10
	ds.Trials[0].EnrollmentCount = &enrollment

	report := v.Run(ds)
	if report.Passed {
		t.Fatal("expected failure")
	}
	if !containsFailure(report, "Found 2 records with severity_score outside [0, 100]") {
		t.Errorf("missing severity range failure in %v", report.Failures)
	}
	if !containsFailure(report, "Found 1 records with patient_age outside [0, 120]") {
		t.Errorf("missing age range failure in %v", report.Failures)
	}
	if !containsFailure(report, "Found 1 records with negative enrollment_count") {
		t.Errorf("missing enrollment failure in %v", report.Failures)
	}
}

func TestRunDuplicates(t *testing.T) {
	v := NewQualityValidator(zap.NewNop())

	ds := validDataset()
	// drei Zeilen teilen sich einen Schlüssel: alle drei zählen
	ds.DrugEvents[1].SafetyReportID = "1"
	ds.DrugEvents[2].SafetyReportID = "1"
	ds.Trials[1].NCTID = "NCT001"

	report := v.Run(ds)
	if report.Passed {
		t.Fatal("expected failure")
	}
	if !containsFailure(report, "Found 3 duplicate safetyreportid values") {
		t.Errorf("missing FDA duplicate failure in %v", report.Failures)
	}
	if !containsFailure(report, "Found 2 duplicate nct_id values") {
		t.Errorf("missing trial duplicate failure in %v", report.Failures)
	}
}

func TestRunRecordCountFloors(t *testing.T) {
	v := NewQualityValidator(zap.NewNop())

	ds := validDataset()
	ds.DrugEvents = ds.DrugEvents[:2]
	ds.Trials = ds.Trials[:3]

	report := v.Run(ds)
	if report.Passed {
		t.Fatal("expected failure")
	}
	if !containsFailure(report, "Record count (5) is below minimum threshold (10)") {
		t.Errorf("missing total floor failure in %v", report.Failures)
	}
	if !containsFailure(report, "Data source FDA_OpenFDA has only 2 records") {
		t.Errorf("missing FDA floor failure in %v", report.Failures)
	}
	if !containsFailure(report, "Data source ClinicalTrials_gov has only 3 records") {
		t.Errorf("missing trial floor failure in %v", report.Failures)
	}
}

func TestRunDateConsistency(t *testing.T) {
	v := NewQualityValidator(zap.NewNop())

	ds := validDataset()
	future := time.Now().Add(48 * time.Hour)
	ds.DrugEvents[0].ReceiveDate = &future

	late := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	early := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	ds.Trials[0].StartDate = &late
	ds.Trials[0].CompletionDate = &early
	ds.Trials[1].CompletionDate = &future

	report := v.Run(ds)
	if report.Passed {
		t.Fatal("expected failure")
	}
	if !containsFailure(report, "Found 1 records where start_date > completion_date") {
		t.Errorf("missing inverted date failure in %v", report.Failures)
	}
	if !containsFailure(report, "Found 1 records with future receivedate") {
		t.Errorf("missing future receivedate failure in %v", report.Failures)
	}
	if !containsFailure(report, "Found 1 records with future completion_date") {
		t.Errorf("missing future completion_date failure in %v", report.Failures)
	}
}

func TestRunCollectsAllFailures(t *testing.T) {
	v := NewQualityValidator(zap.NewNop())

	// Drei Zeilen, mehrere unabhängige Verstöße: alle müssen gemeldet werden.
	ds := &models.Dataset{
		DrugEvents: []models.DrugEvent{
			{SafetyReportID: "1", DrugName: "A", SeverityScore: 200},
			{SafetyReportID: "1", DrugName: "A"},
		},
		Trials: []models.TrialRecord{
			{NCTID: "NCT001", BriefTitle: "T", OverallStatus: "COMPLETED"},
		},
	}

	report := v.Run(ds)
	if report.Passed {
		t.Fatal("expected failure")
	}
	// Bereich, Duplikate, Gesamtmenge und beide Quell-Untergrenzen
	if len(report.Failures) < 4 {
		t.Errorf("expected at least 4 failures, got %v", report.Failures)
	}
}

func containsFailure(report *models.ValidationReport, want string) bool {
	for _, f := range report.Failures {
		if strings.Contains(f, want) {
			return true
		}
	}
	return false
}
