package services

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"drug-watch/models"
)

// aktive Studienstatus laut ClinicalTrials.gov.
var activeStatuses = map[string]bool{
	"RECRUITING":              true,
	"ACTIVE_NOT_RECRUITING":   true,
	"ENROLLING_BY_INVITATION": true,
}

// EnrichmentEngine berechnet die abgeleiteten Spalten pro Quelle, dedupliziert
// nach Primärschlüssel und führt den Fuzzy-Join zwischen beiden Datensätzen aus.
type EnrichmentEngine struct {
	Logger     *zap.Logger
	Normalizer *FieldNormalizer
}

func NewEnrichmentEngine(logger *zap.Logger, normalizer *FieldNormalizer) *EnrichmentEngine {
	return &EnrichmentEngine{Logger: logger, Normalizer: normalizer}
}

// TransformDrugEvents bereinigt die FDA-Zeilen und berechnet die abgeleiteten
// Spalten. Zeilen ohne Primärschlüssel werden verworfen, Duplikate behalten die
// zuerst gesehene Zeile.
func (e *EnrichmentEngine) TransformDrugEvents(events []models.DrugEvent) []models.DrugEvent {
	if len(events) == 0 {
		e.Logger.Warn("Keine FDA-Daten zu transformieren")
		return nil
	}

	now := time.Now()
	out := make([]models.DrugEvent, 0, len(events))
	seen := make(map[string]bool, len(events))

	for _, ev := range events {
		if strings.TrimSpace(ev.SafetyReportID) == "" {
			continue
		}
		if seen[ev.SafetyReportID] {
			continue
		}
		seen[ev.SafetyReportID] = true

		ev.DataSource = models.SourceFDA
		ev.ProcessedDate = &now
		ev.DrugNameClean = e.Normalizer.CleanKey(ev.DrugName)
		ev.DrugIndication = e.Normalizer.CleanText(ev.DrugIndication)
		ev.Reaction = e.Normalizer.CleanText(ev.Reaction)
		ev.PatientAge = e.Normalizer.NormalizeAge(ev.PatientAge, ev.PatientAgeUnit)
		ev.SeverityScore = e.SeverityScore(ev)
		if ev.PatientAge != nil {
			ev.AgeGroup = e.AgeGroup(*ev.PatientAge)
		}
		ev.IsComplete = ev.SafetyReportID != "" && ev.DrugName != "" && ev.ReceiveDate != nil

		out = append(out, ev)
	}

	e.Logger.Info("FDA-Transformation abgeschlossen", zap.Int("records", len(out)))
	return out
}

// TransformTrials bereinigt die Studien-Zeilen und berechnet die abgeleiteten
// Spalten; dedupliziert nach NCT-ID, zuerst gesehene Zeile gewinnt.
func (e *EnrichmentEngine) TransformTrials(trials []models.TrialRecord) []models.TrialRecord {
	if len(trials) == 0 {
		e.Logger.Warn("Keine ClinicalTrials-Daten zu transformieren")
		return nil
	}

	now := time.Now()
	out := make([]models.TrialRecord, 0, len(trials))
	seen := make(map[string]bool, len(trials))

	for _, tr := range trials {
		if strings.TrimSpace(tr.NCTID) == "" {
			continue
		}
		if seen[tr.NCTID] {
			continue
		}
		seen[tr.NCTID] = true

		tr.DataSource = models.SourceClinicalTrials
		tr.ProcessedDate = &now
		tr.PhaseNumeric = e.PhaseNumeric(tr.Phase)
		tr.ConditionsClean = e.Normalizer.CleanKey(tr.Conditions)
		tr.IsActive = activeStatuses[tr.OverallStatus]
		tr.IsCompleted = tr.OverallStatus == "COMPLETED"
		if tr.EnrollmentCount != nil {
			tr.StudySizeCategory = e.StudySizeCategory(*tr.EnrollmentCount)
		}
		if tr.StartDate != nil && tr.CompletionDate != nil {
			days := int(tr.CompletionDate.Sub(*tr.StartDate).Hours() / 24)
			tr.StudyDurationDays = &days
		}

		out = append(out, tr)
	}

	e.Logger.Info("ClinicalTrials-Transformation abgeschlossen", zap.Int("records", len(out)))
	return out
}

// SeverityScore berechnet serious×2 + deaths×10 + hospitalizations×5; fehlende
// Indikatoren zählen als 0. Nie negativ, keine obere Kappung.
func (e *EnrichmentEngine) SeverityScore(ev models.DrugEvent) float64 {
	return float64(ev.Serious*2 + ev.SeriousnessDeath*10 + ev.SeriousnessHospitalization*5)
}

// PhaseNumeric bildet einen Phase-String auf einen numerischen Wert ab. Die
// Regeln werden in der aufgeführten Reihenfolge geprüft (3/4 vor 1/2, um
// Substring-Kollisionen zu vermeiden); die erste passende gewinnt.
func (e *EnrichmentEngine) PhaseNumeric(phase string) float64 {
	p := strings.ToUpper(phase)
	switch {
	case strings.Contains(p, "PHASE 4"), strings.Contains(p, "PHASE IV"):
		return 4.0
	case strings.Contains(p, "PHASE 3"), strings.Contains(p, "PHASE III"):
		return 3.0
	case strings.Contains(p, "PHASE 2"), strings.Contains(p, "PHASE II"):
		return 2.0
	case strings.Contains(p, "EARLY"):
		return 0.5
	case strings.Contains(p, "PHASE 1"), strings.Contains(p, "PHASE I"):
		return 1.0
	}
	return 0.0
}

// AgeGroup ordnet ein Patientenalter einem der fünf festen Bänder zu; Werte
// außerhalb aller Grenzen ergeben ein leeres Band.
func (e *EnrichmentEngine) AgeGroup(age float64) string {
	switch {
	case age <= 0 || age > 100:
		return ""
	case age <= 18:
		return "Pediatric"
	case age <= 30:
		return "Young Adult"
	case age <= 50:
		return "Adult"
	case age <= 65:
		return "Senior"
	default:
		return "Elderly"
	}
}

// StudySizeCategory ordnet eine Teilnehmerzahl einem der vier Bänder zu.
func (e *EnrichmentEngine) StudySizeCategory(enrollment int) string {
	switch {
	case enrollment <= 0:
		return ""
	case enrollment <= 50:
		return "Small"
	case enrollment <= 200:
		return "Medium"
	case enrollment <= 1000:
		return "Large"
	default:
		return "Very Large"
	}
}

// SummarizeDrugEvents gruppiert die Events nach bereinigtem Medikamentennamen.
// Das Ergebnis ist nach Namen sortiert, damit Läufe deterministisch bleiben.
func (e *EnrichmentEngine) SummarizeDrugEvents(events []models.DrugEvent) []models.DrugSummary {
	type agg struct {
		count            int
		severitySum      float64
		deaths           int
		hospitalizations int
	}
	groups := map[string]*agg{}
	for _, ev := range events {
		a := groups[ev.DrugNameClean]
		if a == nil {
			a = &agg{}
			groups[ev.DrugNameClean] = a
		}
		a.count++
		a.severitySum += ev.SeverityScore
		a.deaths += ev.SeriousnessDeath
		a.hospitalizations += ev.SeriousnessHospitalization
	}

	summaries := make([]models.DrugSummary, 0, len(groups))
	for name, a := range groups {
		summaries = append(summaries, models.DrugSummary{
			DrugName:             name,
			AdverseEventCount:    a.count,
			AvgSeverityScore:     a.severitySum / float64(a.count),
			DeathCount:           a.deaths,
			HospitalizationCount: a.hospitalizations,
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].DrugName < summaries[j].DrugName })
	return summaries
}

// SummarizeTrials gruppiert die Studien nach bereinigtem Condition-String.
func (e *EnrichmentEngine) SummarizeTrials(trials []models.TrialRecord) []models.TrialSummary {
	type agg struct {
		count      int
		enrollment int
		completed  int
	}
	groups := map[string]*agg{}
	for _, tr := range trials {
		a := groups[tr.ConditionsClean]
		if a == nil {
			a = &agg{}
			groups[tr.ConditionsClean] = a
		}
		a.count++
		if tr.EnrollmentCount != nil {
			a.enrollment += *tr.EnrollmentCount
		}
		if tr.IsCompleted {
			a.completed++
		}
	}

	summaries := make([]models.TrialSummary, 0, len(groups))
	for condition, a := range groups {
		summaries = append(summaries, models.TrialSummary{
			Condition:       condition,
			TrialCount:      a.count,
			TotalEnrollment: a.enrollment,
			CompletedTrials: a.completed,
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Condition < summaries[j].Condition })
	return summaries
}

// Enrich führt den Fuzzy-Join aus: pro Medikament werden alle Condition-Aggregate
// aufsummiert, deren normalisierter String die Indikation enthält oder in ihr
// enthalten ist. Ein Medikament ohne Treffer erhält Null-Werte, keine gelöschte
// Zeile. Existiert nur eine Seite, wird deren Aggregat direkt ausgegeben.
func (e *EnrichmentEngine) Enrich(events []models.DrugEvent, trials []models.TrialRecord) []models.LinkedRecord {
	drugSummaries := e.SummarizeDrugEvents(events)
	trialSummaries := e.SummarizeTrials(trials)

	if len(drugSummaries) == 0 && len(trialSummaries) == 0 {
		return nil
	}

	// Nur Studiendaten: Condition-Aggregate ohne Medikamenten-Kennzahlen.
	if len(drugSummaries) == 0 {
		out := make([]models.LinkedRecord, 0, len(trialSummaries))
		for _, ts := range trialSummaries {
			out = append(out, models.LinkedRecord{
				Condition:       ts.Condition,
				TrialCount:      ts.TrialCount,
				TotalEnrollment: ts.TotalEnrollment,
				CompletedTrials: ts.CompletedTrials,
			})
		}
		e.Logger.Info("Anreicherung abgeschlossen", zap.Int("records", len(out)))
		return out
	}

	// Distinkte Indikationen pro Medikament in Match-Form sammeln.
	indications := map[string][]string{}
	seen := map[string]bool{}
	for _, ev := range events {
		norm := e.Normalizer.MatchKey(ev.DrugIndication)
		if norm == "" {
			continue
		}
		key := ev.DrugNameClean + "\x00" + norm
		if seen[key] {
			continue
		}
		seen[key] = true
		indications[ev.DrugNameClean] = append(indications[ev.DrugNameClean], norm)
	}

	out := make([]models.LinkedRecord, 0, len(drugSummaries))
	for _, ds := range drugSummaries {
		row := models.LinkedRecord{
			DrugName:             ds.DrugName,
			AdverseEventCount:    ds.AdverseEventCount,
			AvgSeverityScore:     ds.AvgSeverityScore,
			DeathCount:           ds.DeathCount,
			HospitalizationCount: ds.HospitalizationCount,
		}

		for _, ts := range trialSummaries {
			if e.matchesAny(indications[ds.DrugName], ts.Condition) {
				row.TrialCount += ts.TrialCount
				row.TotalEnrollment += ts.TotalEnrollment
				row.CompletedTrials += ts.CompletedTrials
			}
		}

		out = append(out, row)
	}

	e.Logger.Info("Anreicherung abgeschlossen", zap.Int("records", len(out)))
	return out
}

// matchesAny prüft den beidseitigen Substring-Test zwischen einer Condition und
// allen Indikationen eines Medikaments. Der Test ist bewusst permissiv; er ist
// Teil des persistierten Artefakt-Verhaltens und darf nicht durch ein klügeres
// Matching ersetzt werden, ohne die Vergleichbarkeit früherer Läufe zu brechen.
func (e *EnrichmentEngine) matchesAny(indications []string, condition string) bool {
	cond := e.Normalizer.MatchKey(condition)
	for _, ind := range indications {
		if strings.Contains(cond, ind) || strings.Contains(ind, cond) {
			return true
		}
	}
	return false
}
