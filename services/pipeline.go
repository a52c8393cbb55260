package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"drug-watch/config"
	"drug-watch/models"
	"drug-watch/providers"
	"drug-watch/storage"
)

// summaryRowLimit begrenzt die CSV-Vorschau des Tageslaufs.
const summaryRowLimit = 1000

// PipelineService orchestriert den Tageslauf: Extraktion je Quelle, Ablage der
// Roh-Artefakte, Transformation, Anreicherung, Qualitätsprüfung und die
// Lauf-Historie in der Datenbank.
type PipelineService struct {
	Config     *config.Config
	DB         *gorm.DB
	Store      *storage.ObjectStore
	Logger     *zap.Logger
	Extractors []providers.Extractor
	Normalizer *FieldNormalizer
	Enricher   *EnrichmentEngine
	Validator  *QualityValidator
}

// NewPipelineService erstellt eine neue Instanz des PipelineService.
func NewPipelineService(cfg *config.Config, db *gorm.DB, store *storage.ObjectStore, logger *zap.Logger, extractors []providers.Extractor) *PipelineService {
	normalizer := NewFieldNormalizer(logger)
	return &PipelineService{
		Config:     cfg,
		DB:         db,
		Store:      store,
		Logger:     logger,
		Extractors: extractors,
		Normalizer: normalizer,
		Enricher:   NewEnrichmentEngine(logger, normalizer),
		Validator:  NewQualityValidator(logger),
	}
}

// RunDaily führt den vollständigen Lauf für einen Kalendertag aus. Jeder
// Schritt liest die Artefakte des vorherigen aus dem Object Store, nicht aus
// dem Prozessspeicher; ein abgebrochener Lauf kann so ab dem letzten Artefakt
// wiederholt werden. Schlägt die Qualitätsprüfung fehl, gilt der Lauf als
// gescheitert und trägt die gesammelten Gründe in der Historie.
func (p *PipelineService) RunDaily(ctx context.Context, day time.Time) (*models.PipelineRun, error) {
	started := time.Now()
	log := p.Logger.With(zap.String("run_date", day.Format("2006-01-02")))
	log.Info("Starte Tageslauf.")

	run := &models.PipelineRun{RunDate: day.Format("2006-01-02"), Status: models.RunStatusFailed}

	if err := p.extract(ctx, day, log); err != nil {
		return p.finish(run, started, log), err
	}

	events, trials, err := p.loadRaw(ctx, day)
	if err != nil {
		return p.finish(run, started, log), err
	}
	run.FDARecords = len(events)
	run.TrialRecords = len(trials)

	if len(events)+len(trials) == 0 {
		return p.finish(run, started, log), fmt.Errorf("no records extracted for %s", run.RunDate)
	}

	events = p.Enricher.TransformDrugEvents(events)
	trials = p.Enricher.TransformTrials(trials)

	linked := p.Enricher.Enrich(events, trials)
	run.EnrichedRecords = len(linked)

	if err := p.Store.WriteJSON(ctx, storage.ProcessedKey(day, "enriched_data.json"), linked); err != nil {
		return p.finish(run, started, log), err
	}
	if err := p.Store.WriteCSV(ctx, storage.ProcessedKey(day, "summary.csv"), summaryRows(linked)); err != nil {
		return p.finish(run, started, log), err
	}

	report := p.Validator.Run(&models.Dataset{DrugEvents: events, Trials: trials})
	run.ValidationPassed = report.Passed
	if !report.Passed {
		run.FailureReasons = strings.Join(report.Failures, "; ")
		return p.finish(run, started, log),
			fmt.Errorf("quality checks failed: %s", run.FailureReasons)
	}

	run.Status = models.RunStatusSuccess
	return p.finish(run, started, log), nil
}

// extract holt jede Quelle und legt das Roh-Artefakt unter ihrem Tagesschlüssel
// ab. Ein Fehler einer Quelle oder eine Quelle ganz ohne Records bricht den
// Lauf ab; Teilergebnisse nach erschöpften Retries hat der Extractor bereits
// selbst behalten.
func (p *PipelineService) extract(ctx context.Context, day time.Time, log *zap.Logger) error {
	window := models.DayWindow(day)
	for _, ex := range p.Extractors {
		ds, err := ex.Extract(ctx, window)
		if err != nil {
			log.Error("Extraktion fehlgeschlagen", zap.String("source", ex.Name()), zap.Error(err))
			return fmt.Errorf("extract %s: %w", ex.Name(), err)
		}
		if ds.RecordCount() == 0 {
			return fmt.Errorf("no records extracted from %s", ex.Name())
		}
		if err := p.Store.WriteJSON(ctx, storage.RawKey(ex.Name(), day), ds); err != nil {
			return err
		}
		log.Info("Roh-Artefakt abgelegt",
			zap.String("source", ex.Name()), zap.Int("records", ds.RecordCount()))
	}
	return nil
}

// loadRaw liest die Roh-Artefakte aller konfigurierten Quellen zurück. Ein
// fehlendes Artefakt zählt als leere Quelle, nicht als Fehler.
func (p *PipelineService) loadRaw(ctx context.Context, day time.Time) ([]models.DrugEvent, []models.TrialRecord, error) {
	var events []models.DrugEvent
	var trials []models.TrialRecord

	for _, ex := range p.Extractors {
		var ds models.Dataset
		found, err := p.Store.ReadJSON(ctx, storage.RawKey(ex.Name(), day), &ds)
		if err != nil {
			return nil, nil, err
		}
		if !found {
			p.Logger.Warn("Kein Roh-Artefakt für Quelle", zap.String("source", ex.Name()))
			continue
		}
		events = append(events, ds.DrugEvents...)
		trials = append(trials, ds.Trials...)
	}
	return events, trials, nil
}

// finish schreibt die Laufzeit und persistiert den Lauf in der Historie.
func (p *PipelineService) finish(run *models.PipelineRun, started time.Time, log *zap.Logger) *models.PipelineRun {
	run.DurationMS = time.Since(started).Milliseconds()
	if p.DB != nil {
		if err := p.DB.Create(run).Error; err != nil {
			log.Error("Lauf-Historie konnte nicht gespeichert werden", zap.Error(err))
		}
	}
	log.Info("Tageslauf beendet",
		zap.String("status", run.Status),
		zap.Int("fda_records", run.FDARecords),
		zap.Int("trial_records", run.TrialRecords),
		zap.Int("enriched_records", run.EnrichedRecords),
		zap.Int64("duration_ms", run.DurationMS))
	return run
}

// summaryRows baut die CSV-Vorschau aus den angereicherten Zeilen; mehr als
// summaryRowLimit Zeilen werden abgeschnitten.
func summaryRows(linked []models.LinkedRecord) [][]string {
	rows := [][]string{{
		"drug_name", "adverse_event_count", "avg_severity_score",
		"death_count", "hospitalization_count",
		"condition", "trial_count", "total_enrollment", "completed_trials",
	}}
	for i, rec := range linked {
		if i == summaryRowLimit {
			break
		}
		rows = append(rows, []string{
			rec.DrugName,
			strconv.Itoa(rec.AdverseEventCount),
			strconv.FormatFloat(rec.AvgSeverityScore, 'f', 2, 64),
			strconv.Itoa(rec.DeathCount),
			strconv.Itoa(rec.HospitalizationCount),
			rec.Condition,
			strconv.Itoa(rec.TrialCount),
			strconv.Itoa(rec.TotalEnrollment),
			strconv.Itoa(rec.CompletedTrials),
		})
	}
	return rows
}
