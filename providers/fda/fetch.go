package fda

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"drug-watch/config"
	"drug-watch/models"
	"drug-watch/providers"
)

// Die openFDA-API erlaubt maximal 99 Records pro Seite.
const maxPageSize = 99

const dateLayout = "20060102"

// Extractor holt Adverse-Event-Reports von der openFDA Drug-Event-API.
type Extractor struct {
	Config *config.Config
	Logger *zap.Logger
	client *providers.Client
	retry  *providers.RetryPolicy
}

// NewExtractor erstellt eine neue Instanz des FDA-Extractors mit eigenem
// HTTP-Client-Handle.
func NewExtractor(cfg *config.Config, logger *zap.Logger) *Extractor {
	return &Extractor{
		Config: cfg,
		Logger: logger,
		client: providers.NewClient(cfg.RequestTimeout, logger),
		retry:  &providers.RetryPolicy{MaxAttempts: cfg.RetryMaxAttempts, BaseDelay: cfg.RetryBaseDelay, Logger: logger},
	}
}

// Name gibt den Namen der Quelle zurück.
func (e *Extractor) Name() string {
	return "fda"
}

// Extract implementiert providers.Extractor für das konfigurierte Seitengrößen-
// und Mengenlimit.
func (e *Extractor) Extract(ctx context.Context, window models.Window) (*models.Dataset, error) {
	events, err := e.ExtractDrugEvents(ctx, window, e.Config.FDAPageSize, e.Config.FDAMaxRecords)
	if err != nil {
		return nil, err
	}
	return &models.Dataset{DrugEvents: events}, nil
}

// ExtractDrugEvents treibt die Skip/Limit-Paginierung, bis die Quelle eine Seite
// kleiner als angefordert liefert, maxRecords erreicht ist oder ein Seitenabruf
// nach erschöpften Retries scheitert. Im letzten Fall wird das bis dahin
// Gesammelte behalten, nicht verworfen.
func (e *Extractor) ExtractDrugEvents(ctx context.Context, window models.Window, pageSize, maxRecords int) ([]models.DrugEvent, error) {
	log := e.Logger.With(
		zap.String("source", e.Name()),
		zap.String("start", window.Start.Format(dateLayout)),
		zap.String("end", window.End.Format(dateLayout)))
	log.Info("Starte FDA-Extraktion.")

	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var raw []EventRecord
	skip := 0
	for maxRecords <= 0 || len(raw) < maxRecords {
		limit := pageSize
		if maxRecords > 0 && maxRecords-len(raw) < limit {
			limit = maxRecords - len(raw)
		}

		page, err := e.fetchPage(ctx, window, limit, skip)
		if err != nil {
			log.Error("Seitenabruf endgültig fehlgeschlagen, behalte Teilergebnis",
				zap.Int("accumulated", len(raw)), zap.Error(err))
			break
		}

		raw = append(raw, page...)
		log.Debug("Seite geholt", zap.Int("count", len(page)), zap.Int("total", len(raw)))

		// Eine Seite kleiner als angefordert signalisiert die letzte Seite.
		if len(page) < limit {
			break
		}
		skip += len(page)

		if err := providers.PagePause(ctx, e.Config.PageDelay); err != nil {
			return e.flatten(raw, log), err
		}
	}

	if maxRecords > 0 && len(raw) > maxRecords {
		raw = raw[:maxRecords]
	}

	events := e.flatten(raw, log)
	log.Info("FDA-Extraktion abgeschlossen", zap.Int("records", len(events)))
	return events, nil
}

// fetchPage führt genau einen API-Aufruf über die Retry-Policy aus.
func (e *Extractor) fetchPage(ctx context.Context, window models.Window, limit, skip int) ([]EventRecord, error) {
	params := url.Values{}
	if e.Config.FDAAPIKey != "" {
		params.Set("api_key", e.Config.FDAAPIKey)
	}
	params.Set("search", fmt.Sprintf("receivedate:[%s TO %s]",
		window.Start.Format(dateLayout), window.End.Format(dateLayout)))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("skip", strconv.Itoa(skip))

	var resp EventResponse
	err := e.retry.Execute(ctx, func() error {
		return e.client.GetJSON(ctx, e.Config.FDABaseURL, params, &resp)
	})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// flatten bildet die Roh-Records auf das flache Zeilenschema ab. Records ohne
// Primärschlüssel werden geloggt und übersprungen; sie brechen nie den Batch ab.
func (e *Extractor) flatten(raw []EventRecord, log *zap.Logger) []models.DrugEvent {
	events := make([]models.DrugEvent, 0, len(raw))
	for i := range raw {
		ev, err := flattenRecord(&raw[i])
		if err != nil {
			log.Warn("Record übersprungen", zap.Int("index", i), zap.Error(err))
			continue
		}
		events = append(events, ev)
	}
	return events
}

func flattenRecord(rec *EventRecord) (models.DrugEvent, error) {
	if strings.TrimSpace(rec.SafetyReportID) == "" {
		return models.DrugEvent{}, fmt.Errorf("missing safetyreportid")
	}

	ev := models.DrugEvent{
		SafetyReportID:             rec.SafetyReportID,
		ReceiveDate:                parseDate(rec.ReceiveDate),
		Serious:                    parseIndicator(rec.Serious),
		SeriousnessDeath:           parseIndicator(rec.SeriousnessDeath),
		SeriousnessHospitalization: parseIndicator(rec.SeriousnessHospitalization),
		PatientAge:                 parseFloat(rec.Patient.PatientOnsetAge),
		PatientAgeUnit:             rec.Patient.PatientOnsetAgeUnit,
		PatientSex:                 rec.Patient.PatientSex,
	}

	if len(rec.Patient.Drug) > 0 {
		ev.DrugName = rec.Patient.Drug[0].MedicinalProduct
		ev.DrugIndication = rec.Patient.Drug[0].DrugIndication
	}

	var reactions []string
	for _, r := range rec.Patient.Reaction {
		if r.ReactionMedDRAPT != "" {
			reactions = append(reactions, r.ReactionMedDRAPT)
		}
	}
	ev.Reaction = strings.Join(reactions, ", ")

	return ev, nil
}

// parseDate liefert nil statt eines Fehlers für unparsebare Datumswerte.
func parseDate(s string) *time.Time {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &t
}

func parseIndicator(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(s string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}
