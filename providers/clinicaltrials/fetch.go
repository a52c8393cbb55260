package clinicaltrials

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

// Die Studies-API erlaubt maximal 1000 Studien pro Seite.
const maxPageSize = 1000

// Extractor holt Studien von der ClinicalTrials.gov v2 API.
type Extractor struct {
	Config *config.Config
	Logger *zap.Logger
	client *providers.Client
	retry  *providers.RetryPolicy
}

// NewExtractor erstellt eine neue Instanz des ClinicalTrials-Extractors.
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
	return "clinical_trials"
}

// Extract implementiert providers.Extractor für das konfigurierte Seitengrößen-
// und Mengenlimit.
func (e *Extractor) Extract(ctx context.Context, window models.Window) (*models.Dataset, error) {
	trials, err := e.ExtractStudies(ctx, window, e.Config.CTPageSize, e.Config.CTMaxRecords)
	if err != nil {
		return nil, err
	}
	return &models.Dataset{Trials: trials}, nil
}

// ExtractStudies treibt die Token-Paginierung, bis die Quelle kein
// Fortsetzungs-Token mehr liefert, maxRecords erreicht ist (der Datensatz wird
// exakt darauf gekappt) oder ein Seitenabruf nach erschöpften Retries scheitert.
func (e *Extractor) ExtractStudies(ctx context.Context, window models.Window, pageSize, maxRecords int) ([]models.TrialRecord, error) {
	log := e.Logger.With(
		zap.String("source", e.Name()),
		zap.String("last_update", window.Start.Format("2006-01-02")))
	log.Info("Starte ClinicalTrials-Extraktion.")

	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var raw []Study
	token := ""
	for {
		page, nextToken, err := e.fetchPage(ctx, window, pageSize, token)
		if err != nil {
			log.Error("Seitenabruf endgültig fehlgeschlagen, behalte Teilergebnis",
				zap.Int("accumulated", len(raw)), zap.Error(err))
			break
		}

		raw = append(raw, page...)
		log.Debug("Seite geholt", zap.Int("count", len(page)), zap.Int("total", len(raw)))

		if nextToken == "" {
			break
		}
		if maxRecords > 0 && len(raw) >= maxRecords {
			raw = raw[:maxRecords]
			break
		}
		token = nextToken

		if err := providers.PagePause(ctx, e.Config.PageDelay); err != nil {
			return e.flatten(raw, log), err
		}
	}

	if maxRecords > 0 && len(raw) > maxRecords {
		raw = raw[:maxRecords]
	}

	trials := e.flatten(raw, log)
	log.Info("ClinicalTrials-Extraktion abgeschlossen", zap.Int("records", len(trials)))
	return trials, nil
}

// fetchPage führt genau einen API-Aufruf über die Retry-Policy aus und gibt die
// Seite plus das Fortsetzungs-Token zurück.
func (e *Extractor) fetchPage(ctx context.Context, window models.Window, pageSize int, token string) ([]Study, string, error) {
	params := url.Values{}
	params.Set("filter.advanced", fmt.Sprintf("AREA[LastUpdatePostDate]RANGE[%s,MAX]",
		window.Start.Format("2006-01-02")))
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("format", "json")
	if token != "" {
		params.Set("pageToken", token)
	}

	var resp StudiesResponse
	err := e.retry.Execute(ctx, func() error {
		return e.client.GetJSON(ctx, e.Config.CTBaseURL, params, &resp)
	})
	if err != nil {
		return nil, "", err
	}
	return resp.Studies, resp.NextPageToken, nil
}

// flatten bildet die Studien auf das flache Zeilenschema ab. Studien ohne
// NCT-ID werden geloggt und übersprungen.
func (e *Extractor) flatten(raw []Study, log *zap.Logger) []models.TrialRecord {
	trials := make([]models.TrialRecord, 0, len(raw))
	for i := range raw {
		rec, err := flattenStudy(&raw[i])
		if err != nil {
			log.Warn("Studie übersprungen", zap.Int("index", i), zap.Error(err))
			continue
		}
		trials = append(trials, rec)
	}
	return trials
}

func flattenStudy(s *Study) (models.TrialRecord, error) {
	p := &s.ProtocolSection
	if strings.TrimSpace(p.IdentificationModule.NCTID) == "" {
		return models.TrialRecord{}, fmt.Errorf("missing nctId")
	}

	rec := models.TrialRecord{
		NCTID:         p.IdentificationModule.NCTID,
		OrgStudyID:    p.IdentificationModule.OrgStudyIDInfo.ID,
		BriefTitle:    p.IdentificationModule.BriefTitle,
		OfficialTitle: p.IdentificationModule.OfficialTitle,

		OverallStatus:      p.StatusModule.OverallStatus,
		StudyFirstPostDate: parseDate(p.StatusModule.StudyFirstPostDateStruct.Date),
		LastUpdatePostDate: parseDate(p.StatusModule.LastUpdatePostDateStruct.Date),
		StartDate:          parseDate(p.StatusModule.StartDateStruct.Date),
		CompletionDate:     parseDate(p.StatusModule.CompletionDateStruct.Date),

		BriefSummary: p.DescriptionModule.BriefSummary,
		Conditions:   strings.Join(p.ConditionsModule.Conditions, ", "),
		Keywords:     strings.Join(p.ConditionsModule.Keywords, ", "),

		StudyType:         p.DesignModule.StudyType,
		Phase:             strings.Join(p.DesignModule.Phases, ", "),
		EnrollmentCount:   p.DesignModule.EnrollmentInfo.Count,
		Allocation:        p.DesignModule.DesignInfo.Allocation,
		InterventionModel: p.DesignModule.DesignInfo.InterventionModel,
		PrimaryPurpose:    p.DesignModule.DesignInfo.PrimaryPurpose,
		Masking:           p.DesignModule.DesignInfo.MaskingInfo.Masking,

		InterventionTypes:      interventionTypes(s),
		PrimaryOutcomeMeasures: primaryOutcomes(s),

		Gender:         p.EligibilityModule.Sex,
		MinAge:         p.EligibilityModule.MinimumAge,
		MaxAge:         p.EligibilityModule.MaximumAge,
		AcceptsHealthy: p.EligibilityModule.HealthyVolunteers,

		LocationCountries: locationCountries(s),
		LeadSponsor:       p.SponsorCollaboratorsModule.LeadSponsor.Name,
	}
	return rec, nil
}

// interventionTypes liefert die distinkten Interventionstypen in Erst-Auftritts-
// Reihenfolge als ", "-String.
func interventionTypes(s *Study) string {
	seen := map[string]bool{}
	var types []string
	for _, iv := range s.ProtocolSection.ArmsInterventionsModule.Interventions {
		if iv.Type == "" || seen[iv.Type] {
			continue
		}
		seen[iv.Type] = true
		types = append(types, iv.Type)
	}
	return strings.Join(types, ", ")
}

// primaryOutcomes liefert die ersten drei Primary-Outcome-Measures, mit " | "
// verbunden.
func primaryOutcomes(s *Study) string {
	var measures []string
	for _, o := range s.ProtocolSection.OutcomesModule.PrimaryOutcomes {
		if o.Measure == "" {
			continue
		}
		measures = append(measures, o.Measure)
		if len(measures) == 3 {
			break
		}
	}
	return strings.Join(measures, " | ")
}

func locationCountries(s *Study) string {
	var countries []string
	for _, loc := range s.ProtocolSection.ContactsLocationsModule.Locations {
		if loc.Country != "" {
			countries = append(countries, loc.Country)
		}
	}
	return strings.Join(countries, ", ")
}

// parseDate akzeptiert volle und partielle Datumswerte der Studies-API.
// Unparsebare Werte ergeben nil statt eines Fehlers.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
