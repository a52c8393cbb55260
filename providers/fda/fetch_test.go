package fda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"drug-watch/config"
	"drug-watch/models"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		FDABaseURL:       baseURL,
		RequestTimeout:   5 * time.Second,
		RetryMaxAttempts: 3,
		RetryBaseDelay:   time.Millisecond,
		PageDelay:        0,
	}
}

func testWindow() models.Window {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return models.DayWindow(day)
}

func eventPage(offset, count int) []byte {
	var resp EventResponse
	resp.Meta.Results.Total = 1000
	for i := 0; i < count; i++ {
		var rec EventRecord
		rec.SafetyReportID = strconv.Itoa(offset + i)
		rec.ReceiveDate = "20240301"
		rec.Serious = "1"
		rec.Patient.Drug = []struct {
			MedicinalProduct string `json:"medicinalproduct"`
			DrugIndication   string `json:"drugindication"`
		}{{MedicinalProduct: "ASPIRIN", DrugIndication: "HEADACHE"}}
		resp.Results = append(resp.Results, rec)
	}
	b, _ := json.Marshal(resp)
	return b
}

func TestExtractDrugEventsPagination(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		requests = append(requests, q.Get("skip"))

		if q.Get("search") != "receivedate:[20240301 TO 20240301]" {
			t.Errorf("unexpected search param: %q", q.Get("search"))
		}

		skip, _ := strconv.Atoi(q.Get("skip"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		// zwei volle Seiten, dann eine kurze
		count := limit
		if skip >= 2*limit {
			count = 3
		}
		w.Write(eventPage(skip, count))
	}))
	defer server.Close()

	e := NewExtractor(testConfig(server.URL), zap.NewNop())
	events, err := e.ExtractDrugEvents(context.Background(), testWindow(), 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 23 {
		t.Fatalf("expected 23 events, got %d", len(events))
	}
	if len(requests) != 3 {
		t.Fatalf("expected 3 requests, got %d (%v)", len(requests), requests)
	}
	if requests[0] != "0" || requests[1] != "10" || requests[2] != "20" {
		t.Errorf("unexpected skip sequence: %v", requests)
	}
	if events[0].SafetyReportID != "0" || events[22].SafetyReportID != "22" {
		t.Errorf("unexpected record order: first=%s last=%s",
			events[0].SafetyReportID, events[22].SafetyReportID)
	}
}

func TestExtractDrugEventsMaxRecords(t *testing.T) {
	var limits []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limits = append(limits, q.Get("limit"))
		skip, _ := strconv.Atoi(q.Get("skip"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		w.Write(eventPage(skip, limit))
	}))
	defer server.Close()

	e := NewExtractor(testConfig(server.URL), zap.NewNop())
	events, err := e.ExtractDrugEvents(context.Background(), testWindow(), 99, 150)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 150 {
		t.Fatalf("expected exactly 150 events, got %d", len(events))
	}
	// die letzte Seite fordert nur den Rest an
	if len(limits) != 2 || limits[0] != "99" || limits[1] != "51" {
		t.Errorf("unexpected limit sequence: %v", limits)
	}
}

func TestExtractDrugEventsRetriesServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		w.Write(eventPage(skip, 2))
	}))
	defer server.Close()

	e := NewExtractor(testConfig(server.URL), zap.NewNop())
	events, err := e.ExtractDrugEvents(context.Background(), testWindow(), 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 events, got %d", len(events))
	}
}

func TestExtractDrugEventsClientErrorNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	e := NewExtractor(testConfig(server.URL), zap.NewNop())
	events, err := e.ExtractDrugEvents(context.Background(), testWindow(), 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
}

func TestExtractDrugEventsKeepsPartialOnFailure(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			// zweite Seite scheitert endgültig
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		w.Write(eventPage(skip, limit))
	}))
	defer server.Close()

	e := NewExtractor(testConfig(server.URL), zap.NewNop())
	events, err := e.ExtractDrugEvents(context.Background(), testWindow(), 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 10 {
		t.Errorf("expected the first page to survive, got %d events", len(events))
	}
}

func TestFlattenRecord(t *testing.T) {
	raw := `{
		"safetyreportid": "42",
		"receivedate": "20240215",
		"serious": "1",
		"seriousnessdeath": "bogus",
		"patient": {
			"patientonsetage": "64",
			"patientonsetageunit": "801",
			"patientsex": "2",
			"drug": [
				{"medicinalproduct": "ASPIRIN", "drugindication": "HEADACHE"},
				{"medicinalproduct": "IGNORED"}
			],
			"reaction": [
				{"reactionmeddrapt": "NAUSEA"},
				{"reactionmeddrapt": "DIZZINESS"}
			]
		}
	}`
	var rec EventRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatal(err)
	}

	ev, err := flattenRecord(&rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.SafetyReportID != "42" {
		t.Errorf("SafetyReportID = %q", ev.SafetyReportID)
	}
	if ev.ReceiveDate == nil || !ev.ReceiveDate.Equal(time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ReceiveDate = %v", ev.ReceiveDate)
	}
	if ev.Serious != 1 {
		t.Errorf("Serious = %d", ev.Serious)
	}
	// unparsebarer Indikator zählt als 0
	if ev.SeriousnessDeath != 0 {
		t.Errorf("SeriousnessDeath = %d", ev.SeriousnessDeath)
	}
	// nur das erste Medikament wird übernommen
	if ev.DrugName != "ASPIRIN" || ev.DrugIndication != "HEADACHE" {
		t.Errorf("drug = %q / %q", ev.DrugName, ev.DrugIndication)
	}
	if ev.Reaction != "NAUSEA, DIZZINESS" {
		t.Errorf("Reaction = %q", ev.Reaction)
	}
	if ev.PatientAge == nil || *ev.PatientAge != 64 {
		t.Errorf("PatientAge = %v", ev.PatientAge)
	}
	if ev.PatientAgeUnit != "801" {
		t.Errorf("PatientAgeUnit = %q", ev.PatientAgeUnit)
	}
}

func TestFlattenRecordMissingKey(t *testing.T) {
	rec := EventRecord{ReceiveDate: "20240215"}
	if _, err := flattenRecord(&rec); err == nil {
		t.Fatal("expected error for missing safetyreportid")
	}
}
