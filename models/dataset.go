package models

import "time"

// Window ist der Datumsbereich, mit dem eine Quelle für einen Lauf gefiltert wird.
type Window struct {
	Start time.Time
	End   time.Time
}

// DayWindow liefert das Fenster für einen einzelnen logischen Tag.
func DayWindow(day time.Time) Window {
	d := day.Truncate(24 * time.Hour)
	return Window{Start: d, End: d}
}

// Dataset bündelt die abgeflachten Zeilen beider Quellen für einen Lauf. Die
// Roh-Artefakte im Object Store und die Eingabe der Qualitätsprüfung teilen
// sich dieses Schema.
type Dataset struct {
	DrugEvents []DrugEvent   `json:"drug_events"`
	Trials     []TrialRecord `json:"trials"`
}

// RecordCount gibt die Gesamtzahl der Quell-Zeilen zurück.
func (d *Dataset) RecordCount() int {
	if d == nil {
		return 0
	}
	return len(d.DrugEvents) + len(d.Trials)
}
