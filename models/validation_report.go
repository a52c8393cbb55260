package models

// ValidationReport ist das Ergebnis eines Qualitätslaufs. Passed ist genau dann
// true, wenn Failures leer ist. Der Report wird nach Erstellung nicht mehr verändert.
type ValidationReport struct {
	Passed      bool     `json:"passed"`
	Failures    []string `json:"failures"`
	RecordCount int      `json:"record_count"`
	CheckCount  int      `json:"check_count"`
}
