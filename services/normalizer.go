package services

import (
	"strings"

	"go.uber.org/zap"
)

// openFDA-Einheitencodes für patientonsetageunit.
const (
	AgeUnitDecade = "800"
	AgeUnitYear   = "801"
	AgeUnitMonth  = "802"
	AgeUnitWeek   = "803"
	AgeUnitDay    = "804"
)

// FieldNormalizer bündelt die Bereinigungsregeln, die sich beide
// Transformationspfade teilen.
type FieldNormalizer struct {
	logger *zap.Logger
}

func NewFieldNormalizer(logger *zap.Logger) *FieldNormalizer {
	return &FieldNormalizer{logger: logger}
}

// CleanKey normalisiert einen Freitext zu einem kanonischen Schlüssel:
// getrimmt und in Großbuchstaben.
func (n *FieldNormalizer) CleanKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// CleanText trimmt ein Anzeige-Feld.
func (n *FieldNormalizer) CleanText(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeAge rechnet eine Altersangabe anhand des Einheitencodes in Jahre um.
// Unbekannte Einheiten reichen die Magnitude unkonvertiert durch; eine fehlende
// Magnitude bleibt nil.
func (n *FieldNormalizer) NormalizeAge(magnitude *float64, unit string) *float64 {
	if magnitude == nil {
		return nil
	}
	v := *magnitude
	switch strings.TrimSpace(unit) {
	case AgeUnitDecade:
		v *= 10
	case AgeUnitYear:
		// bereits Jahre
	case AgeUnitMonth:
		v /= 12
	case AgeUnitWeek:
		v /= 52
	case AgeUnitDay:
		v /= 365
	}
	return &v
}

// MatchKey bringt einen String in die Form, in der der Fuzzy-Join vergleicht:
// Kleinbuchstaben, sämtlicher Whitespace entfernt.
func (n *FieldNormalizer) MatchKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "")
}
