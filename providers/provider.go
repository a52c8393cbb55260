package providers

import (
	"context"

	"drug-watch/models"
)

// Extractor ist das Interface, das jede Datenquelle (z.B. FDA, ClinicalTrials)
// implementieren muss.
type Extractor interface {
	// Extract holt alle Records für das gegebene Datumsfenster und gibt sie als
	// abgeflachten Datensatz zurück. Teilergebnisse nach erschöpften Retries sind
	// zulässig und kein Fehler.
	Extract(ctx context.Context, window models.Window) (*models.Dataset, error)

	// Name gibt den eindeutigen Namen der Quelle zurück (z.B. "fda").
	Name() string
}
