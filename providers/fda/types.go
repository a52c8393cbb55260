package fda

// EventResponse ist die JSON-Antwort der openFDA Drug-Event-API.
type EventResponse struct {
	Meta struct {
		Results struct {
			Skip  int `json:"skip"`
			Limit int `json:"limit"`
			Total int `json:"total"`
		} `json:"results"`
	} `json:"meta"`
	Results []EventRecord `json:"results"`
}

// EventRecord ist ein einzelner Adverse-Event-Report auf dem Draht. Die API
// liefert fast alle Werte als Strings; die Koerzierung passiert beim Abflachen.
type EventRecord struct {
	SafetyReportID             string `json:"safetyreportid"`
	ReceiveDate                string `json:"receivedate"`
	Serious                    string `json:"serious"`
	SeriousnessDeath           string `json:"seriousnessdeath"`
	SeriousnessHospitalization string `json:"seriousnesshospitalization"`
	Patient                    struct {
		PatientOnsetAge     string `json:"patientonsetage"`
		PatientOnsetAgeUnit string `json:"patientonsetageunit"`
		PatientSex          string `json:"patientsex"`
		Drug                []struct {
			MedicinalProduct string `json:"medicinalproduct"`
			DrugIndication   string `json:"drugindication"`
		} `json:"drug"`
		Reaction []struct {
			ReactionMedDRAPT string `json:"reactionmeddrapt"`
		} `json:"reaction"`
	} `json:"patient"`
}
