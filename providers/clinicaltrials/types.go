package clinicaltrials

// StudiesResponse ist die JSON-Antwort der ClinicalTrials.gov v2 API.
type StudiesResponse struct {
	Studies       []Study `json:"studies"`
	NextPageToken string  `json:"nextPageToken"`
}

// Study ist ein Roh-Record; nur die Module der protocolSection, die wir
// abflachen, sind modelliert. Fehlende Pfade ergeben Nullwerte, keine Fehler.
type Study struct {
	ProtocolSection struct {
		IdentificationModule struct {
			NCTID          string `json:"nctId"`
			OrgStudyIDInfo struct {
				ID string `json:"id"`
			} `json:"orgStudyIdInfo"`
			BriefTitle    string `json:"briefTitle"`
			OfficialTitle string `json:"officialTitle"`
		} `json:"identificationModule"`

		StatusModule struct {
			OverallStatus            string     `json:"overallStatus"`
			StudyFirstPostDateStruct dateStruct `json:"studyFirstPostDateStruct"`
			LastUpdatePostDateStruct dateStruct `json:"lastUpdatePostDateStruct"`
			StartDateStruct          dateStruct `json:"startDateStruct"`
			CompletionDateStruct     dateStruct `json:"completionDateStruct"`
		} `json:"statusModule"`

		DescriptionModule struct {
			BriefSummary string `json:"briefSummary"`
		} `json:"descriptionModule"`

		ConditionsModule struct {
			Conditions []string `json:"conditions"`
			Keywords   []string `json:"keywords"`
		} `json:"conditionsModule"`

		DesignModule struct {
			StudyType      string   `json:"studyType"`
			Phases         []string `json:"phases"`
			EnrollmentInfo struct {
				Count *int `json:"count"`
			} `json:"enrollmentInfo"`
			DesignInfo struct {
				Allocation        string `json:"allocation"`
				InterventionModel string `json:"interventionModel"`
				PrimaryPurpose    string `json:"primaryPurpose"`
				MaskingInfo       struct {
					Masking string `json:"masking"`
				} `json:"maskingInfo"`
			} `json:"designInfo"`
		} `json:"designModule"`

		ArmsInterventionsModule struct {
			Interventions []struct {
				Type string `json:"type"`
			} `json:"interventions"`
		} `json:"armsInterventionsModule"`

		OutcomesModule struct {
			PrimaryOutcomes []struct {
				Measure string `json:"measure"`
			} `json:"primaryOutcomes"`
		} `json:"outcomesModule"`

		EligibilityModule struct {
			Sex               string `json:"sex"`
			MinimumAge        string `json:"minimumAge"`
			MaximumAge        string `json:"maximumAge"`
			HealthyVolunteers bool   `json:"healthyVolunteers"`
		} `json:"eligibilityModule"`

		ContactsLocationsModule struct {
			Locations []struct {
				Country string `json:"country"`
			} `json:"locations"`
		} `json:"contactsLocationsModule"`

		SponsorCollaboratorsModule struct {
			LeadSponsor struct {
				Name string `json:"name"`
			} `json:"leadSponsor"`
		} `json:"sponsorCollaboratorsModule"`
	} `json:"protocolSection"`
}

type dateStruct struct {
	Date string `json:"date"`
}
