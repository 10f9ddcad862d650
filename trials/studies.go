package trials

// study mirrors the slice of the registry schema this client projects
// from. Fields absent from a record decode to zero values and are
// rendered as "N/A" by orNA at projection time.
type study struct {
	ProtocolSection struct {
		IdentificationModule struct {
			NctID      string `json:"nctId"`
			BriefTitle string `json:"briefTitle"`
		} `json:"identificationModule"`
		EligibilityModule struct {
			EligibilityCriteria string `json:"eligibilityCriteria"`
			Sex                 string `json:"sex"`
			MinimumAge          string `json:"minimumAge"`
			MaximumAge          string `json:"maximumAge"`
		} `json:"eligibilityModule"`
		StatusModule struct {
			StartDateStruct      dateStruct `json:"startDateStruct"`
			CompletionDateStruct dateStruct `json:"completionDateStruct"`
		} `json:"statusModule"`
		DesignModule struct {
			Phases []string `json:"phases"`
		} `json:"designModule"`
		ContactsLocationsModule struct {
			Locations []studyLocation `json:"locations"`
		} `json:"contactsLocationsModule"`
	} `json:"protocolSection"`
}

type dateStruct struct {
	Date string `json:"date"`
}

type studyLocation struct {
	Facility string `json:"facility"`
	City     string `json:"city"`
	Country  string `json:"country"`
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
