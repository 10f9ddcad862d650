package trials

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// StatusError reports a non-200 answer from the registry. The tool layer
// turns it into a result the model can read instead of failing the call.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: %d", e.Code)
}

type Config struct {
	BaseURL          string
	HTTPClient       *http.Client
	MaxFacilities    int
	MaxSampleTitles  int
	DefaultMaxTrials int
}

// Client queries the ClinicalTrials.gov v2 studies endpoint. The zero
// value is not usable; construct it with New and share it freely, it
// holds no mutable state.
type Client struct {
	baseURL          string
	http             *http.Client
	maxFacilities    int
	maxSampleTitles  int
	defaultMaxTrials int
}

func New(cfg Config) *Client {
	c := &Client{
		baseURL:          cfg.BaseURL,
		http:             cfg.HTTPClient,
		maxFacilities:    cfg.MaxFacilities,
		maxSampleTitles:  cfg.MaxSampleTitles,
		defaultMaxTrials: cfg.DefaultMaxTrials,
	}
	if c.baseURL == "" {
		c.baseURL = "https://clinicaltrials.gov/api/v2"
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.maxFacilities <= 0 {
		c.maxFacilities = 20
	}
	if c.maxSampleTitles <= 0 {
		c.maxSampleTitles = 3
	}
	if c.defaultMaxTrials <= 0 {
		c.defaultMaxTrials = 5
	}
	return c
}

func (c *Client) studies(ctx context.Context, params url.Values) ([]study, error) {
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/studies?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var payload struct {
		Studies []study `json:"studies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding registry response: %w", err)
	}
	return payload.Studies, nil
}

type CountSummary struct {
	Count        int      `json:"count"`
	Condition    string   `json:"condition"`
	Status       string   `json:"status"`
	SampleTitles []string `json:"sample_titles"`
}

// CountTrials counts studies for a condition in a given overall status.
// An empty status defaults to RECRUITING.
func (c *Client) CountTrials(ctx context.Context, condition, status string) (*CountSummary, error) {
	if status == "" {
		status = "RECRUITING"
	}

	params := url.Values{}
	params.Set("pageSize", "1000")
	params.Set("query.cond", condition)
	params.Set("filter.overallStatus", status)
	params.Set("fields", "NCTId,BriefTitle")

	studies, err := c.studies(ctx, params)
	if err != nil {
		return nil, err
	}

	summary := &CountSummary{
		Count:        len(studies),
		Condition:    condition,
		Status:       status,
		SampleTitles: []string{},
	}
	for _, s := range studies {
		if len(summary.SampleTitles) >= c.maxSampleTitles {
			break
		}
		summary.SampleTitles = append(summary.SampleTitles, orNA(s.ProtocolSection.IdentificationModule.BriefTitle))
	}
	return summary, nil
}

type TrialCriteria struct {
	NctID    string `json:"nct_id"`
	Title    string `json:"title"`
	Criteria string `json:"criteria"`
	Sex      string `json:"sex"`
	AgeRange string `json:"age_range"`
}

type EligibilitySummary struct {
	Condition      string          `json:"condition"`
	NumberOfTrials int             `json:"number_of_trials"`
	Criteria       []TrialCriteria `json:"criteria"`
}

// EligibilityCriteria fetches eligibility text for up to maxTrials
// recruiting studies of a condition. maxTrials <= 0 uses the configured
// default.
func (c *Client) EligibilityCriteria(ctx context.Context, condition string, maxTrials int) (*EligibilitySummary, error) {
	if maxTrials <= 0 {
		maxTrials = c.defaultMaxTrials
	}

	params := url.Values{}
	params.Set("pageSize", strconv.Itoa(maxTrials))
	params.Set("query.cond", condition)
	params.Set("filter.overallStatus", "RECRUITING")
	params.Set("fields", "NCTId,BriefTitle,EligibilityCriteria,Sex,MinimumAge,MaximumAge")

	studies, err := c.studies(ctx, params)
	if err != nil {
		return nil, err
	}

	summary := &EligibilitySummary{
		Condition: condition,
		Criteria:  []TrialCriteria{},
	}
	for _, s := range studies {
		ident := s.ProtocolSection.IdentificationModule
		elig := s.ProtocolSection.EligibilityModule
		summary.Criteria = append(summary.Criteria, TrialCriteria{
			NctID:    orNA(ident.NctID),
			Title:    orNA(ident.BriefTitle),
			Criteria: orNA(elig.EligibilityCriteria),
			Sex:      orNA(elig.Sex),
			AgeRange: fmt.Sprintf("%s - %s", orNA(elig.MinimumAge), orNA(elig.MaximumAge)),
		})
	}
	summary.NumberOfTrials = len(summary.Criteria)
	return summary, nil
}

type Facility struct {
	Facility string `json:"facility"`
	City     string `json:"city"`
	Country  string `json:"country"`
}

type LocationsSummary struct {
	Condition          string     `json:"condition"`
	Country            string     `json:"country"`
	NumberOfFacilities int        `json:"number_of_facilities"`
	Facilities         []Facility `json:"facilities"`
}

// Locations lists unique trial facilities for a condition, optionally
// filtered by country (case-insensitive). Duplicate (facility, city,
// country) triples are dropped, first occurrence wins, and the returned
// list is capped while NumberOfFacilities still counts every unique
// facility seen.
func (c *Client) Locations(ctx context.Context, condition, country string) (*LocationsSummary, error) {
	params := url.Values{}
	params.Set("pageSize", "50")
	params.Set("query.cond", condition)
	params.Set("fields", "NCTId,BriefTitle,LocationFacility,LocationCity,LocationCountry")
	if country != "" {
		params.Set("query.locn", country)
	}

	studies, err := c.studies(ctx, params)
	if err != nil {
		return nil, err
	}

	seen := map[Facility]bool{}
	facilities := []Facility{}
	for _, s := range studies {
		for _, loc := range s.ProtocolSection.ContactsLocationsModule.Locations {
			if country != "" && !strings.EqualFold(loc.Country, country) {
				continue
			}
			f := Facility{
				Facility: orNA(loc.Facility),
				City:     orNA(loc.City),
				Country:  orNA(loc.Country),
			}
			if seen[f] {
				continue
			}
			seen[f] = true
			facilities = append(facilities, f)
		}
	}

	summary := &LocationsSummary{
		Condition:          condition,
		Country:            country,
		NumberOfFacilities: len(facilities),
	}
	if summary.Country == "" {
		summary.Country = "all"
	}
	if len(facilities) > c.maxFacilities {
		facilities = facilities[:c.maxFacilities]
	}
	summary.Facilities = facilities
	return summary, nil
}

type PhaseTrial struct {
	NctID          string   `json:"nct_id"`
	Title          string   `json:"title"`
	Phase          []string `json:"phase"`
	StartDate      string   `json:"start_date"`
	CompletionDate string   `json:"completion_date"`
}

type PhaseSummary struct {
	Condition string       `json:"condition"`
	Phase     string       `json:"phase"`
	Count     int          `json:"count"`
	Trials    []PhaseTrial `json:"trials"`
}

// Phases lists trials of a condition in a given phase with their start
// and completion dates.
func (c *Client) Phases(ctx context.Context, condition, phase string) (*PhaseSummary, error) {
	params := url.Values{}
	params.Set("pageSize", "100")
	params.Set("query.cond", condition)
	params.Set("query.term", phase)
	params.Set("fields", "NCTId,BriefTitle,Phase,StartDate,CompletionDate")

	studies, err := c.studies(ctx, params)
	if err != nil {
		return nil, err
	}

	summary := &PhaseSummary{
		Condition: condition,
		Phase:     phase,
		Trials:    []PhaseTrial{},
	}
	for _, s := range studies {
		ident := s.ProtocolSection.IdentificationModule
		status := s.ProtocolSection.StatusModule
		phases := s.ProtocolSection.DesignModule.Phases
		if len(phases) == 0 {
			phases = []string{"N/A"}
		}
		summary.Trials = append(summary.Trials, PhaseTrial{
			NctID:          orNA(ident.NctID),
			Title:          orNA(ident.BriefTitle),
			Phase:          phases,
			StartDate:      orNA(status.StartDateStruct.Date),
			CompletionDate: orNA(status.CompletionDateStruct.Date),
		})
	}
	summary.Count = len(summary.Trials)
	return summary, nil
}
