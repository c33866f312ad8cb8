package queue

import (
	"encoding/json"
	"fmt"
)

// Payload shapes, one per job type. Payloads are validated at the queue
// boundary before a job is accepted, so processors can decode without
// re-checking required fields.

// ScrapeMapsPayload drives a Google Maps scraping job.
type ScrapeMapsPayload struct {
	Query        string   `json:"query"`
	ZipCodes     []string `json:"zip_codes,omitempty"`
	Country      string   `json:"country,omitempty"`
	Region       string   `json:"region,omitempty"`
	ScraperRunID string   `json:"scraper_run_id,omitempty"`
}

// EnrichPayload drives lead and company enrichment jobs.
type EnrichPayload struct {
	CompanyName string `json:"company_name"`
	Domain      string `json:"domain,omitempty"`
	CompanyID   string `json:"company_id"`
}

// ValidateEmailPayload drives an email validation job.
type ValidateEmailPayload struct {
	LeadID string `json:"lead_id"`
	Email  string `json:"email"`
}

// ScrapeAdsPayload drives Google Ads and LinkedIn Ads transparency jobs.
type ScrapeAdsPayload struct {
	Queries      []string `json:"queries"`
	Country      string   `json:"country,omitempty"`
	Region       string   `json:"region,omitempty"`
	DateRange    string   `json:"date_range,omitempty"`
	ScraperRunID string   `json:"scraper_run_id,omitempty"`
}

// AnalyticsPayload drives an analytics generation job. All fields are
// optional; an empty payload means the default executive summary.
type AnalyticsPayload struct {
	ReportType string          `json:"report_type,omitempty"`
	DateRange  string          `json:"date_range,omitempty"`
	Filters    json.RawMessage `json:"filters,omitempty"`
}

// PushToCRMPayload drives a CRM push job. Lead carries the full lead record
// as the CRM expects it; the queue treats it as opaque.
type PushToCRMPayload struct {
	LeadID string          `json:"lead_id"`
	Lead   json.RawMessage `json:"lead"`
}

// PushToInstantlyPayload drives a campaign push job.
type PushToInstantlyPayload struct {
	CampaignID   string            `json:"campaign_id"`
	CampaignName string            `json:"campaign_name,omitempty"`
	Leads        []json.RawMessage `json:"leads"`
}

// DecodePayload decodes raw into the payload shape for jobType and validates
// required fields. Returns ErrUnknownJobType for types outside the
// enumeration and ErrInvalidPayload (wrapped with detail) for malformed or
// incomplete payloads.
func DecodePayload(jobType JobType, raw json.RawMessage) (any, error) {
	decode := func(dst any) error {
		if len(raw) == 0 {
			raw = []byte("{}")
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return nil
	}

	switch jobType {
	case TypeScrapeGoogleMaps:
		var p ScrapeMapsPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		if p.Query == "" {
			return nil, fmt.Errorf("%w: query is required", ErrInvalidPayload)
		}
		return p, nil

	case TypeEnrichLead, TypeEnrichCompany:
		var p EnrichPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		if p.CompanyName == "" || p.CompanyID == "" {
			return nil, fmt.Errorf("%w: company_name and company_id are required", ErrInvalidPayload)
		}
		return p, nil

	case TypeValidateEmail:
		var p ValidateEmailPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		if p.LeadID == "" || p.Email == "" {
			return nil, fmt.Errorf("%w: lead_id and email are required", ErrInvalidPayload)
		}
		return p, nil

	case TypeScrapeGoogleAds, TypeScrapeLinkedInAds:
		var p ScrapeAdsPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		if len(p.Queries) == 0 {
			return nil, fmt.Errorf("%w: queries array is required", ErrInvalidPayload)
		}
		return p, nil

	case TypeGenerateAnalytics:
		var p AnalyticsPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		return p, nil

	case TypePushToCRM:
		var p PushToCRMPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		if p.LeadID == "" || len(p.Lead) == 0 {
			return nil, fmt.Errorf("%w: lead_id and lead are required", ErrInvalidPayload)
		}
		return p, nil

	case TypePushToInstantly:
		var p PushToInstantlyPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		if p.CampaignID == "" || len(p.Leads) == 0 {
			return nil, fmt.Errorf("%w: campaign_id and leads are required", ErrInvalidPayload)
		}
		return p, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
}
