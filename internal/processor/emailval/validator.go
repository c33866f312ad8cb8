// Package emailval scores email deliverability without sending anything:
// syntax, disposable-domain and MX checks add up to a 0-100 score.
package emailval

import (
	"context"
	"errors"
	"net"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Well-known mail infrastructure; an MX pointing at one of these is a strong
// deliverability signal.
var knownProviders = []string{
	"google.com",
	"googlemail.com",
	"outlook.com",
	"microsoft.com",
	"office365.us",
	"protection.outlook.com",
	"pphosted.com",
	"mimecast.com",
	"barracudanetworks.com",
	"messagelabs.com",
	"protonmail.ch",
	"zoho.com",
	"secureserver.net",
	"emailsrvr.com",
}

// Common disposable email domains
var disposableDomains = map[string]bool{
	"mailinator.com":         true,
	"guerrillamail.com":      true,
	"tempmail.com":           true,
	"throwaway.email":        true,
	"yopmail.com":            true,
	"sharklasers.com":        true,
	"guerrillamailblock.com": true,
	"grr.la":                 true,
	"dispostable.com":        true,
	"temp-mail.org":          true,
	"fakeinbox.com":          true,
	"trashmail.com":          true,
	"maildrop.cc":            true,
	"10minutemail.com":       true,
	"mailnesia.com":          true,
	"mintemail.com":          true,
	"tempinbox.com":          true,
	"mohmal.com":             true,
	"burpcollaborator.net":   true,
	"mailcatch.com":          true,
}

// Simplified RFC 5322 shape. Deliberately permissive; the MX check carries
// most of the weight.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// Score weights. A score of at least ScoreValid (format OK and not
// disposable) counts as valid even when DNS is unavailable.
const (
	scoreFormat        = 20
	scoreNotDisposable = 20
	scoreMXRecords     = 40
	scoreMXTimeout     = 10
	scoreKnownProvider = 20

	ScoreValid = 40
)

// DefaultDNSTimeout bounds each MX lookup.
const DefaultDNSTimeout = 5 * time.Second

// Resolver is the slice of net.Resolver the validator needs.
type Resolver interface {
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)
}

// Result is the full breakdown of one validation.
type Result struct {
	Email           string   `json:"email"`
	IsValid         bool     `json:"is_valid"`
	Score           int      `json:"score"`
	FormatValid     bool     `json:"format_valid"`
	HasMXRecords    bool     `json:"has_mx_records"`
	IsKnownProvider bool     `json:"is_known_provider"`
	IsDisposable    bool     `json:"is_disposable"`
	MXRecords       []string `json:"mx_records"`
	Details         string   `json:"details"`
}

// Validator scores emails. The zero value is not usable; use NewValidator.
type Validator struct {
	resolver   Resolver
	dnsTimeout time.Duration
}

// NewValidator creates a validator backed by the system resolver.
func NewValidator() *Validator {
	return &Validator{
		resolver:   net.DefaultResolver,
		dnsTimeout: DefaultDNSTimeout,
	}
}

// NewValidatorWithResolver creates a validator with a custom resolver.
func NewValidatorWithResolver(resolver Resolver, dnsTimeout time.Duration) *Validator {
	if dnsTimeout <= 0 {
		dnsTimeout = DefaultDNSTimeout
	}
	return &Validator{resolver: resolver, dnsTimeout: dnsTimeout}
}

// Validate scores email. It never returns an error: a bad email is a low
// score, not a failure, so the job retry budget is saved for real outages.
func (v *Validator) Validate(ctx context.Context, email string) *Result {
	result := &Result{
		Email:     email,
		MXRecords: []string{},
	}

	if !emailRegex.MatchString(email) {
		result.Details = "Invalid email format"
		return result
	}
	result.FormatValid = true
	result.Score += scoreFormat

	domain := strings.ToLower(email[strings.LastIndex(email, "@")+1:])

	// Disposable domains stop here: format credit only.
	if disposableDomains[domain] {
		result.IsDisposable = true
		result.Details = "Disposable email domain: " + domain
		return result
	}
	result.Score += scoreNotDisposable

	v.checkMX(ctx, domain, result)

	result.IsValid = result.Score >= ScoreValid

	if result.Details == "" {
		var parts []string
		if result.FormatValid {
			parts = append(parts, "format OK")
		}
		if result.HasMXRecords {
			parts = append(parts, "MX records present")
		}
		if result.IsKnownProvider {
			parts = append(parts, "known provider")
		}
		parts = append(parts, "not disposable")
		result.Details = strings.Join(parts, ", ")
	}

	return result
}

func (v *Validator) checkMX(ctx context.Context, domain string, result *Result) {
	ctx, cancel := context.WithTimeout(ctx, v.dnsTimeout)
	defer cancel()

	records, err := v.resolver.LookupMX(ctx, domain)
	if err != nil {
		switch {
		case isDNSNotFound(err):
			result.Details = "No MX records found for domain: " + domain
		case isTimeout(err):
			// Partial credit: the domain may be fine and DNS merely slow.
			result.Details = "DNS timeout for domain: " + domain
			result.Score += scoreMXTimeout
		default:
			result.Details = "DNS lookup error for " + domain + ": " + err.Error()
		}
		return
	}

	if len(records) == 0 {
		result.Details = "No MX records found for domain: " + domain
		return
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Pref < records[j].Pref })

	result.HasMXRecords = true
	result.Score += scoreMXRecords
	for _, mx := range records {
		result.MXRecords = append(result.MXRecords, strings.ToLower(strings.TrimSuffix(mx.Host, ".")))
	}

	for _, mx := range result.MXRecords {
		for _, provider := range knownProviders {
			if strings.Contains(mx, provider) {
				result.IsKnownProvider = true
				result.Score += scoreKnownProvider
				return
			}
		}
	}
}

func isDNSNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
