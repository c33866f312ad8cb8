package emailval

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResolver serves canned MX answers per domain.
type fakeResolver struct {
	records map[string][]*net.MX
	err     error
}

func (f *fakeResolver) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	if f.err != nil {
		return nil, f.err
	}
	records, ok := f.records[domain]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: domain, IsNotFound: true}
	}
	return records, nil
}

func newTestValidator(resolver Resolver) *Validator {
	return NewValidatorWithResolver(resolver, time.Second)
}

func TestValidate_BadFormatScoresZero(t *testing.T) {
	v := newTestValidator(&fakeResolver{})

	for _, email := range []string{"not-an-email", "a@b@c", "@missing.local", "user@", ""} {
		result := v.Validate(context.Background(), email)

		assert.Equal(t, 0, result.Score, "email %q", email)
		assert.False(t, result.IsValid)
		assert.False(t, result.FormatValid)
		assert.Equal(t, "Invalid email format", result.Details)
	}
}

func TestValidate_DisposableDomainStopsAtFormatCredit(t *testing.T) {
	// MX lookup must not even run for a disposable domain.
	v := newTestValidator(&fakeResolver{err: context.DeadlineExceeded})

	result := v.Validate(context.Background(), "user@mailinator.com")

	assert.Equal(t, 20, result.Score)
	assert.False(t, result.IsValid)
	assert.True(t, result.FormatValid)
	assert.True(t, result.IsDisposable)
	assert.Contains(t, result.Details, "Disposable email domain")
}

func TestValidate_KnownProviderScoresFull(t *testing.T) {
	v := newTestValidator(&fakeResolver{records: map[string][]*net.MX{
		"gmail.com": {
			{Host: "alt1.gmail-smtp-in.l.GOOGLE.com.", Pref: 10},
			{Host: "gmail-smtp-in.l.google.com.", Pref: 5},
		},
	}})

	result := v.Validate(context.Background(), "user@gmail.com")

	assert.Equal(t, 100, result.Score)
	assert.True(t, result.IsValid)
	assert.True(t, result.HasMXRecords)
	assert.True(t, result.IsKnownProvider)
	// Sorted by preference, lowercased, trailing dot stripped
	require.Len(t, result.MXRecords, 2)
	assert.Equal(t, "gmail-smtp-in.l.google.com", result.MXRecords[0])
	assert.Equal(t, "alt1.gmail-smtp-in.l.google.com", result.MXRecords[1])
}

func TestValidate_UnknownProviderMX(t *testing.T) {
	v := newTestValidator(&fakeResolver{records: map[string][]*net.MX{
		"example.com": {{Host: "mx.example.com.", Pref: 10}},
	}})

	result := v.Validate(context.Background(), "user@example.com")

	assert.Equal(t, 80, result.Score)
	assert.True(t, result.IsValid)
	assert.True(t, result.HasMXRecords)
	assert.False(t, result.IsKnownProvider)
}

func TestValidate_NoMXRecordsStillValid(t *testing.T) {
	v := newTestValidator(&fakeResolver{})

	result := v.Validate(context.Background(), "user@no-mx.example")

	// Format plus not-disposable reaches the validity floor.
	assert.Equal(t, 40, result.Score)
	assert.True(t, result.IsValid)
	assert.False(t, result.HasMXRecords)
	assert.Contains(t, result.Details, "No MX records found")
}

func TestValidate_DNSTimeoutGetsPartialCredit(t *testing.T) {
	v := newTestValidator(&fakeResolver{err: &net.DNSError{
		Err: "i/o timeout", Name: "slow.example", IsTimeout: true,
	}})

	result := v.Validate(context.Background(), "user@slow.example")

	assert.Equal(t, 50, result.Score)
	assert.True(t, result.IsValid)
	assert.False(t, result.HasMXRecords)
	assert.Contains(t, result.Details, "DNS timeout")
}

func TestValidate_DNSServerFailure(t *testing.T) {
	v := newTestValidator(&fakeResolver{err: &net.DNSError{
		Err: "server misbehaving", Name: "flaky.example",
	}})

	result := v.Validate(context.Background(), "user@flaky.example")

	assert.Equal(t, 40, result.Score)
	assert.True(t, result.IsValid)
	assert.Contains(t, result.Details, "DNS lookup error")
}

func TestValidate_DomainCaseInsensitive(t *testing.T) {
	v := newTestValidator(&fakeResolver{err: context.DeadlineExceeded})

	result := v.Validate(context.Background(), "user@MAILINATOR.com")

	assert.True(t, result.IsDisposable)
	assert.Equal(t, 20, result.Score)
}
