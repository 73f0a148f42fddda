package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	longLocal := strings.Repeat("a", MaxLocalPartLength)
	// 63 + 1 + 63 + 1 + 57 + 1 + 3 = 189 characters
	longHost := strings.Repeat("b", 63) + "." + strings.Repeat("c", 63) + "." + strings.Repeat("d", 57) + ".org"

	tests := []struct {
		name    string
		email   string
		wantErr error
	}{
		{"Valid email", "test@example.com", nil},
		{"Valid email with subdomain", "user@mail.example.com", nil},
		{"Valid email with dots", "user.name@example.com", nil},
		{"Valid email with plus", "user+tag@example.com", nil},
		{"Valid punycode TLD", "user@example.xn--p1ai", nil},
		{"Valid punycode label", "user@xn--bcher-kva.example", nil},
		{"Valid 64 character local part", longLocal + "@example.org", nil},
		{"Valid 254 characters", longLocal + "@" + longHost, nil},
		{"Invalid - no @", "testexample.com", ErrInvalidEmailFormat},
		{"Invalid - no domain", "test@", ErrInvalidEmailFormat},
		{"Invalid - no local part", "@example.com", ErrInvalidEmailFormat},
		{"Invalid - multiple @", "test@@example.com", ErrInvalidEmailFormat},
		{"Invalid - empty", "", ErrInvalidEmailFormat},
		{"Invalid - spaces", "test @example.com", ErrInvalidEmailFormat},
		{"Invalid - leading dot", ".user@example.com", ErrInvalidEmailFormat},
		{"Invalid - double dot", "user..name@example.com", ErrInvalidEmailFormat},
		{"Invalid - single letter TLD", "user@example.c", ErrInvalidEmailFormat},
		{"Invalid - bare punycode prefix", "user@example.xn--", ErrInvalidEmailFormat},
		{"Invalid - no dot in host", "user@localhost", ErrInvalidEmailFormat},
		{"Invalid - 65 character local part", longLocal + "a@example.org", ErrInvalidEmailFormat},
		{"Too long - 255 characters", longLocal + "@" + longHost + "x", ErrEmailTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrInvalidEmailFormat)
		})
	}

	require.Len(t, longLocal+"@"+longHost, MaxEmailLength)
}

func TestValidateDomainName(t *testing.T) {
	tests := []struct {
		name  string
		fqdn  string
		valid bool
	}{
		{"Valid domain", "example.org", true},
		{"Valid subdomain", "mail.example.org", true},
		{"Valid hyphen", "my-site.example.org", true},
		{"Valid punycode TLD", "example.xn--p1ai", true},
		{"Invalid - empty", "", false},
		{"Invalid - single label", "localhost", false},
		{"Invalid - leading hyphen", "-bad.org", false},
		{"Invalid - trailing hyphen", "bad-.org", false},
		{"Invalid - numeric TLD", "example.123", false},
		{"Invalid - uppercase", "Example.org", false},
		{"Invalid - too long", strings.Repeat("a.", 127) + "org", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDomainName(tt.fqdn)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidDomain)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		valid    bool
	}{
		{"Valid username", "john", true},
		{"Valid with digits and punctuation", "john_doe-1", true},
		{"Valid maximum length", strings.Repeat("a", MaxLocalPartLength), true},
		{"Invalid - empty", "", false},
		{"Invalid - dot", "john.doe", false},
		{"Invalid - plus", "john+tag", false},
		{"Invalid - too long", strings.Repeat("a", MaxLocalPartLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidUsername)
				assert.ErrorIs(t, err, ErrInvalidEmailFormat)
			}
		})
	}
}

func TestSplitEmail(t *testing.T) {
	username, fqdn, err := SplitEmail("  Alice@Example.ORG ")
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
	assert.Equal(t, "example.org", fqdn)

	username, fqdn, err = SplitEmail("john.doe@mail.example.xn--p1ai")
	require.NoError(t, err)
	assert.Equal(t, "john.doe", username)
	assert.Equal(t, "mail.example.xn--p1ai", fqdn)

	for _, bad := range []string{"", "alice", "alice@", "a@b@example.org", "alice@example"} {
		_, _, err := SplitEmail(bad)
		assert.ErrorIs(t, err, ErrInvalidEmailFormat, bad)
	}

	_, _, err = SplitEmail(strings.Repeat("a", 250) + "@example.org")
	assert.ErrorIs(t, err, ErrEmailTooLong)
}
