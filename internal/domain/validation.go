package domain

import (
	"regexp"
	"strings"
)

// RFC 5321 length limits.
const (
	MaxEmailLength     = 254
	MaxLocalPartLength = 64
	MaxDomainLength    = 253
)

var (
	// dot-atom local part
	localPartRegex = regexp.MustCompile("^[-!#$%&'*+/=?^_`{}|~0-9a-z]+(\\.[-!#$%&'*+/=?^_`{}|~0-9a-z]+)*$")

	// at least one dot, labels of letters/digits/hyphens, alphabetic or punycode TLD
	domainRegex = regexp.MustCompile(`^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+(?:[a-z]{2,63}|xn--[a-z0-9-]{1,59})$`)

	usernameRegex = regexp.MustCompile(`^[-a-z0-9_]+$`)
)

// NormalizeAddress trims surrounding whitespace and lower-cases s.
func NormalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateDomainName checks a lower-cased fqdn.
func ValidateDomainName(fqdn string) error {
	if fqdn == "" || len(fqdn) > MaxDomainLength {
		return ErrInvalidDomain
	}
	if !domainRegex.MatchString(fqdn) {
		return ErrInvalidDomain
	}
	return nil
}

// ValidateUsername checks a lower-cased mailbox local part against the slug charset.
func ValidateUsername(username string) error {
	if username == "" || len(username) > MaxLocalPartLength {
		return ErrInvalidUsername
	}
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidateEmail checks the general syntax of a normalized address.
func ValidateEmail(email string) error {
	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ErrInvalidEmailFormat
	}
	local, host := email[:at], email[at+1:]
	if len(local) > MaxLocalPartLength || !localPartRegex.MatchString(local) {
		return ErrInvalidEmailFormat
	}
	if err := ValidateDomainName(host); err != nil {
		return ErrInvalidEmailFormat
	}
	return nil
}

// SplitEmail normalizes and validates email, then returns its trimmed local part and fqdn.
func SplitEmail(email string) (username, fqdn string, err error) {
	email = NormalizeAddress(email)
	if err := ValidateEmail(email); err != nil {
		return "", "", err
	}
	at := strings.LastIndex(email, "@")
	return strings.TrimSpace(email[:at]), strings.TrimSpace(email[at+1:]), nil
}

// Normalize lower-cases the fqdn and validates it. It runs before every write.
func (d *Domain) Normalize() error {
	d.Fqdn = NormalizeAddress(d.Fqdn)
	return ValidateDomainName(d.Fqdn)
}

// Normalize lower-cases the username and validates it. It runs before every write.
func (u *MailUser) Normalize() error {
	u.Username = NormalizeAddress(u.Username)
	return ValidateUsername(u.Username)
}

// Normalize lower-cases both endpoints. The destination must be a full address;
// the source is left syntactically loose so catch-alls and bare local parts fit.
func (a *Alias) Normalize() error {
	a.Source = NormalizeAddress(a.Source)
	a.Destination = NormalizeAddress(a.Destination)
	return ValidateEmail(a.Destination)
}
