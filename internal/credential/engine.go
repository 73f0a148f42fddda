// Package credential derives and verifies the salted SHA-1 mailbox digests read by
// the external IMAP service.
//
// The stored digest is
//
//	base64( sha1(password || salt) || salt )
//
// where password and salt are encoded as ISO-8859-1 bytes. Dovecot reads the same
// value with the {SSHA} scheme prefix.
package credential

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"

	"golang.org/x/text/encoding/charmap"

	"vmail/backend/internal/domain"
)

const (
	// DefaultSaltLength is the salt length, in characters, of the reference scheme.
	DefaultSaltLength = 96

	// SchemePrefix is the Dovecot password scheme for this digest format.
	SchemePrefix = "{SSHA}"

	// SaltAlphabet is ASCII letters, digits and punctuation.
	SaltAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ" +
		"0123456789" +
		"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

// Config holds the tunables of an Engine.
type Config struct {
	SaltLength int
}

// Credential is the (salt, digest) pair persisted on a MailUser.
type Credential struct {
	Salt   string
	Digest string
}

// Engine generates and verifies credentials. It performs no I/O and is safe for
// concurrent use.
type Engine struct {
	saltLength int
	alphabet   string
	max        *big.Int
}

// NewEngine creates an Engine. A non-positive salt length falls back to DefaultSaltLength.
func NewEngine(cfg Config) *Engine {
	n := cfg.SaltLength
	if n <= 0 {
		n = DefaultSaltLength
	}
	return &Engine{
		saltLength: n,
		alphabet:   SaltAlphabet,
		max:        big.NewInt(int64(len(SaltAlphabet))),
	}
}

// SaltLength returns the number of characters in generated salts.
func (e *Engine) SaltLength() int {
	return e.saltLength
}

// GenerateCredential draws a fresh salt and derives the digest of raw with it.
func (e *Engine) GenerateCredential(raw string) (Credential, error) {
	pw, err := encodeLatin1(raw)
	if err != nil {
		return Credential{}, err
	}

	salt, err := e.newSalt()
	if err != nil {
		return Credential{}, err
	}

	// The salt alphabet is pure ASCII, so its bytes are its Latin-1 encoding.
	return Credential{
		Salt:   salt,
		Digest: digest(pw, []byte(salt)),
	}, nil
}

// VerifyCredential recomputes the digest of raw with the stored salt and compares it
// with expected. A mailbox without a stored digest never verifies.
func (e *Engine) VerifyCredential(raw, salt, expected string) (bool, error) {
	if expected == "" {
		return false, nil
	}
	pw, err := encodeLatin1(raw)
	if err != nil {
		return false, err
	}
	s, err := encodeLatin1(salt)
	if err != nil {
		return false, err
	}
	got := digest(pw, s)
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1, nil
}

// DovecotScheme returns the passdb representation of a stored digest.
func DovecotScheme(digest string) string {
	return SchemePrefix + digest
}

func (e *Engine) newSalt() (string, error) {
	buf := make([]byte, e.saltLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, e.max)
		if err != nil {
			return "", fmt.Errorf("generate salt: %w", err)
		}
		buf[i] = e.alphabet[n.Int64()]
	}
	return string(buf), nil
}

func digest(password, salt []byte) string {
	h := sha1.New()
	h.Write(password)
	h.Write(salt)
	sum := h.Sum(nil)

	combined := make([]byte, 0, len(sum)+len(salt))
	combined = append(combined, sum...)
	combined = append(combined, salt...)
	return base64.StdEncoding.EncodeToString(combined)
}

// encodeLatin1 converts s to ISO-8859-1. The error deliberately omits the input.
func encodeLatin1(s string) ([]byte, error) {
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, domain.ErrEncoding
	}
	return b, nil
}
