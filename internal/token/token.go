// Package token implements the signed capability token a suspended user
// presents to open and follow an appeal without a login session.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const purposeAppealToken = "appeal-token"

// Codec issues and verifies appeal tokens of the form
// "<subjectId>-<hex HMAC-SHA-256>". Tokens carry no expiry: the capability
// stays valid for as long as the subject id and the secret do.
type Codec struct {
	secret []byte
}

// NewCodec derives a purpose-scoped secret from the root secret, so a leaked
// appeal-token secret exposes neither the root nor other purposes' tokens.
func NewCodec(rootSecret string) *Codec {
	return &Codec{secret: deriveSecret(rootSecret, purposeAppealToken)}
}

func deriveSecret(rootSecret, purpose string) []byte {
	mac := hmac.New(sha256.New, []byte(rootSecret))
	mac.Write([]byte(purpose))
	return mac.Sum(nil)
}

func (c *Codec) Issue(subjectID string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(subjectID))
	return subjectID + "-" + hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the expected token for the embedded subject id and
// compares in constant time. Malformed input yields (false, ""), never an
// error.
func (c *Codec) Verify(token string) (bool, string) {
	idx := strings.Index(token, "-")
	if idx <= 0 {
		return false, ""
	}
	subjectID := token[:idx]
	expected := c.Issue(subjectID)
	if !hmac.Equal([]byte(token), []byte(expected)) {
		return false, ""
	}
	return true, subjectID
}
