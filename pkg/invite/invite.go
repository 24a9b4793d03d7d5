// Package invite derives shareable group invite tokens.
package invite

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const signatureLength = 8

// ErrMalformed is returned for tokens that cannot reference a group.
var ErrMalformed = errors.New("malformed invite token")

// Signer creates deterministic invite tokens of the form "<id>-<sig>".
// The signature only makes links harder to guess; it is not an access control.
type Signer struct {
	secret  []byte
	baseURL string
}

// NewSigner constructs a signer. baseURL is the client origin used for links.
func NewSigner(secret, baseURL string) *Signer {
	return &Signer{secret: []byte(secret), baseURL: strings.TrimRight(baseURL, "/")}
}

// Token returns the invite token for the group id.
func (s *Signer) Token(groupID int64) string {
	return fmt.Sprintf("%d-%s", groupID, s.sign(groupID))
}

// Link returns the client join link embedding the token.
func (s *Signer) Link(token string) string {
	if token == "" {
		return ""
	}
	return s.baseURL + "/join/" + token
}

// Parse extracts the group id from a token. A bare numeric id is accepted.
func (s *Signer) Parse(token string) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, ErrMalformed
	}
	if id, err := strconv.ParseInt(token, 10, 64); err == nil {
		if id <= 0 {
			return 0, ErrMalformed
		}
		return id, nil
	}

	idPart, signature, ok := strings.Cut(token, "-")
	if !ok {
		return 0, ErrMalformed
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrMalformed
	}
	if !hmac.Equal([]byte(s.sign(id)), []byte(signature)) {
		return 0, ErrMalformed
	}
	return id, nil
}

func (s *Signer) sign(groupID int64) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(strconv.FormatInt(groupID, 10)))
	return hex.EncodeToString(mac.Sum(nil))[:signatureLength]
}
