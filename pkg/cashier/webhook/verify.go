package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"github.com/bgultekin/gocashier/pkg/cashier"
)

// SignatureHeader is the request header FastSpring signs batches with.
const SignatureHeader = "X-FS-Signature"

// Verify checks the base64-encoded HMAC-SHA256 signature of the exact raw
// request body. With no secret configured, verification is skipped and nil
// is returned. A mismatch returns ErrSecurityViolation, which rejects the
// whole batch before any event is processed.
//
// The comparison is constant-time (hmac.Equal).
func Verify(body []byte, signature string, secret []byte) error {
	if len(secret) == 0 {
		return nil
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	computed := []byte(base64.StdEncoding.EncodeToString(mac.Sum(nil)))

	if !hmac.Equal([]byte(signature), computed) {
		return cashier.ErrSecurityViolation
	}
	return nil
}
