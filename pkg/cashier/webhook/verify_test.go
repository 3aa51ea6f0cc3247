package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bgultekin/gocashier/pkg/cashier"
)

func sign(body, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifySkippedWithoutSecret(t *testing.T) {
	assert.NoError(t, Verify([]byte(`{"events":[]}`), "", nil))
	assert.NoError(t, Verify([]byte(`{"events":[]}`), "whatever", nil))
}

func TestVerifyValidSignature(t *testing.T) {
	body := []byte(`{"events":[{"id":"ev-1"}]}`)
	secret := []byte("webhook-secret")
	assert.NoError(t, Verify(body, sign(body, secret), secret))
}

func TestVerifyRejectsMismatch(t *testing.T) {
	body := []byte(`{"events":[{"id":"ev-1"}]}`)
	secret := []byte("webhook-secret")

	err := Verify(body, sign(body, []byte("wrong-secret")), secret)
	assert.ErrorIs(t, err, cashier.ErrSecurityViolation)

	err = Verify(body, "", secret)
	assert.ErrorIs(t, err, cashier.ErrSecurityViolation)

	// A signature over a different body must not verify.
	err = Verify([]byte(`{"events":[]}`), sign(body, secret), secret)
	assert.ErrorIs(t, err, cashier.ErrSecurityViolation)
}
