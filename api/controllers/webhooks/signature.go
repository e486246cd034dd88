package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	pkgerrors "github.com/duchuyngn/muaban-backend/pkg/errors"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body,
// keyed with the shared webhook secret.
const SignatureHeader = "X-Muaban-Signature"

// readSignedBody consumes the request body and rejects the call unless the
// signature header matches.
func readSignedBody(r *http.Request, secret string) ([]byte, error) {
	if secret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook secret not configured")
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body")
	}

	sig := strings.TrimSpace(r.Header.Get(SignatureHeader))
	if sig == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature missing")
	}
	if !validSignature(payload, secret, sig) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature")
	}
	return payload, nil
}

func validSignature(payload []byte, secret, provided string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(provided)))
}

// Sign computes the signature a caller must send for the given payload.
// Exposed for tests and for the docs examples.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
