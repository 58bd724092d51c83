package webhook

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// maxReceiverBody bounds how much of an inbound request body is read for
// verification.
const maxReceiverBody = 1 << 20

// VerifyRequestBody verifies the X-Signature header of an inbound delivery
// against the request body and the receiver's secret set. Verification
// failure is terminal for the request — there is nothing to retry on the
// receiving side.
func VerifyRequestBody(secrets []string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	return VerifyAny(secrets, payload, signature)
}

// RequireSignature wraps an inbound webhook endpoint, rejecting requests
// whose X-Signature does not verify against the current secret set. secrets
// is a func so rotations take effect without re-wiring the handler.
func RequireSignature(secrets func() []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxReceiverBody))
		if err != nil {
			http.Error(w, "unreadable body", http.StatusBadRequest)
			return
		}
		r.Body.Close()

		if !VerifyRequestBody(secrets(), body, r.Header.Get(HeaderSignature)) {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}
