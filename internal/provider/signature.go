package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SignCallback computes the HMAC-SHA256 signature a gateway attaches to its
// callback, over "intentID|status|amount|currency".
func SignCallback(secret string, payload *CallbackPayload) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s|%s|%s|%s", payload.IntentID, payload.Status, payload.Amount.String(), payload.Currency)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCallbackSignature checks the payload signature in constant time.
func VerifyCallbackSignature(secret string, payload *CallbackPayload) bool {
	expected := SignCallback(secret, payload)
	return hmac.Equal([]byte(expected), []byte(payload.Signature))
}
