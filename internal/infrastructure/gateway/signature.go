package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// signatureTolerance is how far a webhook timestamp may drift from our
// clock before the delivery is treated as a replay
const signatureTolerance = 5 * time.Minute

// computeSignature returns the hex HMAC-SHA256 of timestamp.payload
func computeSignature(timestamp string, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// verifySignature checks the timestamped HMAC-SHA256 signature in
// constant time and rejects deliveries outside the replay tolerance
func verifySignature(timestamp string, payload []byte, signature, secret string) error {
	if signature == "" {
		return fmt.Errorf("missing webhook signature")
	}
	if timestamp == "" {
		return fmt.Errorf("missing webhook timestamp")
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed webhook timestamp: %w", err)
	}
	if drift := time.Since(time.Unix(ts, 0)); drift > signatureTolerance || drift < -signatureTolerance {
		return fmt.Errorf("webhook timestamp outside tolerance")
	}
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("malformed webhook signature: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	if !hmac.Equal(expected, mac.Sum(nil)) {
		return fmt.Errorf("webhook signature mismatch")
	}
	return nil
}
