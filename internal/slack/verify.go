package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// MaxRequestAge is how far a signed request timestamp may drift from now.
const MaxRequestAge = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("slack: missing signature headers")
	ErrStaleRequest     = errors.New("slack: request timestamp outside the allowed window")
	ErrBadSignature     = errors.New("slack: signature mismatch")
)

// Verifier checks the v0 request signature Slack attaches to event callbacks.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier returns a Verifier for the app's signing secret.
func NewVerifier(signingSecret string) *Verifier {
	return &Verifier{secret: []byte(signingSecret), now: time.Now}
}

// Verify checks body against the X-Slack-Request-Timestamp and
// X-Slack-Signature headers.
func (v *Verifier) Verify(header http.Header, body []byte) error {
	tsHeader := header.Get("X-Slack-Request-Timestamp")
	sig := header.Get("X-Slack-Signature")
	if tsHeader == "" || sig == "" {
		return ErrMissingSignature
	}
	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return ErrMissingSignature
	}
	age := v.now().Sub(time.Unix(ts, 0))
	if age > MaxRequestAge || age < -MaxRequestAge {
		return ErrStaleRequest
	}
	if !hmac.Equal([]byte(sig), []byte(Sign(v.secret, tsHeader, body))) {
		return ErrBadSignature
	}
	return nil
}

// Sign computes the v0 signature for a timestamp and body.
func Sign(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}
