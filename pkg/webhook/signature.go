package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	HeaderSignature = "X-Pulse-Signature"
	HeaderTimestamp = "X-Pulse-Timestamp"
	HeaderDelivery  = "X-Pulse-Delivery"
)

// Signature is the HMAC-SHA256 of "<timestamp>.<payload>".
type Signature struct {
	Value      string
	Timestamp  int64
	DeliveryID string
}

// Apply sets the signature headers on h.
func (s Signature) Apply(h http.Header) {
	h.Set(HeaderSignature, s.Value)
	h.Set(HeaderTimestamp, strconv.FormatInt(s.Timestamp, 10))
	h.Set(HeaderDelivery, s.DeliveryID)
}

// Sign signs payload at now.
func Sign(secret string, payload []byte, now time.Time) (Signature, error) {
	if secret == "" {
		return Signature{}, ErrNoSecret
	}
	if len(payload) == 0 {
		return Signature{}, fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	ts := now.Unix()
	return Signature{
		Value:      mac(secret, ts, payload),
		Timestamp:  ts,
		DeliveryID: uuid.New().String(),
	}, nil
}

// ParseSignature reads the signature headers.
func ParseSignature(h http.Header) (Signature, error) {
	sig := Signature{Value: h.Get(HeaderSignature), DeliveryID: h.Get(HeaderDelivery)}
	ts := h.Get(HeaderTimestamp)
	if sig.Value == "" || ts == "" {
		return Signature{}, fmt.Errorf("%w: missing signature headers", ErrInvalidSignature)
	}
	var err error
	if sig.Timestamp, err = strconv.ParseInt(ts, 10, 64); err != nil {
		return Signature{}, fmt.Errorf("%w: invalid timestamp", ErrInvalidSignature)
	}
	return sig, nil
}

// Verify checks sig against payload. A positive maxAge also rejects stale
// or future timestamps.
func Verify(secret string, payload []byte, sig Signature, maxAge time.Duration, now time.Time) error {
	if secret == "" {
		return ErrNoSecret
	}
	if maxAge > 0 {
		age := now.Sub(time.Unix(sig.Timestamp, 0))
		if age > maxAge || age < -time.Minute {
			return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
		}
	}
	if !hmac.Equal([]byte(mac(secret, sig.Timestamp, payload)), []byte(sig.Value)) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}
	return nil
}

func mac(secret string, ts int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = fmt.Fprintf(h, "%d.", ts)
	_, _ = h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
