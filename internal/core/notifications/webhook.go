package notifications

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureHeader = "X-Loyalty-Signature"
	EventHeader     = "X-Loyalty-Event"
	userAgent       = "Loyalty-Webhook/1.0"
)

// Sender posts signed JSON payloads to merchant endpoints.
//
// The signature header format is:
//
//	X-Loyalty-Signature: t={timestamp},v1={hex hmac-sha256(secret, "{timestamp}.{payload}")}
type Sender struct {
	client *http.Client
	secret string
	now    func() time.Time
}

func NewSender(secret string, timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Sender{
		// Don't let slow merchants block the worker.
		client: &http.Client{Timeout: timeout},
		secret: secret,
		now:    time.Now,
	}
}

// SendWebhook delivers payload to url. Any non-2xx answer is an error.
func (s *Sender) SendWebhook(ctx context.Context, url, event string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(EventHeader, event)
	if s.secret != "" {
		req.Header.Set(SignatureHeader, Sign(payload, s.secret, s.now().Unix()))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("merchant server returned error: %d", resp.StatusCode)
}

// Sign produces the signature header value for payload at timestamp.
func Sign(payload []byte, secret string, timestamp int64) string {
	return fmt.Sprintf("t=%d,v1=%s", timestamp, ComputeSignature(timestamp, payload, secret))
}

func ComputeSignature(timestamp int64, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a header produced by Sign. Merchants can use it to
// authenticate deliveries; tolerance bounds the accepted clock skew.
func VerifySignature(header string, payload []byte, secret string, now time.Time, tolerance time.Duration) error {
	var (
		timestamp int64
		sig       string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid timestamp: %w", err)
			}
			timestamp = ts
		case "v1":
			sig = v
		}
	}
	if timestamp == 0 || sig == "" {
		return fmt.Errorf("malformed signature header")
	}
	if tolerance > 0 {
		skew := now.Sub(time.Unix(timestamp, 0))
		if skew > tolerance || skew < -tolerance {
			return fmt.Errorf("signature timestamp outside tolerance")
		}
	}
	expected := ComputeSignature(timestamp, payload, secret)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
