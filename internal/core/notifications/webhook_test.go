package notifications

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSendWebhookSignsPayload(t *testing.T) {
	const secret = "whsec_test"
	payload := []byte(`{"event":"points.issued"}`)
	fixed := time.Unix(1_700_000_000, 0)

	var (
		gotBody   []byte
		gotHeader string
		gotEvent  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Get(SignatureHeader)
		gotEvent = r.Header.Get(EventHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewSender(secret, time.Second)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.SendWebhook(context.Background(), srv.URL, "points.issued", payload))
	require.Equal(t, payload, gotBody)
	require.Equal(t, "points.issued", gotEvent)
	require.NoError(t, VerifySignature(gotHeader, gotBody, secret, fixed, time.Minute))
}

func TestSendWebhookRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewSender("", time.Second).SendWebhook(context.Background(), srv.URL, "points.redeemed", []byte(`{}`))
	require.ErrorContains(t, err, "502")
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"a":1}`)
	now := time.Unix(1_700_000_100, 0)
	header := Sign(payload, "s3cret", now.Unix())

	require.NoError(t, VerifySignature(header, payload, "s3cret", now, time.Minute))
	require.ErrorContains(t, VerifySignature(header, payload, "other", now, time.Minute), "mismatch")
	require.ErrorContains(t, VerifySignature(header, []byte(`{"a":2}`), "s3cret", now, time.Minute), "mismatch")
	require.ErrorContains(t, VerifySignature(header, payload, "s3cret", now.Add(time.Hour), time.Minute), "tolerance")
	require.ErrorContains(t, VerifySignature("garbage", payload, "s3cret", now, 0), "malformed")
}
