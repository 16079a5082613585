package sponsoring

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"
)

func signStripePayload(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyStripeWebhookSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"invoice.paid"}`)
	secret := "whsec_test"
	ts := time.Now().Unix()

	header := fmt.Sprintf("t=%d,v1=%s", ts, signStripePayload(payload, secret, ts))
	if !VerifyStripeWebhookSignature(payload, header, secret, DefaultSignatureTolerance) {
		t.Fatalf("expected valid signature to verify")
	}

	if VerifyStripeWebhookSignature(payload, header, "whsec_other", DefaultSignatureTolerance) {
		t.Fatalf("expected wrong secret to fail")
	}

	tampered := append([]byte{}, payload...)
	tampered[0] = '['
	if VerifyStripeWebhookSignature(tampered, header, secret, DefaultSignatureTolerance) {
		t.Fatalf("expected tampered payload to fail")
	}
}

func TestVerifyStripeWebhookSignatureStaleTimestamp(t *testing.T) {
	payload := []byte(`{}`)
	secret := "whsec_test"
	old := time.Now().Add(-time.Hour).Unix()

	header := fmt.Sprintf("t=%d,v1=%s", old, signStripePayload(payload, secret, old))
	if VerifyStripeWebhookSignature(payload, header, secret, DefaultSignatureTolerance) {
		t.Fatalf("expected stale timestamp to fail")
	}
	// Zero tolerance disables the freshness check.
	if !VerifyStripeWebhookSignature(payload, header, secret, 0) {
		t.Fatalf("expected stale timestamp to pass without tolerance")
	}
}

func TestVerifyStripeWebhookSignatureSecondCandidate(t *testing.T) {
	payload := []byte(`{}`)
	secret := "whsec_test"
	ts := time.Now().Unix()

	header := fmt.Sprintf("t=%d,v1=%s,v1=%s", ts, "00ff00ff", signStripePayload(payload, secret, ts))
	if !VerifyStripeWebhookSignature(payload, header, secret, DefaultSignatureTolerance) {
		t.Fatalf("expected any matching v1 candidate to verify")
	}
}

func TestVerifyStripeWebhookSignatureMalformed(t *testing.T) {
	payload := []byte(`{}`)
	secret := "whsec_test"

	cases := []string{
		"",
		"v1=deadbeef",
		"t=notanumber,v1=deadbeef",
		fmt.Sprintf("t=%d", time.Now().Unix()),
		"t=0,v1=deadbeef",
	}
	for _, header := range cases {
		if VerifyStripeWebhookSignature(payload, header, secret, DefaultSignatureTolerance) {
			t.Fatalf("expected malformed header %q to fail", header)
		}
	}

	valid := fmt.Sprintf("t=%d,v1=%s", time.Now().Unix(), signStripePayload(payload, secret, time.Now().Unix()))
	if VerifyStripeWebhookSignature(payload, valid, "", DefaultSignatureTolerance) {
		t.Fatalf("expected empty secret to fail")
	}
}
