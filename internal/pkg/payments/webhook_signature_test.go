package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
)

func signManifest(dataID, requestID, ts, secret string) string {
	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, requestID, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "top-secret"
	dataID := "12345"
	requestID := "req-abc"
	ts := "1704908010"

	header := fmt.Sprintf("ts=%s,v1=%s", ts, signManifest(dataID, requestID, ts, secret))
	if !VerifyWebhookSignature(header, requestID, dataID, secret) {
		t.Fatalf("expected signature to validate")
	}

	// Header values may carry spaces around the separators.
	spaced := fmt.Sprintf("ts=%s, v1=%s", ts, signManifest(dataID, requestID, ts, secret))
	if !VerifyWebhookSignature(spaced, requestID, dataID, secret) {
		t.Fatalf("expected spaced signature header to validate")
	}

	if VerifyWebhookSignature(header, requestID, "99999", secret) {
		t.Fatalf("expected signature for different data id to fail")
	}
	if VerifyWebhookSignature(header, requestID, dataID, "other-secret") {
		t.Fatalf("expected signature with wrong secret to fail")
	}
	if VerifyWebhookSignature("ts=1,v1=deadbeef", requestID, dataID, secret) {
		t.Fatalf("expected invalid signature to fail")
	}
	if VerifyWebhookSignature("", requestID, dataID, secret) {
		t.Fatalf("expected empty header to fail")
	}
	if VerifyWebhookSignature(header, requestID, dataID, "") {
		t.Fatalf("expected empty secret to fail")
	}
}

func TestVerifyWebhookSignatureUppercaseDataID(t *testing.T) {
	// The manifest uses the lowercased data id, per the gateway docs.
	secret := "s3cret"
	header := fmt.Sprintf("ts=%s,v1=%s", "17", signManifest("abc123", "r1", "17", secret))
	if !VerifyWebhookSignature(header, "r1", "ABC123", secret) {
		t.Fatalf("expected uppercase data id to validate against lowercased manifest")
	}
}
