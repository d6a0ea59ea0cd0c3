package mcp

import (
	"bytes"
	"net/http"
	"testing"
	"time"
)

func signedRequest(t *testing.T, secret []byte, ts, nonce string, body []byte) *http.Request {
	t.Helper()
	req, _ := http.NewRequest("POST", "http://example.invalid/mcp", bytes.NewReader(body))
	req.Header.Set(headerClientID, "agent_1")
	req.Header.Set(headerTS, ts)
	req.Header.Set(headerNonce, nonce)
	req.Header.Set(headerSignature, signHMAC(secret, canonicalString(ts, "POST", "/mcp", "agent_1", nonce, body)))
	return req
}

func TestHMAC_SignAndVerify(t *testing.T) {
	secret := []byte("topsecret")
	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"list_tools"}`)
	req := signedRequest(t, secret, "1700000000000", "n1", body)

	vr := verifyHMAC(req, body, secret, time.UnixMilli(1700000000000))
	if vr.HTTPStatus != 0 {
		t.Fatalf("expected ok, got status=%d msg=%s", vr.HTTPStatus, vr.Message)
	}
	if vr.ClientID != "agent_1" {
		t.Fatalf("client id mismatch: %q", vr.ClientID)
	}

	vr = verifyHMAC(req, []byte(`{"tampered":true}`), secret, time.UnixMilli(1700000000000))
	if vr.HTTPStatus != http.StatusUnauthorized || vr.Message != "bad signature" {
		t.Fatalf("tampered body: %+v", vr)
	}
}

func TestHMAC_Verify_Expired(t *testing.T) {
	secret := []byte("topsecret")
	body := []byte(`{"jsonrpc":"2.0"}`)
	req := signedRequest(t, secret, "1700000000000", "n1", body)

	vr := verifyHMAC(req, body, secret, time.UnixMilli(1700000000000+301_000))
	if vr.HTTPStatus != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", vr.HTTPStatus)
	}
}

func TestHMAC_Verify_MissingNonce(t *testing.T) {
	secret := []byte("topsecret")
	body := []byte(`{}`)
	req := signedRequest(t, secret, "1700000000000", "n1", body)
	req.Header.Del(headerNonce)

	vr := verifyHMAC(req, body, secret, time.UnixMilli(1700000000000))
	if vr.HTTPStatus != http.StatusUnauthorized || vr.Message != "missing x-nonce" {
		t.Fatalf("got %+v", vr)
	}
}
