package cloudevent

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSend(t *testing.T) {
	var gotType, gotSubject string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Ce-Type")
		gotSubject = r.Header.Get("Ce-Subject")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := NewSender(5 * time.Second)
	event := New("batch.job.completed", "icabatch", "sample1", "evt-1", map[string]any{"state": "Completed"})

	if err := s.Send(context.Background(), server.URL, event, SendOptions{}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if gotType != "batch.job.completed" {
		t.Errorf("Ce-Type = %q", gotType)
	}
	if gotSubject != "sample1" {
		t.Errorf("Ce-Subject = %q", gotSubject)
	}
}

func TestSendSignature(t *testing.T) {
	const key = "secret"
	var gotSig string
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature-256")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := NewSender(5 * time.Second)
	event := New("batch.job.failed", "icabatch", "sample2", "evt-2", nil)

	if err := s.Send(context.Background(), server.URL, event, SendOptions{SigningKey: key}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}
}

func TestSendErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	s := NewSender(5 * time.Second)
	err := s.Send(context.Background(), server.URL, New("t", "s", "sub", "id", nil), SendOptions{})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", httpErr.StatusCode)
	}
	if IsClientError(err) {
		t.Error("502 should not be a client error")
	}
}

func TestIsClientError(t *testing.T) {
	if !IsClientError(&HTTPError{StatusCode: 404}) {
		t.Error("404 should be a client error")
	}
	if IsClientError(&HTTPError{StatusCode: 500}) {
		t.Error("500 should not be a client error")
	}
	if IsClientError(errors.New("other")) {
		t.Error("non-HTTP errors should not be client errors")
	}
}
