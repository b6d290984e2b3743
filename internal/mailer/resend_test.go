package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestResendClient_Send_PostsPayloadWithBearer(t *testing.T) {
	var got Message
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/emails" {
			t.Errorf("request = %s %s, want POST /emails", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer re_test_key" {
			t.Errorf("Authorization = %q", auth)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"email-1"}`))
	}))
	defer ts.Close()

	client := NewResendClient("re_test_key", ts.URL+"/", ts.Client())
	err := client.Send(context.Background(), &Message{
		From:    "財務諮詢系統 <onboarding@resend.dev>",
		To:      []string{"amy@example.com"},
		Subject: "您的諮詢申請已收到",
		HTML:    "<p>hi</p>",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if got.From != "財務諮詢系統 <onboarding@resend.dev>" {
		t.Errorf("from = %q", got.From)
	}
	if len(got.To) != 1 || got.To[0] != "amy@example.com" {
		t.Errorf("to = %v", got.To)
	}
	if got.Subject != "您的諮詢申請已收到" || got.HTML != "<p>hi</p>" {
		t.Errorf("subject/html = %q / %q", got.Subject, got.HTML)
	}
}

func TestResendClient_Send_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer ts.Close()

	client := NewResendClient("key", ts.URL, ts.Client())
	err := client.Send(context.Background(), &Message{To: []string{"a@example.com"}})
	if err == nil {
		t.Fatal("expected error for 422 response")
	}
	if !strings.Contains(err.Error(), "422") || !strings.Contains(err.Error(), "invalid from") {
		t.Errorf("error = %v", err)
	}
}

func TestResendClient_Send_NoRecipients(t *testing.T) {
	client := NewResendClient("key", "", nil)
	if err := client.Send(context.Background(), &Message{}); err == nil {
		t.Fatal("expected error for empty recipients")
	}
}
