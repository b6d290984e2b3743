package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSafeClient_Timeout(t *testing.T) {
	client := NewOutboundGuard().NewSafeClient(5 * time.Second)
	if client.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport")
	}
}

// httptestサーバーは127.0.0.1の平文HTTPで起動されるため拒否される。
func TestNewSafeClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewOutboundGuard().NewSafeClient(5 * time.Second)
	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestValidateEndpoint(t *testing.T) {
	guard := NewOutboundGuard()

	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://api.resend.com", false},
		{"https://oauth2.googleapis.com/token", false},
		{"", true},
		{"http://api.resend.com", true},
		{"ftp://example.com", true},
		{"https://", true},
		{"https://localhost/emails", true},
		{"https://127.0.0.1/emails", true},
		{"https://10.0.0.5/emails", true},
		{"https://192.168.1.1/emails", true},
		{"https://169.254.169.254/latest/meta-data/", true},
		{"https://[::1]/emails", true},
		{"https://0.0.0.0/emails", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := guard.ValidateEndpoint(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEndpoint(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}
