package browser

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateTarget(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
		errMsg  string
	}{
		{name: "https article", url: "https://medium.com/@someone/some-article-95769403c43f"},
		{name: "http with port", url: "http://localhost:3000/article"},
		{name: "high port number", url: "http://localhost:49152"},
		{name: "uppercase scheme", url: "HTTPS://example.com/page"},

		{name: "empty", url: "", wantErr: true, errMsg: "empty"},
		{name: "no scheme", url: "example.com/page", wantErr: true, errMsg: "not allowed"},
		{name: "file scheme", url: "file:///etc/passwd", wantErr: true, errMsg: "not allowed"},
		{name: "javascript scheme", url: "javascript:alert(1)", wantErr: true, errMsg: "not allowed"},
		{name: "no host", url: "https:///path", wantErr: true, errMsg: "no host"},
		{name: "ssh port", url: "http://localhost:22", wantErr: true, errMsg: "port 22 is blocked"},
		{name: "redis port", url: "http://localhost:6379", wantErr: true, errMsg: "port 6379 is blocked"},
		{name: "port out of range", url: "http://localhost:0/page", wantErr: true, errMsg: "out of range"},
		{name: "invalid port", url: "http://localhost:abc/page", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTarget(tt.url)
			if !tt.wantErr {
				if err != nil {
					t.Errorf("ValidateTarget(%q) = %v, want nil", tt.url, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateTarget(%q) = nil, want error", tt.url)
			}
			if !errors.Is(err, ErrInvalidTarget) {
				t.Errorf("expected ErrInvalidTarget, got %v", err)
			}
			if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("ValidateTarget(%q) = %v, want error containing %q", tt.url, err, tt.errMsg)
			}
		})
	}
}
