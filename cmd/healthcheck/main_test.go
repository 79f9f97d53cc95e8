package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"ready", http.StatusOK, `{"status":"ready","database":"connected"}`, ""},
		{"database down", http.StatusServiceUnavailable, `{"status":"not ready","reason":"database unavailable"}`, "database unavailable"},
		{"ok without ready status", http.StatusOK, `{"status":"starting"}`, "starting"},
		{"not json", http.StatusOK, `ok`, "decode body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/readyz", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := probe(srv.Client(), srv.URL+"/readyz")
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestProbe_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	require.Error(t, probe(http.DefaultClient, url+"/readyz"))
}
