// File: internal/attest/recorder_test.go
package attest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/mendbot/api/schemas"
	"github.com/xkilldash9x/mendbot/internal/config"
)

func sampleAttestation() schemas.FixAttestation {
	return schemas.FixAttestation{
		SessionID:       "s-1",
		BugCategory:     "LOGIC",
		FilePath:        "src/calc.js",
		Line:            14,
		ErrorMessage:    "expected 4 got 0",
		FixDescription:  "fixed off-by-one",
		TestAfterPassed: true,
		CommitSHA:       "abc123",
	}
}

func TestRecordFixDisabledIsNoOp(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer ts.Close()

	r := NewRecorder(config.AttestationConfig{Enabled: false, Endpoint: ts.URL}, zaptest.NewLogger(t))
	res := r.RecordFix(context.Background(), sampleAttestation())

	assert.False(t, res.Success)
	assert.False(t, called, "disabled recorder must not call the endpoint")
}

func TestRecordFixPostsAttestation(t *testing.T) {
	var got schemas.FixAttestation
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		auth = req.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":           "att-42",
			"explorer_url": "https://ledger.example.com/att-42",
		})
	}))
	defer ts.Close()

	r := NewRecorder(config.AttestationConfig{Enabled: true, Endpoint: ts.URL, APIKey: "secret"}, zaptest.NewLogger(t))
	res := r.RecordFix(context.Background(), sampleAttestation())

	assert.True(t, res.Success)
	assert.Equal(t, "att-42", res.AttestationID)
	assert.Equal(t, "https://ledger.example.com/att-42", res.ExplorerURL)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "s-1", got.SessionID)
	assert.Equal(t, "src/calc.js", got.FilePath)
}

func TestRecordFixServerErrorIsSwallowed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer ts.Close()

	r := NewRecorder(config.AttestationConfig{Enabled: true, Endpoint: ts.URL}, zaptest.NewLogger(t))
	res := r.RecordFix(context.Background(), sampleAttestation())
	assert.False(t, res.Success)
}

func TestRecordFixUnreachableEndpointIsSwallowed(t *testing.T) {
	r := NewRecorder(config.AttestationConfig{Enabled: true, Endpoint: "http://127.0.0.1:1"}, zaptest.NewLogger(t))
	res := r.RecordFix(context.Background(), sampleAttestation())
	assert.False(t, res.Success)
}

func TestRecordFixUnparseableBodyStillCounts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("recorded, thanks"))
	}))
	defer ts.Close()

	r := NewRecorder(config.AttestationConfig{Enabled: true, Endpoint: ts.URL}, zaptest.NewLogger(t))
	res := r.RecordFix(context.Background(), sampleAttestation())

	assert.True(t, res.Success)
	assert.Empty(t, res.AttestationID)
}
