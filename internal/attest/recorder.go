// File: internal/attest/recorder.go
// Description: Optional fix-attestation recorder. Posts an audit record of
// each applied fix to an external endpoint. Failures are logged and
// swallowed; attestation must never influence the healing loop.
package attest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/mendbot/api/schemas"
	"github.com/xkilldash9x/mendbot/internal/config"
)

const defaultTimeout = 10 * time.Second

// Recorder implements schemas.AttestationRecorder against an HTTP endpoint.
// A disabled recorder is a valid value and records nothing.
type Recorder struct {
	cfg    config.AttestationConfig
	client *http.Client
	logger *zap.Logger
}

// NewRecorder builds the recorder from configuration. When the feature is
// disabled the returned recorder is a no-op.
func NewRecorder(cfg config.AttestationConfig, logger *zap.Logger) *Recorder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Recorder{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger.Named("attest"),
	}
}

// attestResponse is the subset of the endpoint's reply we care about.
type attestResponse struct {
	ID          string `json:"id"`
	ExplorerURL string `json:"explorer_url"`
}

// RecordFix implements schemas.AttestationRecorder.
func (r *Recorder) RecordFix(ctx context.Context, a schemas.FixAttestation) schemas.AttestationResult {
	if !r.cfg.Enabled {
		return schemas.AttestationResult{}
	}

	result, err := r.post(ctx, a)
	if err != nil {
		r.logger.Warn("Fix attestation failed.",
			zap.String("session_id", a.SessionID),
			zap.String("file", a.FilePath),
			zap.Error(err))
		return schemas.AttestationResult{}
	}

	r.logger.Info("Fix attested.",
		zap.String("session_id", a.SessionID),
		zap.String("attestation_id", result.AttestationID))
	return result
}

func (r *Recorder) post(ctx context.Context, a schemas.FixAttestation) (schemas.AttestationResult, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return schemas.AttestationResult{}, fmt.Errorf("could not marshal attestation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return schemas.AttestationResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return schemas.AttestationResult{}, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return schemas.AttestationResult{}, fmt.Errorf("attestation endpoint returned %d: %s", resp.StatusCode, raw)
	}

	var parsed attestResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// A 2xx with an unparseable body still counts as recorded.
		return schemas.AttestationResult{Success: true}, nil
	}
	return schemas.AttestationResult{
		Success:       true,
		AttestationID: parsed.ID,
		ExplorerURL:   parsed.ExplorerURL,
	}, nil
}
