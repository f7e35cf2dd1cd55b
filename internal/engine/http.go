package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	pathGenerateSpeech = "/v1/generate/speech"
	pathHealth         = "/health"

	contentTypeJSON = "application/json"
	contentTypeWAV  = "audio/wav"

	defaultTemperature = 0.75
	defaultTimeout     = 5 * time.Minute

	// cap on how much of an error body ends up in the error message
	maxErrorBody = 4 << 10
)

// HTTPConfig configures the HTTP synthesis backend
type HTTPConfig struct {
	BaseURL     string
	Timeout     time.Duration
	Temperature float64
}

// HTTPEngine calls a synthesis service over HTTP and stores the returned WAV on disk
type HTTPEngine struct {
	baseURL     string
	temperature float64
	client      *http.Client
	logger      *slog.Logger
}

var errEmptyAudio = errors.New("received empty audio data")

type speechRequest struct {
	Text           string  `json:"text"`
	SpeakerRefPath string  `json:"speaker_ref_path,omitempty"`
	Language       string  `json:"language"`
	Temperature    float64 `json:"temperature"`
}

type errorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewHTTPEngine creates an engine for the service at cfg.BaseURL
func NewHTTPEngine(cfg HTTPConfig, logger *slog.Logger) *HTTPEngine {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	return &HTTPEngine{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		temperature: temperature,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// Open fails fast when the service is not reachable or reports unhealthy
func (e *HTTPEngine) Open(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+pathHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for synthesis service at %s: %w", e.baseURL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("synthesis service at %s is unhealthy: %s", e.baseURL, resp.Status)
	}

	e.logger.Info("Synthesis engine ready", slog.String("base_url", e.baseURL))
	return nil
}

// Close releases pooled connections
func (e *HTTPEngine) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// Synthesize requests speech for req.Text and writes it to req.OutputPath
func (e *HTTPEngine) Synthesize(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", errors.New("text cannot be empty")
	}
	if req.OutputPath == "" {
		return "", errors.New("output path cannot be empty")
	}

	body, err := json.Marshal(speechRequest{
		Text:           req.Text,
		SpeakerRefPath: req.ReferenceAudio,
		Language:       req.Language,
		Temperature:    e.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+pathGenerateSpeech, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentTypeJSON)
	httpReq.Header.Set("Accept", contentTypeWAV)

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request to synthesis service at %s: %w", e.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", parseErrorResponse(resp)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != contentTypeWAV {
		return "", fmt.Errorf("unexpected content type: expected %s, got %q", contentTypeWAV, resp.Header.Get("Content-Type"))
	}

	written, err := writeAtomic(req.OutputPath, resp.Body)
	if err != nil {
		return "", err
	}

	e.logger.Debug("Synthesized segment",
		slog.String("output", req.OutputPath),
		slog.Int("text_length", len([]rune(req.Text))),
		slog.Int64("bytes", written),
		slog.Duration("duration", time.Since(start)),
	)

	return req.OutputPath, nil
}

func parseErrorResponse(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var er errorResponse
	if err := json.Unmarshal(data, &er); err == nil && er.Detail != "" {
		if er.ErrorCode != "" {
			return fmt.Errorf("synthesis service error (%s): %s (code: %s)", resp.Status, er.Detail, er.ErrorCode)
		}
		return fmt.Errorf("synthesis service error (%s): %s", resp.Status, er.Detail)
	}
	return fmt.Errorf("synthesis service returned non-OK status: %s, body: %s", resp.Status, strings.TrimSpace(string(data)))
}

// writeAtomic streams r into a temp file next to path and renames it into place
func writeAtomic(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return 0, fmt.Errorf("failed to read audio data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("failed to write audio data: %w", err)
	}
	if n == 0 {
		os.Remove(tmpName)
		return 0, errEmptyAudio
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("failed to move audio into place: %w", err)
	}
	return n, nil
}
