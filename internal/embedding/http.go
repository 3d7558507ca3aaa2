package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPProvider is a client for a self-hosted face embedding service
// (e.g. an InsightFace or dlib wrapper) exposing POST /embed-faces.
type HTTPProvider struct {
	baseURL string
	dim     int
	client  *http.Client
}

// NewHTTPProvider creates a provider for the service at baseURL. The timeout
// bounds the whole extraction call so a stuck model server cannot hang an
// ingestion task forever.
func NewHTTPProvider(baseURL string, dim int, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		dim:     dim,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) Name() string {
	return "face-http"
}

func (p *HTTPProvider) Dim() int {
	return p.dim
}

type embedResponse struct {
	Faces []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"faces"`
	Error string `json:"error,omitempty"`
}

// Extract posts the image to the embedding service and returns one vector
// per detected face.
func (p *HTTPProvider) Extract(ctx context.Context, imageData []byte) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embed-faces", bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling embedding service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}

	if resp.StatusCode == http.StatusUnprocessableEntity {
		// The service reports "no face found" as 422.
		return nil, ErrNoFaceDetected
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var parsed embedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("embedding service error: %s", parsed.Error)
	}

	vectors := make([][]float32, 0, len(parsed.Faces))
	for i, face := range parsed.Faces {
		if len(face.Embedding) != p.dim {
			return nil, fmt.Errorf("face %d: expected %d-dim embedding, got %d", i, p.dim, len(face.Embedding))
		}
		vectors = append(vectors, face.Embedding)
	}
	return vectors, nil
}
