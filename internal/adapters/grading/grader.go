// Package grading assigns quality grades to crop photos. With no model
// endpoint configured it degrades to a deterministic heuristic so listings
// still get a stable grade in demos and tests.
package grading

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Grades from best to worst
var grades = []string{"A", "B", "C"}

// HeuristicGrader implements order.ImageGrader. When Endpoint is set, the
// image URL is posted to the external grading model; otherwise the grade is
// derived from a digest of the URL, so the same photo always grades the same.
type HeuristicGrader struct {
	endpoint string
	client   *http.Client
}

// NewHeuristicGrader creates a grader. An empty endpoint selects the
// deterministic fallback.
func NewHeuristicGrader(endpoint string) *HeuristicGrader {
	return &HeuristicGrader{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type gradeResponse struct {
	Grade      string  `json:"grade"`
	Confidence float64 `json:"confidence"`
}

// Grade returns a quality grade and model confidence for the photo
func (g *HeuristicGrader) Grade(ctx context.Context, imageURL string) (string, float64, error) {
	if imageURL == "" {
		return "", 0, fmt.Errorf("empty image url")
	}
	if g.endpoint == "" {
		return g.heuristic(imageURL)
	}

	body, err := json.Marshal(map[string]string{"image_url": imageURL})
	if err != nil {
		return "", 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("grading request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("grading model returned status %d", resp.StatusCode)
	}

	var parsed gradeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", 0, fmt.Errorf("decode grading response: %w", err)
	}
	return parsed.Grade, parsed.Confidence, nil
}

// heuristic derives a stable pseudo-grade from the URL digest
func (g *HeuristicGrader) heuristic(imageURL string) (string, float64, error) {
	sum := sha256.Sum256([]byte(imageURL))
	grade := grades[int(sum[0])%len(grades)]
	confidence := 0.70 + float64(sum[1])/255*0.25
	return grade, confidence, nil
}
