package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"annotator/internal/config"
	"annotator/internal/logger"
	"annotator/internal/model"
)

// RemoteClient posts images to a hosted segmentation model.
type RemoteClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *logger.Logger
}

type remoteResponse struct {
	Predictions []model.Detection `json:"predictions"`
}

// NewRemoteClient creates a client for the configured inference endpoint.
func NewRemoteClient(config *config.Config, logger *logger.Logger) *RemoteClient {
	return &RemoteClient{
		endpoint: config.InferenceURL,
		apiKey:   config.InferenceAPIKey,
		client:   &http.Client{Timeout: time.Duration(config.InferenceTimeout) * time.Second},
		logger:   logger,
	}
}

// Detect uploads the image as multipart field "file" and decodes the
// returned predictions.
func (c *RemoteClient) Detect(ctx context.Context, imagePath string) ([]model.Detection, error) {
	body, contentType, err := multipartImage(imagePath)
	if err != nil {
		return nil, err
	}

	target, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid inference url: %v", err)
	}
	query := target.Query()
	if c.apiKey != "" {
		query.Set("api_key", c.apiKey)
	}
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("inference returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var result remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode inference response: %v", err)
	}

	c.logger.Info("Inference on %s returned %d detections in %v", filepath.Base(imagePath), len(result.Predictions), time.Since(start))
	return result.Predictions, nil
}

func multipartImage(imagePath string) (*bytes.Buffer, string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", model.ErrDecode, err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}
