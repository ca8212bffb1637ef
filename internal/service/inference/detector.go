// Package inference produces detections for a source radiograph, either from
// a hosted segmentation model or from a local OpenCV DNN network.
package inference

import (
	"context"
	"fmt"
	"strings"

	"annotator/internal/config"
	"annotator/internal/logger"
	"annotator/internal/model"
)

// Detector runs a model over the image at imagePath.
type Detector interface {
	Detect(ctx context.Context, imagePath string) ([]model.Detection, error)
}

// New returns the detector selected by INFERENCE_BACKEND.
func New(config *config.Config, logger *logger.Logger) (Detector, error) {
	switch strings.ToLower(config.InferenceBackend) {
	case "", "remote":
		return NewRemoteClient(config, logger), nil
	case "dnn":
		return NewDNNDetector(config, logger)
	default:
		return nil, fmt.Errorf("unknown inference backend %q", config.InferenceBackend)
	}
}
