package inference

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"annotator/internal/config"
	"annotator/internal/logger"
	"annotator/internal/model"

	"gocv.io/x/gocv"
)

// Network input size and normalization for SSD-style graphs.
const (
	inputSize  = 300
	inputScale = 1.0 / 127.5
	inputMean  = 127.5
)

// DNNDetector runs a local OpenCV DNN network. Forward passes are
// serialized because a gocv.Net is not safe for concurrent use.
type DNNDetector struct {
	mutex      sync.Mutex
	net        gocv.Net
	classNames []string
	threshold  float64
	logger     *logger.Logger
}

// NewDNNDetector loads the model and config files and the optional class
// names file.
func NewDNNDetector(config *config.Config, logger *logger.Logger) (*DNNDetector, error) {
	if _, err := os.Stat(config.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", config.ModelPath)
	}
	if _, err := os.Stat(config.ConfigPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", config.ConfigPath)
	}

	names, err := loadClassNames(config.ClassNamesPath)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNet(config.ModelPath, config.ConfigPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network")
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	logger.Info("Detection network initialized with %d class names", len(names))
	return &DNNDetector{
		net:        net,
		classNames: names,
		threshold:  config.DetectionThreshold,
		logger:     logger,
	}, nil
}

// Detect runs the network and converts corner boxes above the threshold
// into center-based detections.
func (d *DNNDetector) Detect(ctx context.Context, imagePath string) ([]model.Detection, error) {
	mat := gocv.IMRead(imagePath, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("%w: %s", model.ErrDecode, imagePath)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blob := gocv.BlobFromImage(mat, inputScale, image.Pt(inputSize, inputSize),
		gocv.NewScalar(inputMean, inputMean, inputMean, 0), true, false)
	defer blob.Close()

	d.mutex.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mutex.Unlock()
	defer output.Close()

	cols, rows := float64(mat.Cols()), float64(mat.Rows())

	// Rows are [batch_id, class_id, confidence, x1, y1, x2, y2] in relative units.
	reshaped := output.Reshape(1, output.Total()/7)
	defer reshaped.Close()

	var results []model.Detection
	for i := 0; i < reshaped.Rows(); i++ {
		confidence := float64(reshaped.GetFloatAt(i, 2))
		if confidence <= d.threshold {
			continue
		}
		x1 := float64(reshaped.GetFloatAt(i, 3)) * cols
		y1 := float64(reshaped.GetFloatAt(i, 4)) * rows
		x2 := float64(reshaped.GetFloatAt(i, 5)) * cols
		y2 := float64(reshaped.GetFloatAt(i, 6)) * rows

		c := confidence
		results = append(results, model.Detection{
			Class:      d.className(int(reshaped.GetFloatAt(i, 1))),
			X:          (x1 + x2) / 2,
			Y:          (y1 + y2) / 2,
			Width:      x2 - x1,
			Height:     y2 - y1,
			Confidence: &c,
		})
	}

	d.logger.Info("DNN found %d detections in %s", len(results), imagePath)
	return results, nil
}

// Close releases the network.
func (d *DNNDetector) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.net.Close()
}

func (d *DNNDetector) className(classID int) string {
	if classID >= 0 && classID < len(d.classNames) && d.classNames[classID] != "" {
		return d.classNames[classID]
	}
	return fmt.Sprintf("class%d", classID)
}

// loadClassNames reads one class name per line; line n names class id n.
func loadClassNames(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open class names: %v", err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		names = append(names, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read class names: %v", err)
	}
	return names, nil
}
