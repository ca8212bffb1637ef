package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                int
	Password            string
	APIToken            string
	DatabasePath        string
	UploadDirectory     string
	RenderDirectory     string
	LogDirectory        string
	LogLevel            string
	ReferenceWidth      int // Viewport width the client draws manual regions in
	ReferenceHeight     int // Viewport height the client draws manual regions in
	JPEGQuality         int
	MaxRenderDetections int
	ThumbnailWidth      int
	InferenceBackend    string // "remote" or "dnn"
	InferenceURL        string
	InferenceAPIKey     string
	InferenceTimeout    int // seconds
	ModelPath           string
	ConfigPath          string
	ClassNamesPath      string
	DetectionThreshold  float64
}

// Load reads the configuration from the environment. Values from a .env
// file in the working directory are applied first when the file exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:                getEnvAsInt("PORT", 8080),
		Password:            getEnv("PASSWORD", "radiograph"),
		APIToken:            getEnv("API_TOKEN", ""),
		DatabasePath:        getEnv("DATABASE_PATH", filepath.Join(".", "data", "annotator.db")),
		UploadDirectory:     getEnv("UPLOAD_DIR", filepath.Join(".", "uploads")),
		RenderDirectory:     getEnv("RENDER_DIR", filepath.Join(".", "uploads", "analyzed")),
		LogDirectory:        getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		ReferenceWidth:      getEnvAsInt("REFERENCE_WIDTH", 480),
		ReferenceHeight:     getEnvAsInt("REFERENCE_HEIGHT", 400),
		JPEGQuality:         getEnvAsInt("JPEG_QUALITY", 98),
		MaxRenderDetections: getEnvAsInt("MAX_RENDER_DETECTIONS", 500),
		ThumbnailWidth:      getEnvAsInt("THUMBNAIL_WIDTH", 320),
		InferenceBackend:    getEnv("INFERENCE_BACKEND", "remote"),
		InferenceURL:        getEnv("INFERENCE_URL", "https://detect.roboflow.com/stage-1-launch/1"),
		InferenceAPIKey:     getEnv("INFERENCE_API_KEY", ""),
		InferenceTimeout:    getEnvAsInt("INFERENCE_TIMEOUT", 60),
		ModelPath:           getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ConfigPath:          getEnv("CONFIG_PATH", filepath.Join(".", "models", "graph.pbtxt")),
		ClassNamesPath:      getEnv("CLASS_NAMES_PATH", ""),
		DetectionThreshold:  getEnvAsFloat("DETECTION_THRESHOLD", 0.5),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
