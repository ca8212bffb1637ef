package inference

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"annotator/internal/config"
	"annotator/internal/logger"
	"annotator/internal/model"
)

func setupTestClient(t *testing.T, handler http.HandlerFunc) (*RemoteClient, string) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	dir := t.TempDir()
	log, err := logger.New(filepath.Join(dir, "logs"), "error")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	cfg := &config.Config{InferenceURL: server.URL + "/model/1", InferenceAPIKey: "secret", InferenceTimeout: 5}

	image := filepath.Join(dir, "xray.png")
	if err := os.WriteFile(image, []byte("fake image bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	return NewRemoteClient(cfg, log), image
}

func TestRemoteClient_Detect(t *testing.T) {
	client, image := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/model/1" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "secret" {
			t.Errorf("Missing api_key, got %q", r.URL.RawQuery)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Missing multipart file: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		if string(data) != "fake image bytes" || header.Filename != "xray.png" {
			t.Errorf("Unexpected upload %q (%s)", data, header.Filename)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"predictions":[
			{"class":"Caries","x":120,"y":80,"width":30,"height":20,"confidence":0.93,
			 "points":[{"x":105,"y":70},{"x":135,"y":70},{"x":135,"y":90}]},
			{"class":"Calculus","x":10,"y":10,"width":4,"height":4}
		]}`))
	})

	detections, err := client.Detect(context.Background(), image)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(detections) != 2 {
		t.Fatalf("Expected 2 detections, got %d", len(detections))
	}
	if d := detections[0]; d.Class != "Caries" || d.X != 120 || d.Confidence == nil || *d.Confidence != 0.93 || !d.HasPolygon() {
		t.Errorf("Unexpected first detection: %+v", d)
	}
	if d := detections[1]; d.Confidence != nil || d.HasPolygon() {
		t.Errorf("Optional fields should stay empty: %+v", d)
	}
}

func TestRemoteClient_ServerError(t *testing.T) {
	client, image := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	if _, err := client.Detect(context.Background(), image); err == nil {
		t.Error("Expected error for non-200 response")
	}
}

func TestRemoteClient_BadJSON(t *testing.T) {
	client, image := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	})

	if _, err := client.Detect(context.Background(), image); err == nil {
		t.Error("Expected decode error")
	}
}

func TestRemoteClient_MissingImage(t *testing.T) {
	client, _ := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("No request expected")
	})

	if _, err := client.Detect(context.Background(), "/nonexistent.png"); !errors.Is(err, model.ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
}

func TestLoadClassNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.txt")
	os.WriteFile(path, []byte("background\nCaries\n Calculus \n"), 0644)

	names, err := loadClassNames(path)
	if err != nil {
		t.Fatalf("loadClassNames failed: %v", err)
	}
	d := &DNNDetector{classNames: names}
	if d.className(1) != "Caries" || d.className(2) != "Calculus" || d.className(7) != "class7" {
		t.Errorf("Unexpected names: %v", names)
	}
	if names, err := loadClassNames(""); err != nil || names != nil {
		t.Errorf("Empty path should yield no names, got %v, %v", names, err)
	}
}
