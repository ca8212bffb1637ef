package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"annotator/internal/config"
	"annotator/internal/dto"
	"annotator/internal/logger"
	"annotator/internal/model"
	"annotator/internal/repository/sqlite"
	"annotator/internal/service/lifecycle"
	"annotator/internal/service/palette"
	"annotator/internal/service/storage"
)

type stubRenderer struct {
	dir string
	n   int
}

func (s *stubRenderer) Render(ctx context.Context, basePath string, detections []model.Detection, overrides map[string]string) (string, error) {
	s.n++
	path := filepath.Join(s.dir, fmt.Sprintf("render-%d.jpeg", s.n))
	return path, os.WriteFile(path, []byte("jpeg"), 0644)
}

type stubDetector struct{}

func (stubDetector) Detect(ctx context.Context, imagePath string) ([]model.Detection, error) {
	return []model.Detection{
		{Class: "Caries", X: 100, Y: 100, Width: 30, Height: 30},
		{Class: "Calculus", X: 200, Y: 150, Width: 10, Height: 10},
	}, nil
}

type testServer struct {
	cfg     *config.Config
	log     *logger.Logger
	manager *lifecycle.Manager
	files   *storage.FileStore
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		UploadDirectory: filepath.Join(dir, "uploads"),
		RenderDirectory: filepath.Join(dir, "renders"),
		LogDirectory:    filepath.Join(dir, "logs"),
		ReferenceWidth:  480,
		ReferenceHeight: 400,
	}
	os.MkdirAll(cfg.RenderDirectory, 0755)

	log, err := logger.New(cfg.LogDirectory, "info")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	db, err := sqlite.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	files := storage.NewFileStore(cfg, log)
	manager := lifecycle.NewManager(cfg, sqlite.NewStore(db), &stubRenderer{dir: cfg.RenderDirectory},
		files, stubDetector{}, palette.Default(), nil, log)

	return &testServer{cfg: cfg, log: log, manager: manager, files: files}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func (s *testServer) create(t *testing.T) dto.PredictionData {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, _ := writer.CreateFormFile("image", "xray.png")
	part.Write(pngBytes(t, 960, 800))
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/predictions", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	PredictionsHandler(s.manager, s.files, s.log)(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var data dto.PredictionData
	var raw map[string]json.RawMessage
	json.Unmarshal(rec.Body.Bytes(), &raw)
	json.Unmarshal(raw["id"], &data.ID)
	json.Unmarshal(raw["labels"], &data.Labels)
	json.Unmarshal(raw["rendered_url"], &data.RenderedURL)
	return data
}

func do(h http.HandlerFunc, method, target string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func labelID(t *testing.T, data dto.PredictionData, name string) string {
	t.Helper()
	for _, l := range data.Labels {
		if l.Name == name {
			return l.ID
		}
	}
	t.Fatalf("Label %s not found", name)
	return ""
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("x: %w", model.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", model.ErrInvalidState), http.StatusConflict},
		{fmt.Errorf("x: %w", model.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("x: %w", model.ErrDecode), http.StatusUnprocessableEntity},
		{fmt.Errorf("x: %w", model.ErrIO), http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.status {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.status, got)
		}
	}
}

func TestCreateAndGetPrediction(t *testing.T) {
	s := setupTestServer(t)
	created := s.create(t)

	if len(created.Labels) != 2 || !strings.HasPrefix(created.RenderedURL, "/api/rendered?image=") {
		t.Fatalf("Unexpected create response: %+v", created)
	}

	rec := do(GetPredictionHandler(s.manager, s.log), http.MethodGet, "/api/predictions/get?id="+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["id"] != created.ID || len(body["detections"].([]interface{})) != 2 {
		t.Errorf("Unexpected get response: %v", body)
	}

	rec = do(PredictionsHandler(s.manager, s.files, s.log), http.MethodGet, "/api/predictions", "")
	var list []map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &list)
	if rec.Code != http.StatusOK || len(list) != 1 {
		t.Errorf("Expected one listed prediction, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreatePrediction_RejectsBadUploads(t *testing.T) {
	s := setupTestServer(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, _ := writer.CreateFormFile("image", "notes.txt")
	part.Write([]byte("hello"))
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/predictions", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	PredictionsHandler(s.manager, s.files, s.log)(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unsupported type, got %d", rec.Code)
	}

	body.Reset()
	writer = multipart.NewWriter(&body)
	part, _ = writer.CreateFormFile("image", "broken.png")
	part.Write([]byte("not a png"))
	writer.Close()

	req = httptest.NewRequest(http.MethodPost, "/api/predictions", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec = httptest.NewRecorder()
	PredictionsHandler(s.manager, s.files, s.log)(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for undecodable image, got %d", rec.Code)
	}
	if entries, _ := os.ReadDir(s.cfg.UploadDirectory); len(entries) != 0 {
		t.Errorf("Rejected upload should be removed, found %d files", len(entries))
	}
}

func TestLabelEndpoints(t *testing.T) {
	s := setupTestServer(t)
	created := s.create(t)
	caries := labelID(t, created, "Caries")

	rec := do(ExcludeLabelHandler(s.manager, s.log), http.MethodPost, "/api/labels/exclude?id="+caries, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Exclude: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(ExcludeLabelHandler(s.manager, s.log), http.MethodPost, "/api/labels/exclude?id="+caries, "")
	if rec.Code != http.StatusConflict {
		t.Errorf("Second exclude: expected 409, got %d", rec.Code)
	}
	var errBody map[string]string
	json.Unmarshal(rec.Body.Bytes(), &errBody)
	if errBody["error"] == "" {
		t.Error("Error responses should carry an error message")
	}

	rec = do(IncludeLabelHandler(s.manager, s.log), http.MethodPost, "/api/labels/include?id="+caries, "")
	if rec.Code != http.StatusOK {
		t.Errorf("Include: expected 200, got %d", rec.Code)
	}

	rec = do(RenameLabelHandler(s.manager, s.log), http.MethodPost, "/api/labels/rename?id="+caries,
		`{"name":"Cavity","color_hex":"#aa0000"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Rename: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var renamed dto.RenderData
	json.Unmarshal(rec.Body.Bytes(), &renamed)
	if renamed.Label == nil || renamed.Label.Name != "Cavity" || renamed.Label.ColorHex != "#AA0000" {
		t.Errorf("Unexpected rename response: %s", rec.Body.String())
	}

	rec = do(RenameLabelHandler(s.manager, s.log), http.MethodPost, "/api/labels/rename?id="+caries, `{"name":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Malformed JSON: expected 400, got %d", rec.Code)
	}

	rec = do(AddLabelHandler(s.manager, s.log), http.MethodPost, "/api/labels/add?prediction="+created.ID,
		`{"x":10,"y":20,"width":30,"height":40,"text":"Pulp","viewport_width":480,"viewport_height":400}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Add: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var added dto.RenderData
	json.Unmarshal(rec.Body.Bytes(), &added)
	if added.Label == nil || added.Label.Name != "Pulp" || added.Label.State != "ACTIVE" {
		t.Errorf("Unexpected add response: %s", rec.Body.String())
	}

	rec = do(ExcludeLabelHandler(s.manager, s.log), http.MethodPost, "/api/labels/exclude?id=missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Missing label: expected 404, got %d", rec.Code)
	}
	rec = do(ExcludeLabelHandler(s.manager, s.log), http.MethodGet, "/api/labels/exclude?id="+caries, "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET exclude: expected 405, got %d", rec.Code)
	}
}

func TestNotesFindingsResetDelete(t *testing.T) {
	s := setupTestServer(t)
	created := s.create(t)

	req := httptest.NewRequest(http.MethodPost, "/api/predictions/notes?id="+created.ID, strings.NewReader("notes=recheck+18"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	AddNotesHandler(s.manager, s.log)(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Notes: expected 200, got %d", rec.Code)
	}

	rec = do(FindingsHandler(s.manager, s.log), http.MethodGet, "/api/predictions/findings?id="+created.ID, "")
	var findings dto.FindingsData
	json.Unmarshal(rec.Body.Bytes(), &findings)
	if rec.Code != http.StatusOK || !strings.HasPrefix(findings.Findings, "Caries: 90.0% confidence") {
		t.Errorf("Unexpected findings %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(ResetPredictionHandler(s.manager, s.log), http.MethodPost, "/api/predictions/reset?id="+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Errorf("Reset: expected 200, got %d", rec.Code)
	}

	rec = do(DeletePredictionHandler(s.manager, s.log), http.MethodDelete, "/api/predictions/delete?id="+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Errorf("Delete: expected 200, got %d", rec.Code)
	}
	rec = do(GetPredictionHandler(s.manager, s.log), http.MethodGet, "/api/predictions/get?id="+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Get after delete: expected 404, got %d", rec.Code)
	}
}

func TestViewRenderedHandler(t *testing.T) {
	s := setupTestServer(t)
	os.WriteFile(filepath.Join(s.cfg.RenderDirectory, "a.jpeg"), []byte("jpeg-bytes"), 0644)

	rec := do(ViewRenderedHandler(s.files), http.MethodGet, "/api/rendered?image=a.jpeg", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "jpeg-bytes" {
		t.Errorf("Expected rendered bytes, got %d %q", rec.Code, rec.Body.String())
	}

	rec = do(ViewRenderedHandler(s.files), http.MethodGet, "/api/rendered?image=../test.db", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Traversal should not escape the render directory, got %d", rec.Code)
	}

	rec = do(ViewRenderedHandler(s.files), http.MethodGet, "/api/rendered", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without image, got %d", rec.Code)
	}
}

func TestLogsHandlers(t *testing.T) {
	s := setupTestServer(t)
	s.log.Info("hello from test")

	rec := do(ShowLogsHandler(s.cfg, "info"), http.MethodGet, "/logs/info", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "hello from test") {
		t.Errorf("Expected info log content, got %d %q", rec.Code, rec.Body.String())
	}

	rec = do(ClearLogsHandler(s.log, "warning"), http.MethodPost, "/logs/warning/clear", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
}

func TestLoginLogout(t *testing.T) {
	s := setupTestServer(t)
	s.cfg.Password = "pw"

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("password=pw"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	LoginHandler(s.cfg, s.log)(rec, req)
	if rec.Code != http.StatusSeeOther || len(rec.Result().Cookies()) != 1 {
		t.Errorf("Expected redirect with cookie, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("password=wrong"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	LoginHandler(s.cfg, s.log)(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	LogoutHandler(rec, httptest.NewRequest(http.MethodGet, "/auth/logout", nil))
	if c := rec.Result().Cookies(); len(c) != 1 || c[0].MaxAge >= 0 {
		t.Errorf("Logout should expire the cookie, got %+v", c)
	}
}
