package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := AuthMiddleware("s3cret", ok)

	tests := []struct {
		name   string
		path   string
		setup  func(r *http.Request)
		status int
	}{
		{"public login page", "/login", nil, http.StatusOK},
		{"static asset", "/static/app.js", nil, http.StatusOK},
		{"api without credentials", "/api/predictions", nil, http.StatusUnauthorized},
		{"page without credentials", "/index", nil, http.StatusSeeOther},
		{"cookie", "/api/predictions", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "authenticated", Value: "true"})
		}, http.StatusOK},
		{"bearer token", "/api/predictions", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer s3cret")
		}, http.StatusOK},
		{"wrong token", "/api/predictions", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer nope")
		}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.setup != nil {
				tt.setup(req)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestAuthMiddleware_EmptyTokenDisablesBearer(t *testing.T) {
	handler := AuthMiddleware("", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/predictions", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}
