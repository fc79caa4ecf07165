// Package testhelpers provides reusable testing utilities for EditGroups.
//
// This package contains:
// - HTTP test helpers (creating requests, asserting on responses)
// - Test database and tool registry setup
// - Builders for raw edit records and stored models
// - Edit scenarios reproducing real tool batches
// - Assertion helpers
package testhelpers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/editgroups/editgroups/internal/database"
	"github.com/editgroups/editgroups/internal/registry"
)

// ========================================
// HTTP Test Helpers
// ========================================

// HTTPTestContext holds components for HTTP handler testing
type HTTPTestContext struct {
	T        *testing.T
	Recorder *httptest.ResponseRecorder
	Request  *http.Request
}

// NewHTTPTestContext creates a new HTTP test context
func NewHTTPTestContext(t *testing.T, method, path string, body io.Reader) *HTTPTestContext {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	return &HTTPTestContext{
		T:        t,
		Recorder: httptest.NewRecorder(),
		Request:  req,
	}
}

// WithHeader adds a header to the request
func (ctx *HTTPTestContext) WithHeader(key, value string) *HTTPTestContext {
	ctx.Request.Header.Set(key, value)
	return ctx
}

// Execute runs the handler and returns the response
func (ctx *HTTPTestContext) Execute(handler http.Handler) *HTTPTestContext {
	handler.ServeHTTP(ctx.Recorder, ctx.Request)
	return ctx
}

// AssertStatus checks the response status code
func (ctx *HTTPTestContext) AssertStatus(expected int) *HTTPTestContext {
	ctx.T.Helper()
	if ctx.Recorder.Code != expected {
		ctx.T.Errorf("expected status %d, got %d. Body: %s", expected, ctx.Recorder.Code, ctx.Recorder.Body.String())
	}
	return ctx
}

// AssertBodyContains checks if response body contains substring
func (ctx *HTTPTestContext) AssertBodyContains(substr string) *HTTPTestContext {
	ctx.T.Helper()
	body := ctx.Recorder.Body.String()
	if !strings.Contains(body, substr) {
		ctx.T.Errorf("expected body to contain %q, got: %s", substr, body)
	}
	return ctx
}

// AssertHeader checks response header value
func (ctx *HTTPTestContext) AssertHeader(key, expected string) *HTTPTestContext {
	ctx.T.Helper()
	got := ctx.Recorder.Header().Get(key)
	if got != expected {
		ctx.T.Errorf("expected header %s=%q, got %q", key, expected, got)
	}
	return ctx
}

// DecodeJSON decodes response body as JSON
func (ctx *HTTPTestContext) DecodeJSON(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	if err := json.NewDecoder(ctx.Recorder.Body).Decode(v); err != nil {
		ctx.T.Fatalf("failed to decode JSON response: %v", err)
	}
	return ctx
}

// ========================================
// Database and Registry Helpers
// ========================================

// NewTestDB opens a migrated in-memory SQLite database, closed when the test ends.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(":memory:", logger.Silent)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// SeedTools stores tools and returns them with their database ids.
func SeedTools(t *testing.T, db *gorm.DB, tools []database.Tool) []database.Tool {
	t.Helper()

	seeded := make([]database.Tool, len(tools))
	copy(seeded, tools)
	for i := range seeded {
		if err := db.Create(&seeded[i]).Error; err != nil {
			t.Fatalf("failed to create tool %s: %v", seeded[i].ShortID, err)
		}
	}
	return seeded
}

// LoadTools loads the tool definitions shipped in tools.yaml at the
// repository root. Tools get ids following their position.
func LoadTools(t *testing.T) []database.Tool {
	t.Helper()

	paths := []string{
		"tools.yaml",
		filepath.Join("..", "tools.yaml"),
		filepath.Join("..", "..", "tools.yaml"),
		filepath.Join("..", "..", "..", "tools.yaml"),
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		tools, err := registry.LoadFile(p)
		if err != nil {
			t.Fatalf("failed to load %s: %v", p, err)
		}
		for i := range tools {
			tools[i].ID = uint(i + 1)
		}
		return tools
	}

	t.Fatalf("tools.yaml not found")
	return nil
}

// NewRegistry builds a registry from tools.
func NewRegistry(t *testing.T, tools []database.Tool) *registry.Registry {
	t.Helper()

	reg, err := registry.New(tools)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return reg
}

// ========================================
// File Helpers
// ========================================

// WriteTestFile writes content to a file in a per-test temporary directory
// and returns its path.
func WriteTestFile(t *testing.T, filename, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), filename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

// ========================================
// Assertion Helpers
// ========================================

// AssertEqual checks equality with a helpful error message
func AssertEqual(t *testing.T, expected, actual interface{}, msg string) {
	t.Helper()
	if expected != actual {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertTimeEqual checks that two instants are the same
func AssertTimeEqual(t *testing.T, expected, actual time.Time, msg string) {
	t.Helper()
	if !expected.Equal(actual) {
		t.Errorf("%s: expected %v, got %v", msg, expected.UTC(), actual.UTC())
	}
}

// ========================================
// Timing Helpers
// ========================================

// MustCompleteWithin fails the test if the function takes longer than the timeout
func MustCompleteWithin(t *testing.T, timeout time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(timeout):
		t.Fatalf("function did not complete within %v", timeout)
	}
}
