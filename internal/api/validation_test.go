package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestValidate_BatchListQuery(t *testing.T) {
	tests := []struct {
		name  string
		query BatchListQuery
		want  map[string]string
	}{
		{"empty", BatchListQuery{}, nil},
		{"valid", BatchListQuery{Tool: "QSv2", User: "Pintoch", Tag: "lang-zh-hans"}, nil},
		{"user with spaces", BatchListQuery{User: "Some User"}, nil},
		{"tool with slash", BatchListQuery{Tool: "OR/x"}, map[string]string{"tool": "must contain only letters and digits"}},
		{"tool too long", BatchListQuery{Tool: strings.Repeat("a", 33)}, map[string]string{"tool": "must be at most 32 characters"}},
		{"user with link syntax", BatchListQuery{User: "[[User:X|X]]"}, map[string]string{"user": "contains forbidden characters"}},
		{"tag too long", BatchListQuery{Tag: strings.Repeat("t", 129)}, map[string]string{"tag": "must be at most 128 characters"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.query)
			if len(errs) != len(tt.want) {
				t.Fatalf("errors = %v, want %v", errs, tt.want)
			}
			for field, msg := range tt.want {
				if errs[field] != msg {
					t.Errorf("%s error = %q, want %q", field, errs[field], msg)
				}
			}
		})
	}
}

func TestValidate_BatchPath(t *testing.T) {
	if errs := Validate(BatchPath{Tool: "OR", UID: "ca7d7cc"}); errs != nil {
		t.Errorf("expected no errors, got %v", errs)
	}

	errs := Validate(BatchPath{Tool: "", UID: "a.b"})
	if errs["tool"] != "is required" {
		t.Errorf("tool error = %q, want %q", errs["tool"], "is required")
	}
	if errs["uid"] != "must contain only letters and digits" {
		t.Errorf("uid error = %q", errs["uid"])
	}
}

func TestParseBatchListQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/batches?tool=OR&user=Pintoch&tag=lang-fr&page=2", nil)
	q := ParseBatchListQuery(r)

	if q.Tool != "OR" || q.User != "Pintoch" || q.Tag != "lang-fr" {
		t.Errorf("unexpected query %+v", q)
	}
	f := q.Filter()
	if f.Tool != "OR" || f.User != "Pintoch" || f.Tag != "lang-fr" {
		t.Errorf("unexpected filter %+v", f)
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Tool", "tool"},
		{"PerPage", "per_page"},
		{"UID", "uid"},
		{"NbEdits", "nb_edits"},
		{"simple", "simple"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := toSnakeCase(tt.input); got != tt.expected {
			t.Errorf("toSnakeCase(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
