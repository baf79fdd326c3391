package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHistory_SendsFiltersAndReportsAPIError(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		if r.URL.Query().Get("status") == "maybe" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"type":"VALIDATION_ERROR","message":"status: unknown status \"maybe\""}}`))
			return
		}
		w.Write([]byte(`{"data":[{"id":2,"timestamp":"2025-08-18 12:00:01","ping_time":null,"status":"failed"}]}`))
	}))
	defer ts.Close()

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--addr", ts.URL, "history", "--limit", "all", "--status", "failed", "--end", "2025-08-18"})
	if err := root.Execute(); err != nil {
		t.Fatalf("history: %v", err)
	}
	for _, want := range []string{"limit=all", "status=failed", "endDate=2025-08-18", "page=1"} {
		if !strings.Contains(gotQuery, want) {
			t.Fatalf("query %q missing %q", gotQuery, want)
		}
	}

	root = newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--addr", ts.URL, "history", "--status", "maybe"})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "VALIDATION_ERROR") {
		t.Fatalf("expected API validation error, got %v", err)
	}
}

func TestOutages_PassesDuration(t *testing.T) {
	var gotMin string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMin = r.URL.Query().Get("min")
		w.Write([]byte(`{"outages":[]}`))
	}))
	defer ts.Close()

	root := newRootCmd()
	root.SetArgs([]string{"--addr", ts.URL, "outages", "--min", "90s", "-o", "json"})
	if err := root.Execute(); err != nil {
		t.Fatalf("outages: %v", err)
	}
	if gotMin != "1m30s" {
		t.Fatalf("min = %q", gotMin)
	}
}

func TestResultLatency(t *testing.T) {
	v := 12.3
	if got := (result{PingTime: &v}).latency(); got != "12.30ms" {
		t.Fatalf("latency = %q", got)
	}
	if got := (result{}).latency(); got != "-" {
		t.Fatalf("failure latency = %q", got)
	}
}
