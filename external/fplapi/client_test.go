package fplapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const bootstrapBody = `{
  "teams": [
    {"id": 1, "name": "Arsenal"},
    {"id": 2, "name": "Manchester City"}
  ],
  "elements": [
    {"first_name": "Bukayo", "second_name": "Saka", "web_name": "Saka",
     "team": 1, "element_type": 3, "now_cost": 102, "total_points": 84},
    {"first_name": "Erling", "second_name": "Haaland", "web_name": "Haaland",
     "team": 2, "element_type": 4, "now_cost": 151, "total_points": 120},
    {"first_name": "Third", "second_name": "Keeper", "web_name": "Keeper",
     "team": 1, "element_type": 1, "now_cost": 40, "total_points": 0}
  ]
}`

func TestFetchPlayersMapsAndFilters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != bootstrapStaticPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(bootstrapBody))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})
	client.now = func() time.Time {
		return time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	}

	rows, payloads, err := client.FetchPlayers(context.Background())
	if err != nil {
		t.Fatalf("FetchPlayers() error = %v", err)
	}

	// The pointless third-choice keeper is dropped.
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	saka := rows[0]
	if saka.RawPlayerName != "Bukayo Saka" || saka.RawTeamName != "Arsenal" {
		t.Fatalf("row = %+v", saka)
	}
	if saka.Price != 10.2 {
		t.Fatalf("price = %v, want now_cost/10 = 10.2", saka.Price)
	}
	if saka.Position != "MID" {
		t.Fatalf("position = %q, want MID", saka.Position)
	}
	wantAsOf := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !saka.AsOfDate.Equal(wantAsOf) {
		t.Fatalf("as-of date = %s, want start of day %s", saka.AsOfDate, wantAsOf)
	}

	haaland := rows[1]
	if haaland.Price != 15.1 || haaland.Position != "FWD" {
		t.Fatalf("row = %+v", haaland)
	}

	if len(payloads) != 1 {
		t.Fatalf("payloads = %d, want the archived response", len(payloads))
	}
	if payloads[0].EntityKey != bootstrapStaticPath {
		t.Fatalf("payload entity key = %s", payloads[0].EntityKey)
	}
}

func TestFetchPlayersRetriesServerErrors(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(bootstrapBody))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, MaxRetries: 2})
	rows, _, err := client.FetchPlayers(context.Background())
	if err != nil {
		t.Fatalf("FetchPlayers() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 after retry", len(rows))
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("server hits = %d, want 2", got)
	}
}
