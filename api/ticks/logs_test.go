package ticks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kilianp07/trafficgrid/core/charging"
	"github.com/kilianp07/trafficgrid/core/ticklog"
)

type memStore struct {
	recs []ticklog.Record
	err  error
}

func (m *memStore) Append(ctx context.Context, r ticklog.Record) error {
	m.recs = append(m.recs, r)
	return nil
}

func (m *memStore) Query(ctx context.Context, q ticklog.Query) ([]ticklog.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	var res []ticklog.Record
	for _, r := range m.recs {
		if q.Matches(r) {
			res = append(res, r)
		}
	}
	return res, nil
}

func (m *memStore) Close() error { return nil }

func seeded() *memStore {
	t0 := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	store := &memStore{}
	_ = store.Append(context.Background(), ticklog.Record{RunID: "a", Tick: 1, Timestamp: t0})
	_ = store.Append(context.Background(), ticklog.Record{
		RunID: "a", Tick: 2, Timestamp: t0.Add(time.Minute),
		Sessions: []charging.Session{{ID: "s1", StationID: "st1", VehicleID: "ev1"}},
	})
	_ = store.Append(context.Background(), ticklog.Record{RunID: "b", Tick: 1, Timestamp: t0.Add(2 * time.Minute)})
	return store
}

func get(t *testing.T, h http.Handler, url, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) []ticklog.Record {
	t.Helper()
	var out []ticklog.Record
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestLogHandler_AuthAndFilters(t *testing.T) {
	h := NewLogHandler(seeded(), "secret")

	if rr := get(t, h, "/api/ticks", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	rr := get(t, h, "/api/ticks", "secret")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if got := decode(t, rr); len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}

	got := decode(t, get(t, h, "/api/ticks?run_id=b", "secret"))
	if len(got) != 1 || got[0].RunID != "b" {
		t.Fatalf("run filter: %#v", got)
	}

	got = decode(t, get(t, h, "/api/ticks?station_id=st1", "secret"))
	if len(got) != 1 || got[0].Tick != 2 {
		t.Fatalf("station filter: %#v", got)
	}

	got = decode(t, get(t, h, "/api/ticks?start=2024-05-01T08:00:30Z&end=2024-05-01T08:01:30Z", "secret"))
	if len(got) != 1 || got[0].Tick != 2 {
		t.Fatalf("window filter: %#v", got)
	}
}

func TestLogHandler_EmptyIsArray(t *testing.T) {
	rr := get(t, NewLogHandler(&memStore{}, ""), "/api/ticks", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if body := rr.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty array, got %q", body)
	}
}

func TestLogHandler_Errors(t *testing.T) {
	h := NewLogHandler(&memStore{err: errors.New("disk gone")}, "")
	if rr := get(t, h, "/api/ticks", ""); rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/ticks", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
