package ops_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/ops"
	"github.com/nhle/mail-triage/internal/sched"
	"github.com/nhle/mail-triage/internal/store"
	"github.com/nhle/mail-triage/tests/testutil"
)

type stubSweeper struct {
	mu       sync.Mutex
	triggers int
	snap     sched.Snapshot
}

func (s *stubSweeper) TriggerSweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers++
}

func (s *stubSweeper) Stats() sched.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *stubSweeper) Triggers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggers
}

func newTestServer(t *testing.T, st *store.SQLiteStore, sweeper *stubSweeper) http.Handler {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return ops.NewServer("127.0.0.1:0", st, sweeper, logger).Handler()
}

func seedOutcomes(t *testing.T, st *store.SQLiteStore) {
	t.Helper()

	base := time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC)
	rows := []*model.Outcome{
		{
			MessageID: "m1", RunID: "run-a", Category: "spam",
			SendStatus: "not_attempted", CleanupStatus: "done", Stage: "cleaned_up",
			Attempt: 1, StartedAt: base, FinishedAt: base.Add(time.Second),
		},
		{
			MessageID: "m2", RunID: "run-a", Category: "reply_needed",
			SendStatus: "sent", CleanupStatus: "done", Stage: "cleaned_up",
			Attempt: 1, StartedAt: base, FinishedAt: base.Add(2 * time.Second),
		},
		{
			MessageID: "m3", RunID: "run-b", Category: "notification",
			SendStatus: "not_attempted", CleanupStatus: "failed", Stage: "routed",
			Attempt: 2, StartedAt: base, FinishedAt: base.Add(3 * time.Second),
		},
	}
	for _, o := range rows {
		if err := st.RecordOutcome(context.Background(), o); err != nil {
			t.Fatalf("seeding outcome %s: %v", o.MessageID, err)
		}
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthz(t *testing.T) {
	sweeper := &stubSweeper{snap: sched.Snapshot{InFlight: 2, Excluded: 1}}
	h := newTestServer(t, testutil.NewTestStore(t), sweeper)

	w := get(t, h, "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Status   string `json:"status"`
		InFlight int    `json:"in_flight"`
		Excluded int    `json:"excluded"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Status != "ok" || body.InFlight != 2 || body.Excluded != 1 {
		t.Errorf("body = %+v", body)
	}
}

func TestStats(t *testing.T) {
	st := testutil.NewTestStore(t)
	seedOutcomes(t, st)
	h := newTestServer(t, st, &stubSweeper{})

	w := get(t, h, "/api/v1/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var stats model.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.RepliesSent != 1 || stats.CleanupFailed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ByCategory["spam"] != 1 {
		t.Errorf("ByCategory = %v", stats.ByCategory)
	}
}

func TestOutcomes(t *testing.T) {
	st := testutil.NewTestStore(t)
	seedOutcomes(t, st)
	h := newTestServer(t, st, &stubSweeper{})

	w := get(t, h, "/api/v1/outcomes")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Outcomes []model.Outcome `json:"outcomes"`
		Count    int             `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Count != 3 || len(body.Outcomes) != 3 {
		t.Fatalf("count = %d with %d rows, want 3", body.Count, len(body.Outcomes))
	}
	if body.Outcomes[0].MessageID != "m3" {
		t.Errorf("first outcome = %s, want most recent m3", body.Outcomes[0].MessageID)
	}
}

func TestOutcomesFilters(t *testing.T) {
	st := testutil.NewTestStore(t)
	seedOutcomes(t, st)
	h := newTestServer(t, st, &stubSweeper{})

	var body struct {
		Outcomes []model.Outcome `json:"outcomes"`
		Count    int             `json:"count"`
	}

	w := get(t, h, "/api/v1/outcomes?category=spam")
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Count != 1 || body.Outcomes[0].MessageID != "m1" {
		t.Errorf("category filter = %+v", body)
	}

	w = get(t, h, "/api/v1/outcomes?run_id=run-a")
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Count != 2 {
		t.Errorf("run filter count = %d, want 2", body.Count)
	}

	w = get(t, h, "/api/v1/outcomes?limit=1")
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Count != 1 {
		t.Errorf("limited count = %d, want 1", body.Count)
	}

	// Out-of-range paging values fall back to defaults instead of erroring.
	w = get(t, h, "/api/v1/outcomes?limit=9999&offset=-3")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for clamped query", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Count != 3 {
		t.Errorf("clamped count = %d, want 3", body.Count)
	}
}

func TestSweep(t *testing.T) {
	sweeper := &stubSweeper{}
	h := newTestServer(t, testutil.NewTestStore(t), sweeper)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sweep", nil))

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if got := sweeper.Triggers(); got != 1 {
		t.Errorf("triggers = %d, want 1", got)
	}
}
