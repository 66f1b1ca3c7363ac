package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/servimatch/servimatch/internal/config"
	"github.com/servimatch/servimatch/internal/domain"
)

func testClient(baseURL string, maxAttempts int) *Client {
	return NewClient(config.RankingConfig{
		BaseURL:        baseURL,
		MaxAttempts:    maxAttempts,
		RequestTimeout: 2 * time.Second,
		InitialBackoff: time.Millisecond,
	}, zerolog.Nop())
}

func TestRankTechniciansRetriesTransientFailures(t *testing.T) {
	want := []RankedTechnician{
		{TechnicianID: uuid.New(), Score: 0.93},
		{TechnicianID: uuid.New(), Score: 0.71},
	}

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/recommend" {
			t.Errorf("path = %s, want /recommend", r.URL.Path)
		}
		// The first three attempts fail transiently; the fourth succeeds.
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	ranked, err := testClient(srv.URL, 4).RankTechnicians(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("RankTechnicians: %v", err)
	}
	if len(ranked) != 2 || ranked[0].TechnicianID != want[0].TechnicianID {
		t.Fatalf("ranked = %+v, want %+v", ranked, want)
	}
	if got := calls.Load(); got != 4 {
		t.Fatalf("calls = %d, want 4", got)
	}
}

func TestRankTechniciansExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL, 3).RankTechnicians(context.Background(), uuid.New()); err == nil {
		t.Fatal("RankTechnicians succeeded despite a permanently failing service")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want the configured ceiling of 3", got)
	}
}

func TestRankTechniciansModelUnavailableFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 4).RankTechnicians(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrModelUnavailable) {
		t.Fatalf("err = %v, want ErrModelUnavailable", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on a definitive answer)", got)
	}
}

func TestRankTechniciansBadRequestNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL, 4).RankTechnicians(context.Background(), uuid.New()); err == nil {
		t.Fatal("RankTechnicians succeeded on a 400")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestRankTechniciansContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := testClient(srv.URL, 4).RankTechnicians(ctx, uuid.New()); err == nil {
		t.Fatal("RankTechnicians ignored a cancelled context")
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %s, want /health", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := testClient(srv.URL, 1).Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}

func TestHealthUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if err := testClient(srv.URL, 1).Health(context.Background()); err == nil {
		t.Fatal("Health reported a 503 service as healthy")
	}
}
