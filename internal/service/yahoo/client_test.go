package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	drepo "ZoneScan/internal/domain/repository"
	xhttp "ZoneScan/pkg/http"
)

const chartBody = `{"chart":{"result":[{"timestamp":[1704153600,1704067200,1704240000],
"indicators":{"quote":[{"open":[101,100,null],"high":[103,102,null],"low":[99,98,null],
"close":[102,101,null],"volume":[2000,1000,null]}]}}],"error":null}}`

func TestHistoricalParsesAndSorts(t *testing.T) {
	var gotPath, gotInterval string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInterval = r.URL.Query().Get("interval")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	bars, err := c.Historical(context.Background(), "RELIANCE.NS", time.Unix(0, 0), time.Now(), drepo.TFDaily)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if gotPath != "/v8/finance/chart/RELIANCE.NS" || gotInterval != "1d" {
		t.Fatalf("path=%s interval=%s", gotPath, gotInterval)
	}
	if len(bars) != 2 {
		t.Fatalf("expected null bar dropped, got %d bars", len(bars))
	}
	if !bars[0].Timestamp.Before(bars[1].Timestamp) || bars[0].Open != 100 || bars[1].Volume != 2000 {
		t.Fatalf("unexpected bars %+v", bars)
	}
}

func TestHistoricalNotFoundIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"chart":{"result":null,"error":{"code":"Not Found"}}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Historical(context.Background(), "NOPE.NS", time.Unix(0, 0), time.Now(), drepo.TFDaily)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestHistoricalServerErrorIsTemporary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Historical(context.Background(), "TCS.NS", time.Unix(0, 0), time.Now(), drepo.TFWeekly)
	if err == nil || !xhttp.IsTemporary(err) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}
