package status

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"oiwatch/internal/instrumentation"
	"oiwatch/internal/journal"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, src Sources) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(":0", src, zap.NewNop()).Router())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

// go test -v --run TestStatusEndpoint
func TestStatusEndpoint(t *testing.T) {
	last := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := newTestServer(t, Sources{
		Symbols:   func() []string { return []string{"AUSDT", "BUSDT"} },
		Connected: func() bool { return true },
		LastCycle: func() time.Time { return last },
	})

	var resp Response
	if code := getJSON(t, srv.URL+"/status", &resp); code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if resp.Status != "Bot is running" || resp.WebSocket != "connected" || resp.Symbols != 2 {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.LastCycle == nil || !resp.LastCycle.Equal(last) {
		t.Errorf("unexpected last cycle %v", resp.LastCycle)
	}
}

// go test -v --run TestStatusDisconnected
func TestStatusDisconnected(t *testing.T) {
	srv := newTestServer(t, Sources{Connected: func() bool { return false }})

	var resp Response
	getJSON(t, srv.URL+"/", &resp)
	if resp.WebSocket != "disconnected" || resp.LastCycle != nil {
		t.Errorf("unexpected response %+v", resp)
	}
}

// go test -v --run TestSymbolsAndAlerts
func TestSymbolsAndAlerts(t *testing.T) {
	mem := journal.NewMemory(4)
	_ = mem.SaveAlert(context.Background(), journal.NewEntry(journal.KindSignal, "k", "AUSDT", 1, "msg"))

	srv := newTestServer(t, Sources{
		Symbols: func() []string { return []string{"AUSDT"} },
		Alerts:  mem.Recent,
	})

	var syms struct {
		Count   int      `json:"count"`
		Symbols []string `json:"symbols"`
	}
	getJSON(t, srv.URL+"/symbols", &syms)
	if syms.Count != 1 || syms.Symbols[0] != "AUSDT" {
		t.Errorf("unexpected symbols %+v", syms)
	}

	var alerts []journal.Entry
	getJSON(t, srv.URL+"/alerts", &alerts)
	if len(alerts) != 1 || alerts[0].Symbol != "AUSDT" {
		t.Errorf("unexpected alerts %+v", alerts)
	}
}

// go test -v --run TestSnapshotEndpoint
func TestSnapshotEndpoint(t *testing.T) {
	srv := newTestServer(t, Sources{
		Snapshot: func(ctx context.Context, symbol string, out any) (bool, error) {
			switch symbol {
			case "AUSDT":
				*(out.(*json.RawMessage)) = json.RawMessage(`{"symbol":"AUSDT","price":1.5}`)
				return true, nil
			case "DOWN":
				return false, errors.New("redis down")
			}
			return false, nil
		},
	})

	var snap map[string]any
	if code := getJSON(t, srv.URL+"/snapshot/AUSDT", &snap); code != http.StatusOK || snap["price"] != 1.5 {
		t.Errorf("unexpected snapshot %d %v", code, snap)
	}
	if code := getJSON(t, srv.URL+"/snapshot/BUSDT", nil); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
	if code := getJSON(t, srv.URL+"/snapshot/DOWN", nil); code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
}

// go test -v --run TestMetricsEndpoint
func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := instrumentation.NewMetrics(reg)
	m.RecordCycle(time.Second, 3)

	srv := newTestServer(t, Sources{Gatherer: reg})

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "oiwatch_cycles_total 1") {
		t.Errorf("expected cycle counter in metrics output:\n%s", body)
	}
}

// go test -v --run TestRunShutsDown
func TestRunShutsDown(t *testing.T) {
	s := NewServer("127.0.0.1:0", Sources{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
