package autoping

import (
	"encoding/json"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/safeping/safeping-agent/pkg/echoping"
	"github.com/safeping/safeping-agent/pkg/gate"
	"github.com/safeping/safeping-agent/pkg/netstack"
)

type downStatus struct{}

func (downStatus) IsConnected() bool     { return false }
func (downStatus) LocalAddr() netip.Addr { return netip.Addr{} }

// collectWriter retains everything written and signals the first write
type collectWriter struct {
	mu    sync.Mutex
	got   [][]byte
	first chan struct{}
	once  sync.Once
}

func newCollectWriter() *collectWriter {
	return &collectWriter{first: make(chan struct{})}
}

func (w *collectWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	w.got = append(w.got, append([]byte(nil), b...))
	w.mu.Unlock()
	w.once.Do(func() { close(w.first) })
	return len(b), nil
}

func (w *collectWriter) last() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.got) == 0 {
		return nil
	}
	return w.got[len(w.got)-1]
}

func newTestEngine() *echoping.Engine {
	st := &netstack.Stack{
		Gate:   gate.New(),
		Status: downStatus{},
		Now:    time.Now,
	}
	return echoping.NewEngine(st)
}

func TestRoundReportsErrors(t *testing.T) {
	w := newCollectWriter()
	ap := New(newTestEngine(), w, time.Hour)
	ap.AddTargets("first.test", "second.test")

	if got := ap.Count(); got != 2 {
		t.Fatalf("target count = %d, want 2", got)
	}

	if err := ap.Start(); err != nil {
		t.Fatal("start:", err)
	}
	defer ap.Stop()

	select {
	case <-w.first:
	case <-time.After(3 * time.Second):
		t.Fatal("no results written")
	}

	var resp autoPingResponse
	if err := json.Unmarshal(w.last(), &resp); err != nil {
		t.Fatal("unmarshal results:", err)
	}

	if resp.MsgType != cmd {
		t.Errorf("message type = %q, want %q", resp.MsgType, cmd)
	}
	if len(resp.Data.Pings) != 2 {
		t.Fatalf("entries = %d, want 2", len(resp.Data.Pings))
	}
	for _, e := range resp.Data.Pings {
		if e.Error != echoping.ErrNotConnected.Error() {
			t.Errorf("target %s error = %q, want %q", e.Target, e.Error, echoping.ErrNotConnected)
		}
		if e.Sent != 0 || e.Received != 0 {
			t.Errorf("target %s counted packets on a failed round", e.Target)
		}
	}
}

func TestIterateSkipsFailedTargets(t *testing.T) {
	ap := New(newTestEngine(), nil, time.Hour)
	ap.processResults([]pingResponseEntry{
		{Target: "good.test", Sent: 4, Received: 4, Latency: 2.5, MinRtt: 1, MaxRtt: 4},
		{Target: "bad.test", Error: "name not known"},
	})

	var seen []string
	ap.Iterate(func(res Result) {
		seen = append(seen, res.Target)
		if res.Target == "good.test" && res.MeanRtt != 2.5 {
			t.Errorf("mean rtt = %v, want 2.5", res.MeanRtt)
		}
	})

	if len(seen) != 1 || seen[0] != "good.test" {
		t.Errorf("iterated %v, want only good.test", seen)
	}
}

func TestStartStop(t *testing.T) {
	ap := New(newTestEngine(), nil, time.Hour)

	if err := ap.Start(); err != nil {
		t.Fatal("start:", err)
	}
	if err := ap.Start(); err == nil {
		t.Error("second start did not fail")
	}
	if err := ap.Stop(); err != nil {
		t.Fatal("stop:", err)
	}
	if err := ap.Stop(); err == nil {
		t.Error("second stop did not fail")
	}
}
