// autoping periodically pings a configured set of targets and reports
// results to the configured sink. Every target gets its own session on
// the shared engine; rounds run all sessions concurrently, which is
// exactly the shared-stack load the engine is built for.
package autoping

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/safeping/safeping-agent/agent/common"
	"github.com/safeping/safeping-agent/internal/logger"
	"github.com/safeping/safeping-agent/pkg/echoping"
	"github.com/safeping/safeping-agent/pkg/slock"
)

const (
	cmd     = "AUTO_PING"
	pkgName = "AutoPing. "
)

var (
	errAlreadyRunning = fmt.Errorf("auto_ping is already running")
	errNotRunning     = fmt.Errorf("auto_ping is not running")
)

type AutoPing struct {
	sync.RWMutex
	lock      slock.AtomicServiceLock
	writer    io.Writer
	engine    *echoping.Engine
	timer     *time.Ticker
	done      chan struct{}
	period    time.Duration
	opts      echoping.Options
	targets   []string
	lastRound []pingResponseEntry
	results   []byte
}

func New(engine *echoping.Engine, w io.Writer, period time.Duration) *AutoPing {
	return &AutoPing{
		engine: engine,
		writer: w,
		period: period,
		opts:   echoping.DefaultOptions(),
	}
}

func (obj *AutoPing) Name() string {
	return cmd
}

func (obj *AutoPing) SetOptions(opts echoping.Options) {
	obj.Lock()
	defer obj.Unlock()
	obj.opts = opts
}

func (obj *AutoPing) AddTargets(targets ...string) {
	obj.Lock()
	defer obj.Unlock()
	obj.targets = append(obj.targets, targets...)
}

func (obj *AutoPing) Count() int {
	obj.RLock()
	defer obj.RUnlock()
	return len(obj.targets)
}

// Start begins periodic ping rounds. The first round runs immediately.
func (obj *AutoPing) Start() error {
	if !obj.lock.TryLock() {
		return errAlreadyRunning
	}

	obj.done = make(chan struct{})
	obj.timer = time.NewTicker(obj.period)

	go func() {
		defer obj.timer.Stop()

		obj.pingAll()
		for {
			select {
			case <-obj.done:
				return
			case <-obj.timer.C:
				obj.pingAll()
			}
		}
	}()

	return nil
}

func (obj *AutoPing) Stop() error {
	if !obj.lock.TryUnlock() {
		return errNotRunning
	}

	close(obj.done)
	return nil
}

// one ping round: all targets in parallel on the shared engine
func (obj *AutoPing) pingAll() {
	obj.RLock()
	targets := append([]string(nil), obj.targets...)
	opts := obj.opts
	obj.RUnlock()

	if len(targets) == 0 {
		return
	}

	entries := make([]pingResponseEntry, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()

			s := obj.engine.NewSession()
			entry := pingResponseEntry{Target: target}

			if err := s.PingTarget(target, opts); err != nil {
				entry.Error = err.Error()
			} else {
				entry.Sent = s.Sent()
				entry.Received = s.Received()
				entry.Lost = s.Lost()
				if s.Received() > 0 {
					entry.Latency = s.MeanTime()
					entry.MinRtt = s.MinTime()
					entry.MaxRtt = s.MaxTime()
					entry.Variance = s.VarTime()
				}
			}
			entries[i] = entry
		}(i, target)
	}
	wg.Wait()

	obj.processResults(entries)
}

func (obj *AutoPing) processResults(entries []pingResponseEntry) {
	resp := newResponseMsg()
	resp.Data.Pings = entries

	raw, err := json.Marshal(resp)
	if err != nil {
		logger.Error().Println(pkgName, "process ping results:", err)
		return
	}

	obj.Lock()
	obj.lastRound = entries
	obj.results = raw
	obj.Unlock()

	if obj.writer != nil {
		if _, err := obj.writer.Write(raw); err != nil {
			logger.Warning().Println(pkgName, "results write:", err)
		}
	}
}

// Result is one target's outcome from the last completed round
type Result struct {
	Target   string
	Sent     uint32
	Received uint32
	Lost     uint32
	MinRtt   float64
	MaxRtt   float64
	MeanRtt  float64
	Variance float64
}

// Iterate runs through the last round's results. Used by the exporter.
func (obj *AutoPing) Iterate(callback func(res Result)) {
	obj.RLock()
	round := obj.lastRound
	obj.RUnlock()

	for _, e := range round {
		if e.Error != "" {
			continue
		}
		callback(Result{
			Target:   e.Target,
			Sent:     e.Sent,
			Received: e.Received,
			Lost:     e.Lost,
			MinRtt:   e.MinRtt,
			MaxRtt:   e.MaxRtt,
			MeanRtt:  e.Latency,
			Variance: e.Variance,
		})
	}
}

func (obj *AutoPing) SupportInfo() *common.KeyValue {
	obj.RLock()
	defer obj.RUnlock()

	return &common.KeyValue{
		Key:   cmd,
		Value: string(obj.results),
	}
}
