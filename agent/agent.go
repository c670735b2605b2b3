// agent assembles the ping engine, the periodic pinger, the metrics
// exporter and the results uplink into one runnable unit.
package agent

import (
	"context"
	"os"

	"github.com/safeping/safeping-agent/agent/autoping"
	"github.com/safeping/safeping-agent/agent/common"
	"github.com/safeping/safeping-agent/agent/exporter"
	"github.com/safeping/safeping-agent/agent/uplink"
	"github.com/safeping/safeping-agent/internal/config"
	"github.com/safeping/safeping-agent/internal/logger"
	"github.com/safeping/safeping-agent/pkg/echoping"
	"github.com/safeping/safeping-agent/pkg/gate"
	"github.com/safeping/safeping-agent/pkg/netstack"
	"github.com/safeping/safeping-agent/pkg/slock"
)

const pkgName = "SafepingAgent. "

type Agent struct {
	running  slock.AtomicServiceLock
	ctx      context.Context
	cancel   context.CancelFunc
	engine   *echoping.Engine
	ping     *autoping.AutoPing
	services []common.Service
}

// NewAgent builds the full agent from the active configuration.
func NewAgent(ctx context.Context) (*Agent, error) {
	ctx, cancel := context.WithCancel(ctx)
	a := &Agent{
		ctx:    ctx,
		cancel: cancel,
	}

	stack := netstack.Host(gate.New())
	a.engine = echoping.NewEngine(stack)

	sink := uplink.Sink(os.Stdout)
	if up, ok := sink.(*uplink.Uplink); ok {
		// ship warnings and errors to the collector as well
		logger.SetupGlobalLoger(config.GetDebugLevel(), os.Stderr,
			logger.UplinkWriter(up, logger.WarningLevel))
	}

	a.ping = autoping.New(a.engine, sink, config.GetPingPeriod())
	a.ping.SetOptions(echoping.Options{
		Count:    int(config.GetPingCount()),
		Interval: int(config.GetPingInterval()),
		Size:     int(config.GetPingSize()),
		Timeout:  int(config.GetPingTimeout()),
	})
	a.ping.AddTargets(config.GetTargets()...)
	a.addService(a.ping)

	if port := config.GetExporterPort(); port > 0 {
		metrics, err := exporter.New(port, exporter.NewCollector(a.ping))
		if err != nil {
			cancel()
			return nil, err
		}
		if err := metrics.Run(ctx); err != nil {
			cancel()
			return nil, err
		}
	}

	return a, nil
}

func (a *Agent) addService(s common.Service) {
	a.services = append(a.services, s)
}

func (a *Agent) startServices() {
	for _, s := range a.services {
		logger.Info().Printf("%s Starting %s service.\n", pkgName, s.Name())
		err := s.Start()
		if err != nil {
			logger.Error().Printf("%s Service %s: %s\n", pkgName, s.Name(), err.Error())
		}
	}
}

func (a *Agent) stopServices() {
	for _, s := range a.services {
		logger.Info().Printf("%s Stopping %s service.\n", pkgName, s.Name())
		err := s.Stop()
		if err != nil {
			logger.Error().Printf("%s Service %s: %s\n", pkgName, s.Name(), err.Error())
		}
	}
}

// Run starts all services and blocks until the context is cancelled.
func (a *Agent) Run() error {
	if !a.running.TryLock() {
		return nil
	}
	defer a.running.TryUnlock()

	if a.ping.Count() == 0 {
		logger.Warning().Println(pkgName, "no ping targets configured")
	}

	a.startServices()
	<-a.ctx.Done()
	a.stopServices()

	return nil
}

// Stop cancels the agent context. Run returns after services shut down.
func (a *Agent) Stop() {
	a.cancel()
}
