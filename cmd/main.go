package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"strconv"
	"strings"
	"syscall"

	"github.com/safeping/safeping-agent/agent"
	"github.com/safeping/safeping-agent/internal/config"
	"github.com/safeping/safeping-agent/internal/env"
	"github.com/safeping/safeping-agent/internal/logger"
	"github.com/safeping/safeping-agent/pkg/echoping"
	"github.com/safeping/safeping-agent/pkg/gate"
	"github.com/safeping/safeping-agent/pkg/netstack"
)

const fullAppName = "Safeping Agent. "

func requireRoot() {
	user, err := user.Current()
	if err != nil {
		logger.Error().Println(fullAppName, "current user", err)
		os.Exit(-14) // errno.h -EFAULT
	} else if user.Uid != "0" {
		logger.Error().Println(fullAppName, "raw ICMP sockets need root. Please run with `sudo` or as root.")
		os.Exit(-13) // errno.h -EACCES
	}
}

func agentLock() {
	pidStr, _ := os.ReadFile(env.LockFile)
	pid, _ := strconv.Atoi(strings.ReplaceAll(string(pidStr), "\n", ""))

	if pid > 0 {
		_, err := os.Stat(fmt.Sprintf("/proc/%d", pid))
		if err == nil {
			// Another instance is running. Exit.
			logger.Error().Println(fullAppName, "Another agent instance is running")
			logger.Error().Println(fullAppName, "check lock file", env.LockFile)
			os.Exit(-16) // errno.h -EBUSY
		}
		logger.Warning().Println(fullAppName, "residual lock file found. An agent was killed or crashed before?")
	}

	os.WriteFile(env.LockFile, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func agentUnlock() {
	os.Remove(env.LockFile)
}

// replyPrinter writes one line per round trip, ping style
type replyPrinter struct {
	session *echoping.Session
}

func (rp *replyPrinter) OnReceive(bytes int) {
	if bytes > 0 {
		fmt.Printf("%d bytes from %s: time=%.3f ms\n", bytes, rp.session.Target(), rp.session.Elapsed())
	} else {
		fmt.Printf("from %s: no reply\n", rp.session.Target())
	}
}

func (rp *replyPrinter) OnWait() {}

// oneShot pings targets given on the command line and prints a summary,
// no collector, no exporter, no background services.
func oneShot(targets []string, opts echoping.Options) int {
	engine := echoping.NewEngine(netstack.Host(gate.New()))
	exitCode := 0

	for _, target := range targets {
		s := engine.NewSession()
		s.SetObserver(&replyPrinter{session: s})

		fmt.Printf("PING %s: %d data bytes\n", target, opts.Size)
		if err := s.PingTarget(target, opts); err != nil {
			fmt.Printf("ping %s: %s\n", target, err)
			exitCode = 1
			continue
		}

		fmt.Printf("--- %s ping statistics ---\n", s.Target())
		fmt.Printf("%d packets transmitted, %d packets received, %.1f%% packet loss\n",
			s.Sent(), s.Received(), 100*float64(s.Lost())/float64(s.Sent()))
		if s.Received() > 0 {
			fmt.Printf("round-trip min/avg/max = %.3f/%.3f/%.3f ms\n",
				s.MinTime(), s.MeanTime(), s.MaxTime())
		}
		if s.Received() == 0 && s.Sent() > 0 {
			exitCode = 1
		}
	}

	return exitCode
}

func main() {
	exitCode := 0
	defer func() { os.Exit(exitCode) }()

	execName := os.Args[0]

	showVersionAndExit := flag.Bool("version", false, "Show version and exit")
	count := flag.Int("count", echoping.DefaultCount, "Echo requests per target (0 pings until interrupted)")
	interval := flag.Int("interval", echoping.DefaultInterval, "Seconds between echo requests")
	size := flag.Int("size", echoping.DefaultSize, "Echo payload size in bytes")
	timeout := flag.Int("timeout", echoping.DefaultTimeout, "Reply wait timeout in seconds")

	flag.Parse()
	if *showVersionAndExit {
		fmt.Printf("%s (%s):\t%s\n\n", fullAppName, execName, config.GetFullVersion())
		return
	}

	requireRoot()

	if flag.NArg() > 0 {
		exitCode = oneShot(flag.Args(), echoping.Options{
			Count:    *count,
			Interval: *interval,
			Size:     *size,
			Timeout:  *timeout,
		})
		return
	}

	agentLock()
	defer agentUnlock()

	config.Init()
	defer config.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	safepingAgent, err := agent.NewAgent(ctx)
	if err != nil {
		logger.Error().Println(fullAppName, "Could not create agent", err)
		exitCode = -12 // errno.h -ENOMEM
		return
	}

	logger.Info().Println(fullAppName, execName, config.GetFullVersion(), "started.")

	go func() {
		if err := safepingAgent.Run(); err != nil {
			cancel()
		}
	}()

	// Wait for SIGINT or SIGTERM to terminate app
	terminate := make(chan os.Signal, 1)
	signal.Notify(terminate, os.Interrupt, syscall.SIGTERM)
	<-terminate
	safepingAgent.Stop()
	logger.Info().Println(fullAppName, "terminating")
}
