package config

import (
	"os"
	"strings"

	"github.com/safeping/safeping-agent/internal/logger"
	"github.com/safeping/safeping-agent/pkg/echoping"
)

const maxPort = 65535

func Init() {
	var tmpval uint

	initString(&cache.token, "SAFEPING_AGENT_TOKEN", "")
	initString(&cache.uplinkURL, "SAFEPING_COLLECTOR_URL", "")
	initAgentName()
	initDebugLevel()
	logger.SetupGlobalLoger(cache.debugLevel, os.Stderr)

	initTargets()

	initUint(&cache.pingDefaults.count, "SAFEPING_COUNT", echoping.DefaultCount)
	initUint(&cache.pingDefaults.interval, "SAFEPING_INTERVAL", echoping.DefaultInterval)
	initUint(&cache.pingDefaults.size, "SAFEPING_SIZE", echoping.DefaultSize)
	initUint(&cache.pingDefaults.timeout, "SAFEPING_TIMEOUT", echoping.DefaultTimeout)

	initUint(&cache.pingPeriod, "SAFEPING_PERIOD", 60)
	if cache.pingPeriod < 10 {
		cache.pingPeriod = 10
	}

	initUint(&tmpval, "SAFEPING_EXPORTER_PORT", 0)
	if tmpval <= maxPort {
		cache.exporterPort = uint16(tmpval)
	}

	initDeviceID()
}

func Close() {
	// Anything needed to be closed or destroyed at the end of program, goes here
}

func initTargets() {
	var list string
	initString(&list, "SAFEPING_TARGETS", "")
	for _, t := range strings.Split(list, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			cache.targets = append(cache.targets, t)
		}
	}
}

func initAgentName() {
	initString(&cache.agentName, "SAFEPING_AGENT_NAME", "")
	if cache.agentName != "" {
		return
	}

	// Fallback to hostname, if no name is configured
	name, err := os.Hostname()
	if err != nil {
		logger.Warning().Println(pkgName, "could not get hostname", err)
		name = "safeping-agent"
	}
	cache.agentName = name
}

func initDeviceID() {
	initString(&cache.deviceID, "SAFEPING_DEVICE_ID", "")
	if cache.deviceID == "" {
		cache.deviceID = cache.agentName
	}
}

func initDebugLevel() {
	var lvl string
	initString(&lvl, "SAFEPING_LOG_LEVEL", "")

	switch strings.ToUpper(lvl) {
	case "DEBUG":
		cache.debugLevel = logger.DebugLevel
	case "INFO":
		cache.debugLevel = logger.InfoLevel
	case "WARNING":
		cache.debugLevel = logger.WarningLevel
	case "ERROR":
		cache.debugLevel = logger.ErrorLevel
	default:
		cache.debugLevel = logger.InfoLevel
	}
}
