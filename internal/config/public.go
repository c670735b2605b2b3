package config

import "time"

const pkgName = "SafepingConfig. "

func GetDebugLevel() int {
	return cache.debugLevel
}

func GetAgentToken() string {
	return cache.token
}

func GetCollectorURL() string {
	return cache.uplinkURL
}

func GetAgentName() string {
	return cache.agentName
}

func GetDeviceID() string {
	return cache.deviceID
}

func GetTargets() []string {
	return cache.targets
}

func GetPingCount() uint {
	return cache.pingDefaults.count
}

func GetPingInterval() uint {
	return cache.pingDefaults.interval
}

func GetPingSize() uint {
	return cache.pingDefaults.size
}

func GetPingTimeout() uint {
	return cache.pingDefaults.timeout
}

func GetPingPeriod() time.Duration {
	return time.Duration(cache.pingPeriod) * time.Second
}

func GetExporterPort() uint16 {
	return cache.exporterPort
}
