package config

// This struct is used to cache commonly used safeping agent configuration.
// All of them are exported shell variables, some have generated fallbacks.
// Cache them and use from here.
type configCache struct {
	token     string // aka AGENT_TOKEN
	uplinkURL string
	agentName string
	deviceID  string

	targets []string

	pingDefaults struct {
		count    uint
		interval uint // seconds
		size     uint // payload bytes
		timeout  uint // seconds
	}
	pingPeriod uint // seconds between autoping rounds

	debugLevel   int
	exporterPort uint16
}

var cache configCache
