// Env packet describes all settings, common to whole application
package env

import "time"

const (
	// Collector endpoints expect ISO8601 time format.
	// RFC3339 is a stricter version of ISO8601, so it is safe to use here.
	TimeFormat = time.RFC3339
	// Default value for agent initiated messages to the collector
	MessageDefaultID = "-"

	// Locking agent to prevent several instances running
	LockFile = "/var/lock/safeping"
)
