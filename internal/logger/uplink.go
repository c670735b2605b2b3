package logger

import (
	"encoding/json"
	"io"
	"time"

	"github.com/safeping/safeping-agent/internal/env"
)

const cmd = "LOGGER"

type logMessage struct {
	ID        string `json:"id"`
	MsgType   string `json:"type"`
	Timestamp string `json:"executed_at,omitempty"`
	Data      struct {
		Level   string `json:"severity"`
		Message string `json:"message"`
	} `json:"data"`
}

// uplinkLogger wraps plain log lines into collector messages
type uplinkLogger struct {
	wr    io.Writer
	level string
}

func (l *uplinkLogger) Write(b []byte) (n int, err error) {
	msg := logMessage{
		ID:        env.MessageDefaultID,
		MsgType:   cmd,
		Timestamp: time.Now().Format(env.TimeFormat),
	}

	msg.Data.Message = string(b)
	msg.Data.Level = l.level
	raw, err := json.Marshal(msg)
	if err != nil {
		return 0, err
	}

	return l.wr.Write(raw)
}

// UplinkWriter returns a writer that wraps messages of the given level
// into collector JSON envelopes before passing them to w.
func UplinkWriter(w io.Writer, level int) io.Writer {
	return &uplinkLogger{wr: w, level: logLevelString(level)}
}
