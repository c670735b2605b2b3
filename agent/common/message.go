package common

import (
	"time"

	"github.com/safeping/safeping-agent/internal/env"
)

// Generic message struct (common part for all collector messages)
type MessageHeader struct {
	ID        string `json:"id"`
	MsgType   string `json:"type"`
	Timestamp string `json:"executed_at,omitempty"`
}

func (mh *MessageHeader) Now() {
	mh.Timestamp = time.Now().Format(env.TimeFormat)
}

type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Service is a startable and stoppable agent part
type Service interface {
	Name() string
	Start() error
	Stop() error
}
