package autoping

import (
	"github.com/safeping/safeping-agent/agent/common"
	"github.com/safeping/safeping-agent/internal/env"
)

type pingResponseEntry struct {
	Target   string  `json:"target"`
	Sent     uint32  `json:"sent"`
	Received uint32  `json:"received"`
	Lost     uint32  `json:"lost"`
	Latency  float64 `json:"latency_ms,omitempty"`
	MinRtt   float64 `json:"min_ms,omitempty"`
	MaxRtt   float64 `json:"max_ms,omitempty"`
	Variance float64 `json:"var_ms,omitempty"`
	Error    string  `json:"error,omitempty"`
}

type autoPingResponse struct {
	common.MessageHeader
	Data struct {
		Pings []pingResponseEntry `json:"pings"`
	} `json:"data"`
}

func newResponseMsg() autoPingResponse {
	msg := autoPingResponse{}
	msg.Data.Pings = []pingResponseEntry{}
	msg.MsgType = cmd
	msg.ID = env.MessageDefaultID
	msg.Now()

	return msg
}
