// uplink ships ping results to the collector backend over a websocket.
// It implements io.Writer so the rest of the agent does not care whether
// results go to a remote collector or to plain stdout.
package uplink

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/safeping/safeping-agent/internal/config"
	"github.com/safeping/safeping-agent/internal/logger"
	"github.com/safeping/safeping-agent/pkg/pubip"
)

const pkgName = "Uplink. "

const (
	stopped = iota
	running
)

type Uplink struct {
	sync.Mutex
	state   uint32
	ws      *websocket.Conn
	url     string
	token   string
	version string
}

// New dials the collector. The returned instance is ready for writes.
func New() (*Uplink, error) {
	up := Uplink{
		url:     config.GetCollectorURL(),
		token:   config.GetAgentToken(),
		version: config.GetFullVersion(),
		state:   stopped,
	}

	err := up.connect()
	if err != nil {
		return nil, err
	}

	return &up, nil
}

func (up *Uplink) connect() (err error) {
	url := url.URL{Scheme: "wss", Host: up.url, Path: "/"}
	headers := http.Header(make(map[string][]string))

	// Without these headers connection will be ignored silently
	headers.Set("authorization", up.token)
	headers.Set("x-deviceid", config.GetDeviceID())
	headers.Set("x-deviceip", pubip.GetPublicIp().String())
	headers.Set("x-devicename", config.GetAgentName())
	headers.Set("x-devicestatus", "OK")
	headers.Set("x-agenttype", "Linux")
	headers.Set("x-agentversion", up.version)

	var resp *http.Response
	var httpCode int
	up.ws, resp, err = websocket.DefaultDialer.Dial(url.String(), headers)
	if err != nil {
		if resp != nil {
			httpCode = resp.StatusCode
		}
		logger.Error().Printf("%s dial %s: %s (HTTP: %d)\n", pkgName, up.url, err.Error(), httpCode)
		return err
	}
	atomic.StoreUint32(&up.state, running)

	return nil
}

func (up *Uplink) Write(b []byte) (n int, err error) {
	if atomic.LoadUint32(&up.state) == stopped {
		return 0, fmt.Errorf("uplink is not connected")
	}

	// gorilla/websocket supports one concurrent writer,
	// the lock keeps concurrent result rounds from interleaving
	up.Lock()
	defer up.Unlock()

	err = up.ws.WriteMessage(websocket.TextMessage, b)
	if err != nil {
		logger.Warning().Println(pkgName, "write error:", err, ". Reconnecting...")
		up.ws.Close()
		if err = up.connect(); err != nil {
			atomic.StoreUint32(&up.state, stopped)
			return 0, err
		}
		if err = up.ws.WriteMessage(websocket.TextMessage, b); err != nil {
			return 0, err
		}
	}

	return len(b), nil
}

func (up *Uplink) Close() error {
	if atomic.LoadUint32(&up.state) == stopped {
		return fmt.Errorf("uplink already closed")
	}

	// Cleanly close the connection by sending a close message
	err := up.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		logger.Warning().Println(pkgName, "write close:", err)
	}
	atomic.StoreUint32(&up.state, stopped)

	return up.ws.Close()
}

// Sink returns the configured results destination. With no collector
// URL configured results go to the fallback writer instead.
func Sink(fallback io.Writer) io.Writer {
	if config.GetCollectorURL() == "" {
		return fallback
	}

	up, err := New()
	if err != nil {
		logger.Warning().Println(pkgName, "collector unreachable, using fallback sink:", err)
		return fallback
	}
	return up
}
