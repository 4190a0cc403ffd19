package ipc

import (
	"log"
	"time"
)

// isPollingCmd reports commands clients send every frame; they are only
// logged in verbose mode.
func isPollingCmd(cmd CommandType) bool {
	switch cmd {
	case CmdStatus, CmdSample, CmdPulse:
		return true
	}
	return false
}

// RequestLogger logs incoming requests
func RequestLogger(clientID string, req *Request) {
	log.Printf("[IPC] Command: %s (client %s)", req.Cmd, truncateID(clientID))
}

// ResponseLogger logs outgoing responses
func ResponseLogger(resp *Response, duration time.Duration) {
	if resp.Success {
		log.Printf("[IPC] Response: success duration=%v", duration)
	} else {
		log.Printf("[IPC] Response: error=%q duration=%v", resp.Error, duration)
	}
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
