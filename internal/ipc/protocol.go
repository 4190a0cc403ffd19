// Package ipc exposes the engine to other processes over a Unix socket and
// an optional WebSocket endpoint.
package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/austinkregel/local-media/beatd/internal/config"
)

// CommandType represents the type of command
type CommandType string

const (
	// Transport
	CmdLoad          CommandType = "load"
	CmdUnload        CommandType = "unload"
	CmdTogglePlay    CommandType = "togglePlay"
	CmdPlay          CommandType = "play"
	CmdPause         CommandType = "pause"
	CmdSeek          CommandType = "seek"
	CmdVolume        CommandType = "volume"
	CmdToggleMute    CommandType = "toggleMute"
	CmdRestoreVolume CommandType = "restoreVolume"
	CmdStatus        CommandType = "status"

	// Analysis
	CmdConfigure CommandType = "configure"
	CmdSetDomain CommandType = "setDomain"
	CmdSample    CommandType = "sample"

	// Beat
	CmdPulse          CommandType = "pulse"
	CmdHalveBPM       CommandType = "halveBpm"
	CmdDoubleBPM      CommandType = "doubleBpm"
	CmdSetBPM         CommandType = "setBpm"
	CmdSetSubdivision CommandType = "setSubdivision"
	CmdRealign        CommandType = "realign"

	// Streaming
	CmdSubscribeFrames   CommandType = "subscribeFrames"
	CmdUnsubscribeFrames CommandType = "unsubscribeFrames"

	CmdGetConfig CommandType = "getConfig"
	CmdSetConfig CommandType = "setConfig"
)

// Push message types
const (
	PushFrame = "frame"
	PushBeat  = "beat"
)

// PushMessage represents a server-initiated message (no request needed)
type PushMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Request represents a client request
type Request struct {
	Cmd  CommandType     `json:"cmd"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response represents a server response
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// LoadRequest is the data for a load command
type LoadRequest struct {
	Path string `json:"path"`
}

// BPMRequest is the data for a setBpm command
type BPMRequest struct {
	BPM float64 `json:"bpm"`
}

// SeekRequest is the data for a seek command
type SeekRequest struct {
	Position float64 `json:"position"` // seconds
}

// VolumeRequest is the data for a volume command
type VolumeRequest struct {
	Level float64 `json:"level"` // 0.0 - 1.0
}

// VolumeResponse reports the applied volume
type VolumeResponse struct {
	Level float64 `json:"level"`
	Muted bool    `json:"muted"`
}

// ConfigureRequest is the data for a configure command. Omitted bars keep
// the current resolution and an empty domain keeps the current domain.
type ConfigureRequest struct {
	Bars   *int   `json:"bars,omitempty"`
	Domain string `json:"domain,omitempty"`
}

// DomainRequest is the data for a setDomain command
type DomainRequest struct {
	Domain string `json:"domain"` // "frequency" or "time"
}

// SubdivisionRequest is the data for a setSubdivision command
type SubdivisionRequest struct {
	Subdivision int `json:"subdivision"` // 1, 2 or 4
}

// SampleResponse is the response to a sample command. Bins is nil when no
// source is loaded.
// Note: []int instead of []byte because encoding/json base64-encodes []byte
type SampleResponse struct {
	Domain string `json:"domain"`
	Bins   []int  `json:"bins"`
}

// PulseResponse is the response to a pulse command
type PulseResponse struct {
	Pulse    float64 `json:"pulse"`
	BPM      float64 `json:"bpm"`
	Position float64 `json:"position"`
}

// FrameMessage is pushed to frame subscribers at the configured frame rate
type FrameMessage struct {
	Bins  []int   `json:"bins"`
	Pulse float64 `json:"pulse"`
	BPM   float64 `json:"bpm"`
	// Position is the playback position in seconds the frame was taken at
	Position float64 `json:"position"`
	// Timestamp is when the frame was captured (Unix ms)
	Timestamp int64 `json:"timestamp"`
}

// SubscribeResponse is the response to subscribe and unsubscribe commands
type SubscribeResponse struct {
	ClientID   string `json:"clientId"`
	Subscribed bool   `json:"subscribed"`
}

// ConfigRequest is the data for a setConfig command. Nil fields are left
// unchanged.
type ConfigRequest struct {
	DefaultVolume   *float64 `json:"defaultVolume,omitempty"`
	Loop            *bool    `json:"loop,omitempty"`
	Autoplay        *bool    `json:"autoplay,omitempty"`
	BarsCount       *int     `json:"barsCount,omitempty"`
	DomainMode      *string  `json:"domainMode,omitempty"`
	SmoothingFactor *float64 `json:"smoothingFactor,omitempty"`
	FrameRate       *int     `json:"frameRate,omitempty"`
	Subdivision     *int     `json:"subdivision,omitempty"`
}

// Apply copies the set fields onto c
func (r *ConfigRequest) Apply(c *config.Config) {
	if r.DefaultVolume != nil {
		c.Audio.DefaultVolume = *r.DefaultVolume
	}
	if r.Loop != nil {
		c.Audio.Loop = *r.Loop
	}
	if r.Autoplay != nil {
		c.Behavior.Autoplay = *r.Autoplay
	}
	if r.BarsCount != nil {
		c.Visualizer.BarsCount = *r.BarsCount
	}
	if r.DomainMode != nil {
		c.Visualizer.DomainMode = *r.DomainMode
	}
	if r.SmoothingFactor != nil {
		c.Visualizer.SmoothingFactor = *r.SmoothingFactor
	}
	if r.FrameRate != nil {
		c.Visualizer.FrameRate = *r.FrameRate
	}
	if r.Subdivision != nil {
		c.Visualizer.Subdivision = *r.Subdivision
	}
}

// ConfigResponse is the response to getConfig and setConfig
type ConfigResponse struct {
	ConfigPath string        `json:"configPath"`
	Config     config.Config `json:"config"`
}

// EncodeRequest encodes a request to JSON
func EncodeRequest(req *Request) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeRequest decodes a request from JSON
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	if req.Cmd == "" {
		return nil, fmt.Errorf("failed to decode request: missing cmd")
	}
	return &req, nil
}

// EncodeResponse encodes a response to JSON
func EncodeResponse(resp *Response) ([]byte, error) {
	return json.Marshal(resp)
}

// DecodeResponse decodes a response from JSON
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(data interface{}) (*Response, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	return &Response{
		Success: true,
		Data:    rawData,
	}, nil
}

// NewErrorResponse creates an error response
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}

// NewPushMessage creates a push message for streaming data
func NewPushMessage(msgType string, data interface{}) ([]byte, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	msg := PushMessage{
		Type: msgType,
		Data: rawData,
	}
	return json.Marshal(msg)
}

// bytesToInts widens a frame for JSON
func bytesToInts(b []byte) []int {
	if b == nil {
		return nil
	}
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}
