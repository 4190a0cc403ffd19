package ipc

import (
	"encoding/json"
	"testing"

	"github.com/austinkregel/local-media/beatd/internal/config"
)

func TestEncodeRequest(t *testing.T) {
	req := &Request{Cmd: CmdTogglePlay}

	data, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Result is not valid JSON: %v", err)
	}

	if decoded["cmd"] != "togglePlay" {
		t.Errorf("Expected cmd 'togglePlay', got '%v'", decoded["cmd"])
	}
	if _, ok := decoded["data"]; ok {
		t.Error("Expected data to be omitted")
	}
}

func TestDecodeRequestWithData(t *testing.T) {
	data := []byte(`{"cmd":"load","data":{"path":"/music/click.wav"}}`)

	req, err := DecodeRequest(data)
	if err != nil {
		t.Fatalf("DecodeRequest failed: %v", err)
	}

	if req.Cmd != CmdLoad {
		t.Errorf("Expected cmd 'load', got '%s'", req.Cmd)
	}

	var loadReq LoadRequest
	if err := json.Unmarshal(req.Data, &loadReq); err != nil {
		t.Fatalf("Failed to unmarshal data: %v", err)
	}
	if loadReq.Path != "/music/click.wav" {
		t.Errorf("Expected path '/music/click.wav', got '%s'", loadReq.Path)
	}
}

func TestDecodeRequestInvalid(t *testing.T) {
	tests := []string{
		`not valid json`,
		`{"data":{}}`,
		`{"cmd":""}`,
	}
	for _, input := range tests {
		if _, err := DecodeRequest([]byte(input)); err == nil {
			t.Errorf("Expected error for %q", input)
		}
	}
}

func TestDecodeResponseError(t *testing.T) {
	data := []byte(`{"success":false,"error":"no source loaded"}`)

	resp, err := DecodeResponse(data)
	if err != nil {
		t.Fatalf("DecodeResponse failed: %v", err)
	}
	if resp.Success {
		t.Error("Expected success to be false")
	}
	if resp.Error != "no source loaded" {
		t.Errorf("Expected error 'no source loaded', got '%s'", resp.Error)
	}
}

func TestNewSuccessResponse(t *testing.T) {
	resp, err := NewSuccessResponse(PulseResponse{Pulse: 1, BPM: 120, Position: 2.5})
	if err != nil {
		t.Fatalf("NewSuccessResponse failed: %v", err)
	}
	if !resp.Success {
		t.Error("Expected success to be true")
	}

	var decoded PulseResponse
	if err := json.Unmarshal(resp.Data, &decoded); err != nil {
		t.Fatalf("Failed to decode data: %v", err)
	}
	if decoded.BPM != 120 || decoded.Position != 2.5 {
		t.Errorf("Expected 120 BPM at 2.5s, got %+v", decoded)
	}

	resp, err = NewSuccessResponse(nil)
	if err != nil {
		t.Fatalf("NewSuccessResponse(nil) failed: %v", err)
	}
	if resp.Data != nil {
		t.Error("Expected data to be nil")
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("something went wrong")

	if resp.Success {
		t.Error("Expected success to be false")
	}
	if resp.Error != "something went wrong" {
		t.Errorf("Expected error 'something went wrong', got '%s'", resp.Error)
	}
}

func TestFramePushEncodesBinsAsNumbers(t *testing.T) {
	msg, err := NewPushMessage(PushFrame, FrameMessage{
		Bins:  bytesToInts([]byte{0, 128, 255}),
		Pulse: 1,
		BPM:   120,
	})
	if err != nil {
		t.Fatalf("NewPushMessage failed: %v", err)
	}

	var push struct {
		Type string `json:"type"`
		Data struct {
			Bins []int `json:"bins"`
		} `json:"data"`
	}
	if err := json.Unmarshal(msg, &push); err != nil {
		t.Fatalf("Failed to decode push: %v", err)
	}
	if push.Type != "frame" {
		t.Errorf("Expected type 'frame', got '%s'", push.Type)
	}
	want := []int{0, 128, 255}
	if len(push.Data.Bins) != len(want) {
		t.Fatalf("Expected %d bins, got %d", len(want), len(push.Data.Bins))
	}
	for i := range want {
		if push.Data.Bins[i] != want[i] {
			t.Errorf("Bin %d: expected %d, got %d", i, want[i], push.Data.Bins[i])
		}
	}

	if bytesToInts(nil) != nil {
		t.Error("Expected nil bins for nil frame")
	}
}

func TestConfigRequestApply(t *testing.T) {
	var req ConfigRequest
	if err := json.Unmarshal([]byte(`{"loop":false,"barsCount":96,"domainMode":"time"}`), &req); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	cfg := config.DefaultConfig()
	req.Apply(cfg)

	if cfg.Audio.Loop {
		t.Error("Expected loop disabled")
	}
	if cfg.Visualizer.BarsCount != 96 {
		t.Errorf("Expected 96 bars, got %d", cfg.Visualizer.BarsCount)
	}
	if cfg.Visualizer.DomainMode != "time" {
		t.Errorf("Expected time domain, got %s", cfg.Visualizer.DomainMode)
	}
	if cfg.Visualizer.FrameRate != 30 {
		t.Errorf("Expected frame rate untouched, got %d", cfg.Visualizer.FrameRate)
	}
	if cfg.Audio.DefaultVolume != 1 {
		t.Errorf("Expected volume untouched, got %v", cfg.Audio.DefaultVolume)
	}
}
