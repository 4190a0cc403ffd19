package config

import (
	"os"
	"strconv"
)

// Environment variables that override the config file.
const (
	EnvSampleRate    = "BEATD_SAMPLE_RATE"
	EnvVolume        = "BEATD_VOLUME"
	EnvLoop          = "BEATD_LOOP"
	EnvBars          = "BEATD_BARS"
	EnvDomain        = "BEATD_DOMAIN"
	EnvSmoothing     = "BEATD_SMOOTHING"
	EnvFrameRate     = "BEATD_FRAME_RATE"
	EnvSubdivision   = "BEATD_SUBDIVISION"
	EnvSocketPath    = "BEATD_SOCKET"
	EnvWebsocketAddr = "BEATD_WS_ADDR"
	EnvAutoplay      = "BEATD_AUTOPLAY"
	EnvMediaSession  = "BEATD_MEDIA_SESSION"
)

// ApplyEnv overrides fields of c from BEATD_* variables. Unparseable
// values are ignored.
func ApplyEnv(c *Config) {
	c.Audio.SampleRate = envInt(EnvSampleRate, c.Audio.SampleRate)
	c.Audio.DefaultVolume = envFloat(EnvVolume, c.Audio.DefaultVolume)
	c.Audio.Loop = envBool(EnvLoop, c.Audio.Loop)

	c.Visualizer.BarsCount = envInt(EnvBars, c.Visualizer.BarsCount)
	c.Visualizer.DomainMode = envStr(EnvDomain, c.Visualizer.DomainMode)
	c.Visualizer.SmoothingFactor = envFloat(EnvSmoothing, c.Visualizer.SmoothingFactor)
	c.Visualizer.FrameRate = envInt(EnvFrameRate, c.Visualizer.FrameRate)
	c.Visualizer.Subdivision = envInt(EnvSubdivision, c.Visualizer.Subdivision)

	c.Server.SocketPath = envStr(EnvSocketPath, c.Server.SocketPath)
	c.Server.WebsocketAddr = envStr(EnvWebsocketAddr, c.Server.WebsocketAddr)

	c.Behavior.Autoplay = envBool(EnvAutoplay, c.Behavior.Autoplay)
	c.Behavior.MediaSession = envBool(EnvMediaSession, c.Behavior.MediaSession)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
