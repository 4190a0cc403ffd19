// Package main is the entry point for beatd.
// beatd plays a local audio file, analyses it live and keeps a beat clock in
// sync with playback. It runs headless behind an IPC socket or as a
// terminal visualizer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/austinkregel/local-media/beatd/internal/audio"
	"github.com/austinkregel/local-media/beatd/internal/config"
	"github.com/austinkregel/local-media/beatd/internal/engine"
	"github.com/austinkregel/local-media/beatd/internal/ipc"
	"github.com/austinkregel/local-media/beatd/internal/media"
	"github.com/austinkregel/local-media/beatd/internal/spectrum"
	"github.com/austinkregel/local-media/beatd/internal/synth"
	"github.com/austinkregel/local-media/beatd/internal/tui"
)

// Version is set at build time via ldflags
var Version = "dev"

// Flags holds command line options
type Flags struct {
	SocketPath    string
	ConfigDir     string
	WebsocketAddr string
	Verbose       bool

	// TUIFile opens the terminal visualizer on a file instead of the daemon
	TUIFile string

	// ClickOut writes a metronome WAV and exits
	ClickOut     string
	ClickBPM     float64
	ClickSeconds float64

	// File is loaded at daemon startup when set
	File string
}

func main() {
	flags := parseFlags()

	if flags.ClickOut != "" {
		if err := writeClick(flags); err != nil {
			log.Fatalf("Fatal error: %v", err)
		}
		return
	}

	if flags.Verbose {
		log.Printf("beatd version %s starting...", Version)
	}

	// Create context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if err := run(ctx, flags); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func parseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.SocketPath, "socket", "", "IPC socket path (default: auto-generated based on UID)")
	flag.StringVar(&f.ConfigDir, "config", "", "Configuration directory (default: ~/.config/beatd)")
	flag.StringVar(&f.WebsocketAddr, "ws", "", "WebSocket listen address, e.g. 127.0.0.1:7878 (overrides config)")
	flag.BoolVar(&f.Verbose, "verbose", false, "Enable verbose logging")
	flag.StringVar(&f.TUIFile, "tui", "", "Open the terminal visualizer on this file")
	flag.StringVar(&f.ClickOut, "click", "", "Write a click track WAV to this path and exit")
	flag.Float64Var(&f.ClickBPM, "click-bpm", 120, "Tempo of the generated click track")
	flag.Float64Var(&f.ClickSeconds, "click-seconds", 30, "Length of the generated click track in seconds")
	flag.Parse()

	f.File = flag.Arg(0)

	if f.ConfigDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}
		f.ConfigDir = filepath.Join(homeDir, ".config", "beatd")
	}

	return f
}

func writeClick(f *Flags) error {
	buf := synth.Stereo(synth.ClickTrack(audio.DefaultSampleRate, f.ClickBPM, f.ClickSeconds))
	if err := synth.WriteWAV(f.ClickOut, buf); err != nil {
		return err
	}
	log.Printf("Wrote %.0fs click track at %.1f BPM to %s", f.ClickSeconds, f.ClickBPM, f.ClickOut)
	return nil
}

func run(ctx context.Context, f *Flags) error {
	configMgr := config.NewManager(f.ConfigDir)
	if err := configMgr.Load(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := configMgr.Get()
	log.Printf("[CONFIG] Loaded %s", configMgr.GetPath())

	// The visualizer owns the terminal, so logs go to a file
	if f.TUIFile != "" {
		logFile, err := os.OpenFile(filepath.Join(f.ConfigDir, "beatd.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer logFile.Close()
		log.SetOutput(logFile)
	}

	// Fall back to a null device so analysis keeps working without a sound card
	var device audio.Device
	bufferSize := time.Duration(cfg.Audio.BufferSizeMs) * time.Millisecond
	otoDevice, err := audio.NewOtoDevice(cfg.Audio.SampleRate, audio.DefaultChannels, bufferSize)
	if err != nil {
		log.Printf("[AUDIO] Warning: no output device (%v), playing silently", err)
		device = audio.NewNullDevice(cfg.Audio.SampleRate, audio.DefaultChannels)
	} else {
		device = otoDevice
	}

	// Initialize media session (platform-specific)
	var mediaSession media.Session = media.NewNoOpSession()
	if cfg.Behavior.MediaSession {
		session, err := media.NewSession()
		if err != nil {
			log.Printf("[MEDIA] Warning: failed to initialize media session: %v", err)
			log.Printf("[MEDIA] Continuing without OS media integration")
		} else {
			log.Printf("[MEDIA] Media session initialized successfully")
			mediaSession = session
		}
	}
	defer mediaSession.Close()

	eng := engine.New(device, mediaSession, engine.Options{
		Volume:      cfg.Audio.DefaultVolume,
		Loop:        cfg.Audio.Loop,
		Autoplay:    cfg.Behavior.Autoplay,
		Bars:        cfg.Visualizer.BarsCount,
		Mode:        spectrum.Mode(cfg.Visualizer.DomainMode),
		Smoothing:   cfg.Visualizer.SmoothingFactor,
		Subdivision: cfg.Visualizer.Subdivision,
		Verbose:     f.Verbose,
	})
	defer eng.Close()

	mediaSession.SetCommandHandler(eng)

	if f.TUIFile != "" {
		return runTUI(ctx, eng, f.TUIFile, cfg.Visualizer.FrameRate)
	}

	if f.File != "" {
		if err := eng.Load(ctx, f.File); err != nil {
			log.Printf("[ENGINE] Warning: %v", err)
		}
	}

	socketPath := f.SocketPath
	if socketPath == "" {
		socketPath = cfg.Server.SocketPath
	}
	if socketPath == "" {
		socketPath = fmt.Sprintf("/tmp/beatd-%d.sock", os.Getuid())
	}
	wsAddr := f.WebsocketAddr
	if wsAddr == "" {
		wsAddr = cfg.Server.WebsocketAddr
	}

	server := ipc.NewServer(socketPath, wsAddr, eng, configMgr, f.Verbose)

	log.Printf("Starting IPC server on %s", socketPath)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("IPC server error: %w", err)
	}
	return nil
}

func runTUI(ctx context.Context, eng *engine.Engine, path string, fps int) error {
	if err := eng.Load(ctx, path); err != nil {
		return err
	}

	prog := tea.NewProgram(tui.NewModel(eng, fps), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := prog.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
