package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/austinkregel/local-media/beatd/internal/config"
	"github.com/austinkregel/local-media/beatd/internal/engine"
	"github.com/austinkregel/local-media/beatd/internal/spectrum"
)

// defaultFrameRate is used when no config manager is available
const defaultFrameRate = 30

// Server handles IPC communication with clients
type Server struct {
	socketPath string
	wsAddr     string
	engine     *engine.Engine
	configMgr  *config.Manager
	verbose    bool

	listener   net.Listener
	httpServer *http.Server
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
}

// NewServer creates a new IPC server. wsAddr may be empty to disable the
// WebSocket endpoint.
func NewServer(socketPath, wsAddr string, eng *engine.Engine, configMgr *config.Manager, verbose bool) *Server {
	s := &Server{
		socketPath: socketPath,
		wsAddr:     wsAddr,
		engine:     eng,
		configMgr:  configMgr,
		verbose:    verbose,
		clients:    make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}

	eng.SetOnBeat(s.pushBeat)
	return s
}

// Start runs the server until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	// Remove existing socket file if it exists
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	log.Printf("[IPC] Creating socket at %s", s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions (user-only)
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	go s.acceptLoop(ctx)

	if s.wsAddr != "" {
		s.startWebsocket()
	}

	go s.frameLoop(ctx)

	log.Printf("[IPC] Server listening, waiting for connections...")

	<-ctx.Done()

	log.Printf("[IPC] Shutting down server...")

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		s.httpServer.Shutdown(shutdownCtx)
		cancel()
	}

	s.mu.Lock()
	clientCount := len(s.clients)
	for _, c := range s.clients {
		c.close()
	}
	s.mu.Unlock()

	log.Printf("[IPC] Closed %d client connections", clientCount)

	listener.Close()
	os.RemoveAll(s.socketPath)

	log.Printf("[IPC] Server stopped")
	return nil
}

// startWebsocket serves GET /ws. A failing listener is logged, not fatal.
func (s *Server) startWebsocket() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)
	s.httpServer = &http.Server{
		Addr:              s.wsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("[IPC] WebSocket endpoint on ws://%s/ws", s.wsAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[IPC] WebSocket server failed: %v", err)
		}
	}()
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("[IPC] Accept error: %v", err)
			continue
		}

		go s.handleConnection(ctx, conn)
	}
}

// register adds c to the client set
func (s *Server) register(c *client) {
	s.mu.Lock()
	s.clients[c.id] = c
	clientCount := len(s.clients)
	s.mu.Unlock()

	log.Printf("[IPC] New client %s from %s (active: %d)", truncateID(c.id), c.remote, clientCount)
}

// unregister removes c and closes its connection
func (s *Server) unregister(c *client) {
	c.close()
	s.mu.Lock()
	delete(s.clients, c.id)
	clientCount := len(s.clients)
	s.mu.Unlock()

	log.Printf("[IPC] Client disconnected: %s (active: %d)", truncateID(c.id), clientCount)
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	c := newSocketClient(conn)
	s.register(c)
	defer s.unregister(c)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxMessageSize)

	// Read line (newline-delimited JSON)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.serve(ctx, c, scanner.Bytes()); err != nil {
			log.Printf("[IPC] Send error to %s: %v", truncateID(c.id), err)
			return
		}
	}

	switch err := scanner.Err(); {
	case errors.Is(err, bufio.ErrTooLong):
		log.Printf("[IPC] Message from %s exceeds %d bytes, closing", truncateID(c.id), maxMessageSize)
		s.sendResponse(c, NewErrorResponse("message too large"))
	case err != nil && !errors.Is(err, net.ErrClosed):
		log.Printf("[IPC] Read error from %s: %v", truncateID(c.id), err)
	}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[IPC] WebSocket upgrade failed: %v", err)
		return
	}

	c := newWebsocketClient(conn)
	s.register(c)
	defer s.unregister(c)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				log.Printf("[IPC] WebSocket message from %s exceeds %d bytes, closing", truncateID(c.id), maxMessageSize)
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[IPC] WebSocket read error from %s: %v", truncateID(c.id), err)
			}
			return
		}

		if err := s.serve(r.Context(), c, data); err != nil {
			log.Printf("[IPC] Send error to %s: %v", truncateID(c.id), err)
			return
		}
	}
}

// serve decodes one request from c, handles it and writes the response
func (s *Server) serve(ctx context.Context, c *client, data []byte) error {
	req, err := DecodeRequest(data)
	if err != nil {
		log.Printf("[IPC] Invalid request format from %s: %v", truncateID(c.id), err)
		return s.sendResponse(c, NewErrorResponse("invalid request format"))
	}

	// Skip logging for frequent polling commands
	logged := s.verbose || !isPollingCmd(req.Cmd)
	if logged {
		RequestLogger(c.id, req)
	}

	start := time.Now()
	resp := s.handleRequest(ctx, c, req)

	if logged {
		ResponseLogger(resp, time.Since(start))
	}
	return s.sendResponse(c, resp)
}

func (s *Server) sendResponse(c *client, resp *Response) error {
	data, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	return c.send(data)
}

func (s *Server) handleRequest(ctx context.Context, c *client, req *Request) *Response {
	switch req.Cmd {
	case CmdLoad:
		return s.handleLoad(ctx, req)
	case CmdUnload:
		return s.statusResponse(s.engine.Unload())
	case CmdTogglePlay:
		return s.handleTogglePlay()
	case CmdPlay:
		return s.statusResponse(s.engine.Play())
	case CmdPause:
		return s.statusResponse(s.engine.Pause())
	case CmdSeek:
		return s.handleSeek(req)
	case CmdVolume:
		return s.handleVolume(req)
	case CmdToggleMute:
		s.engine.ToggleMute()
		return s.volumeResponse()
	case CmdRestoreVolume:
		s.engine.RestoreVolume()
		return s.volumeResponse()
	case CmdStatus:
		return s.statusResponse(nil)
	case CmdConfigure:
		return s.handleConfigure(req)
	case CmdSetDomain:
		return s.handleSetDomain(req)
	case CmdSample:
		return s.handleSample()
	case CmdPulse:
		return s.handlePulse()
	case CmdHalveBPM:
		return s.respond(s.engine.HalveBPM(), nil)
	case CmdDoubleBPM:
		return s.respond(s.engine.DoubleBPM(), nil)
	case CmdSetBPM:
		return s.handleSetBPM(req)
	case CmdSetSubdivision:
		return s.handleSetSubdivision(req)
	case CmdRealign:
		return s.respond(s.engine.Realign(), nil)
	case CmdSubscribeFrames:
		return s.handleSubscribe(c, true)
	case CmdUnsubscribeFrames:
		return s.handleSubscribe(c, false)
	case CmdGetConfig:
		return s.handleGetConfig()
	case CmdSetConfig:
		return s.handleSetConfig(req)
	default:
		return NewErrorResponse("unknown command")
	}
}

// respond turns a handler result into a response
func (s *Server) respond(data interface{}, err error) *Response {
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	resp, err := NewSuccessResponse(data)
	if err != nil {
		return NewErrorResponse("internal error")
	}
	return resp
}

// statusResponse reports err, or the engine status after the command ran
func (s *Server) statusResponse(err error) *Response {
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return s.respond(s.engine.Status(), nil)
}

func (s *Server) handleLoad(ctx context.Context, req *Request) *Response {
	var loadReq LoadRequest
	if err := json.Unmarshal(req.Data, &loadReq); err != nil {
		return NewErrorResponse("invalid load request")
	}
	if loadReq.Path == "" {
		return NewErrorResponse("path is required")
	}

	if err := s.engine.Load(ctx, loadReq.Path); err != nil {
		return NewErrorResponse(err.Error())
	}
	return s.statusResponse(nil)
}

func (s *Server) handleTogglePlay() *Response {
	_, err := s.engine.TogglePlay()
	return s.statusResponse(err)
}

func (s *Server) handleSeek(req *Request) *Response {
	var seekReq SeekRequest
	if err := json.Unmarshal(req.Data, &seekReq); err != nil {
		return NewErrorResponse("invalid seek request")
	}

	_, err := s.engine.Seek(seekReq.Position)
	return s.statusResponse(err)
}

func (s *Server) handleSetBPM(req *Request) *Response {
	var bpmReq BPMRequest
	if err := json.Unmarshal(req.Data, &bpmReq); err != nil {
		return NewErrorResponse("invalid bpm request")
	}
	if bpmReq.BPM <= 0 {
		return NewErrorResponse("bpm must be positive")
	}
	return s.respond(s.engine.SetBPM(bpmReq.BPM), nil)
}

func (s *Server) handleVolume(req *Request) *Response {
	var volReq VolumeRequest
	if err := json.Unmarshal(req.Data, &volReq); err != nil {
		return NewErrorResponse("invalid volume request")
	}

	s.engine.SetVolume(volReq.Level)
	return s.volumeResponse()
}

func (s *Server) volumeResponse() *Response {
	level := s.engine.Volume()
	return s.respond(VolumeResponse{Level: level, Muted: level == 0}, nil)
}

func (s *Server) handleConfigure(req *Request) *Response {
	var confReq ConfigureRequest
	if err := json.Unmarshal(req.Data, &confReq); err != nil {
		return NewErrorResponse("invalid configure request")
	}

	mode := spectrum.Mode(confReq.Domain)
	if confReq.Domain != "" && !mode.Valid() {
		return NewErrorResponse(fmt.Sprintf("unknown domain %q", confReq.Domain))
	}

	bars := s.engine.Bars()
	if confReq.Bars != nil {
		bars = s.engine.Configure(*confReq.Bars, mode)
	} else if confReq.Domain != "" {
		s.engine.SetDomain(mode)
	}
	domain := s.engine.Domain()
	s.persistVisualizer(func(v *config.VisualizerConfig) {
		v.BarsCount = bars
		v.DomainMode = string(domain)
	})
	return s.statusResponse(nil)
}

func (s *Server) handleSetDomain(req *Request) *Response {
	var domReq DomainRequest
	if err := json.Unmarshal(req.Data, &domReq); err != nil {
		return NewErrorResponse("invalid domain request")
	}

	mode, err := spectrum.ParseMode(domReq.Domain)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	if err := s.engine.SetDomain(mode); err != nil {
		return NewErrorResponse(err.Error())
	}
	s.persistVisualizer(func(v *config.VisualizerConfig) {
		v.DomainMode = string(mode)
	})
	return s.statusResponse(nil)
}

func (s *Server) handleSample() *Response {
	return s.respond(SampleResponse{
		Domain: string(s.engine.Domain()),
		Bins:   bytesToInts(s.engine.Sample()),
	}, nil)
}

func (s *Server) handlePulse() *Response {
	pos := s.engine.CurrentTime()
	clock := s.engine.Clock()
	return s.respond(PulseResponse{
		Pulse:    clock.Pulse(pos),
		BPM:      clock.BPM,
		Position: pos,
	}, nil)
}

func (s *Server) handleSetSubdivision(req *Request) *Response {
	var subReq SubdivisionRequest
	if err := json.Unmarshal(req.Data, &subReq); err != nil {
		return NewErrorResponse("invalid subdivision request")
	}

	clock, err := s.engine.SetSubdivision(subReq.Subdivision)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	s.persistVisualizer(func(v *config.VisualizerConfig) {
		v.Subdivision = clock.Subdivision
	})
	return s.respond(clock, nil)
}

func (s *Server) handleSubscribe(c *client, subscribe bool) *Response {
	c.frames.Store(subscribe)

	if subscribe {
		log.Printf("[IPC] Client %s subscribed to frames (total: %d)", truncateID(c.id), len(s.frameSubscribers()))
	} else {
		log.Printf("[IPC] Client %s unsubscribed from frames (remaining: %d)", truncateID(c.id), len(s.frameSubscribers()))
	}
	return s.respond(SubscribeResponse{ClientID: c.id, Subscribed: subscribe}, nil)
}

func (s *Server) handleGetConfig() *Response {
	if s.configMgr == nil {
		return NewErrorResponse("config unavailable")
	}
	return s.respond(ConfigResponse{
		ConfigPath: s.configMgr.GetPath(),
		Config:     *s.configMgr.Get(),
	}, nil)
}

func (s *Server) handleSetConfig(req *Request) *Response {
	if s.configMgr == nil {
		return NewErrorResponse("config unavailable")
	}

	var confReq ConfigRequest
	if err := json.Unmarshal(req.Data, &confReq); err != nil {
		return NewErrorResponse("invalid config request")
	}

	cfg := s.configMgr.Get()
	confReq.Apply(cfg)
	if err := s.configMgr.Update(cfg); err != nil {
		log.Printf("[CONFIG] Failed to save config: %v", err)
		return NewErrorResponse(err.Error())
	}
	log.Printf("[CONFIG] Config updated")

	s.applyConfig(s.configMgr.Get(), &confReq)
	return s.handleGetConfig()
}

// applyConfig pushes the changed settings onto the running engine.
// defaultVolume and frameRate are read elsewhere.
func (s *Server) applyConfig(cfg *config.Config, changed *ConfigRequest) {
	if changed.Loop != nil {
		s.engine.SetLoop(cfg.Audio.Loop)
	}
	if changed.Autoplay != nil {
		s.engine.SetAutoplay(cfg.Behavior.Autoplay)
	}
	if changed.BarsCount != nil || changed.DomainMode != nil {
		s.engine.Configure(cfg.Visualizer.BarsCount, spectrum.Mode(cfg.Visualizer.DomainMode))
	}
	if changed.SmoothingFactor != nil {
		s.engine.SetSmoothing(cfg.Visualizer.SmoothingFactor)
	}
	if changed.Subdivision != nil {
		s.engine.SetSubdivision(cfg.Visualizer.Subdivision)
	}
}

// persistVisualizer saves a visualizer change made through a command
func (s *Server) persistVisualizer(fn func(v *config.VisualizerConfig)) {
	if s.configMgr == nil {
		return
	}
	if err := s.configMgr.UpdateVisualizer(fn); err != nil {
		log.Printf("[CONFIG] Failed to save config: %v", err)
	}
}

func (s *Server) frameRate() int {
	if s.configMgr == nil {
		return defaultFrameRate
	}
	return s.configMgr.Get().Visualizer.FrameRate
}

// frameLoop pushes a frame to subscribers on every tick. It follows
// frameRate changes without restarting.
func (s *Server) frameLoop(ctx context.Context) {
	rate := s.frameRate()
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	var frame []byte
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if r := s.frameRate(); r != rate {
			rate = r
			ticker.Reset(time.Second / time.Duration(rate))
		}
		frame = s.pushFrame(frame)
	}
}

// pushFrame samples the engine into buf and sends it to frame subscribers.
// It returns the buffer for reuse.
func (s *Server) pushFrame(buf []byte) []byte {
	subs := s.frameSubscribers()
	if len(subs) == 0 {
		return buf
	}

	frame := s.engine.SampleInto(buf)
	if frame == nil {
		return buf
	}

	pos := s.engine.CurrentTime()
	clock := s.engine.Clock()
	s.broadcast(subs, PushFrame, FrameMessage{
		Bins:      bytesToInts(frame),
		Pulse:     clock.Pulse(pos),
		BPM:       clock.BPM,
		Position:  pos,
		Timestamp: time.Now().UnixMilli(),
	})
	return frame
}

// pushBeat tells every client about a landed tempo estimate
func (s *Server) pushBeat(ev engine.BeatEvent) {
	s.broadcast(s.allClients(), PushBeat, ev)
}

func (s *Server) frameSubscribers() []*client {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		if c.frames.Load() {
			subs = append(subs, c)
		}
	}
	return subs
}

func (s *Server) allClients() []*client {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		all = append(all, c)
	}
	return all
}

// broadcast sends one push message to subs. A client whose write fails
// stops receiving frames.
func (s *Server) broadcast(subs []*client, msgType string, data interface{}) {
	if len(subs) == 0 {
		return
	}

	msg, err := NewPushMessage(msgType, data)
	if err != nil {
		log.Printf("[IPC] Failed to encode %s push: %v", msgType, err)
		return
	}

	for _, c := range subs {
		if err := c.send(msg); err != nil {
			c.frames.Store(false)
			if s.verbose {
				log.Printf("[IPC] Push to %s failed: %v", truncateID(c.id), err)
			}
		}
	}
}
