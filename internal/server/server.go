// Package server exposes the capture controls over HTTP and streams state
// snapshots over a WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tiroq/voicecap/internal/blobstore"
	"github.com/tiroq/voicecap/internal/diaglog"
	"github.com/tiroq/voicecap/internal/orchestrator"
	"github.com/tiroq/voicecap/internal/recorder"
	"github.com/tiroq/voicecap/internal/synth"
)

const (
	maxBodyBytes    = 64 << 10
	writeWait       = 10 * time.Second
	pingPeriod      = 30 * time.Second
	pongWait        = pingPeriod + writeWait
	shutdownTimeout = 5 * time.Second
	downloadPrefix  = "/download/"
)

// Controller is the orchestrator surface the server drives.
type Controller interface {
	Record(task synth.Task) error
	Speak(task synth.Task) error
	Stop() error
	Snapshot() orchestrator.Snapshot
	Subscribe() (<-chan orchestrator.Snapshot, func())
}

// Config wires a Server.
type Config struct {
	Controller Controller
	Blobs      *blobstore.Store
	Voices     synth.VoiceLister // optional
	Defaults   synth.Task        // voice, rate and pitch used when a request omits them
	Logger     *zap.Logger
	Diag       *diaglog.Logger
}

// Server serves the control API.
type Server struct {
	ctl      Controller
	blobs    *blobstore.Store
	voices   synth.VoiceLister
	defaults synth.Task
	log      *zap.Logger
	diag     *diaglog.Logger
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

// New builds a Server and registers its routes.
func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		ctl:      cfg.Controller,
		blobs:    cfg.Blobs,
		voices:   cfg.Voices,
		defaults: cfg.Defaults,
		log:      log,
		diag:     cfg.Diag,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("POST /api/record", s.handleRecord)
	s.mux.HandleFunc("POST /api/speak", s.handleSpeak)
	s.mux.HandleFunc("POST /api/stop", s.handleStop)
	s.mux.HandleFunc("GET /api/voices", s.handleVoices)
	s.mux.HandleFunc("GET "+downloadPrefix+"{id}", s.handleDownload)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()
	s.log.Info("control server listening", zap.String("addr", listener.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// stateResponse is a snapshot plus the HTTP path of the ready result.
type stateResponse struct {
	orchestrator.Snapshot
	DownloadURL string `json:"download_url,omitempty"`
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (s *Server) state() stateResponse {
	snap := s.ctl.Snapshot()
	resp := stateResponse{Snapshot: snap}
	if snap.ResultURL != "" {
		resp.DownloadURL = DownloadPath(snap.ResultURL)
	}
	return resp
}

// DownloadPath maps a transient result URL to its HTTP download path.
func DownloadPath(resultURL string) string {
	return downloadPrefix + blobstore.ID(resultURL)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	s.handleTask(w, r, "record", s.ctl.Record)
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	s.handleTask(w, r, "speak", s.ctl.Speak)
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request, action string, run func(synth.Task) error) {
	task, err := s.decodeTask(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Error: err.Error()})
		return
	}
	s.logCommand(action, task)

	if err := run(task); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.state())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.logCommand("stop", synth.Task{})
	if err := s.ctl.Stop(); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.state())
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	if s.voices == nil {
		writeJSON(w, http.StatusOK, []synth.VoiceGroup{})
		return
	}
	voices, err := s.voices.Voices(r.Context())
	if err != nil {
		s.log.Warn("list voices failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Code: "voices_unavailable", Error: err.Error()})
		return
	}
	synth.MarkDefault(voices, s.defaults.Voice)
	writeJSON(w, http.StatusOK, synth.GroupByLanguage(voices))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	result, err := s.blobs.Get(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: "not_found", Error: err.Error()})
		return
	}
	name := resultName(result)
	w.Header().Set("Content-Type", result.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, result.StartedAt, result.Reader())
}

// handleWebSocket sends the current snapshot and then one message per
// transition until the client goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel := s.ctl.Subscribe()
	defer cancel()

	// Reader detects the client closing; inbound messages are ignored.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(v interface{}) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(v); err != nil {
			s.log.Debug("websocket write failed", zap.Error(err))
			return false
		}
		return true
	}

	if !send(s.state()) {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			resp := stateResponse{Snapshot: snap}
			if snap.ResultURL != "" {
				resp.DownloadURL = DownloadPath(snap.ResultURL)
			}
			if !send(resp) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) decodeTask(w http.ResponseWriter, r *http.Request) (synth.Task, error) {
	var req synth.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return synth.Task{}, fmt.Errorf("decode request: %w", err)
	}
	return req.Resolve(s.defaults)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := orchestrator.Code(err)
	status := http.StatusInternalServerError
	switch code {
	case "empty_text":
		status = http.StatusBadRequest
	case "busy", "already_recording":
		status = http.StatusConflict
	case "not_ready":
		status = http.StatusNotFound
	case "closed":
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorResponse{Code: code, Error: orchestrator.Describe(err)})
}

func (s *Server) logCommand(action string, task synth.Task) {
	s.log.Debug("command received", zap.String("action", action), zap.Int("text_chars", len(task.Text)))
	if s.diag.Enabled() {
		s.diag.Log(diaglog.LogEntry{
			Component: diaglog.ComponentServer,
			Event:     diaglog.EventCommandReceived,
			Payload: map[string]interface{}{
				"action": action,
				"text":   task.Text,
				"voice":  task.Voice,
			},
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// resultName is the attachment name for result.
func resultName(result *recorder.RecordingResult) string {
	return orchestrator.SuggestedBaseName + result.Extension()
}
