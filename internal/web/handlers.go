package web

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"sid-sync/internal/bttfn"
	"sid-sync/internal/device"
	"sid-sync/internal/display"
	"sid-sync/internal/hub"
	"sid-sync/internal/remote"
)

// /api/v1/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339),
	})
}

// /api/v1/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "data": s.src.Status()})
}

// /api/v1/peers
func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "data": s.src.Peers()})
}

// /api/v1/display
func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "data": s.src.Display()})
}

// /api/v1/display.png
func (s *Server) handleDisplayPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	img, err := display.PNG(s.src.Display())
	if err != nil {
		log.Printf("[web] render display: %v", err)
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(img)
}

// /api/v1/events?after=<rfc3339>&max=<n>
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.evbuf == nil {
		writeError(w, http.StatusServiceUnavailable, "events buffer not enabled")
		return
	}

	var after time.Time
	if v := r.URL.Query().Get("after"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad 'after' timestamp")
			return
		}
		after = t
	}
	max := 100
	if v := r.URL.Query().Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad 'max'")
			return
		}
		max = n
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "data": s.evbuf.Pull(after, max)})
}

// /api/v1/timetravel
func (s *Server) handleTimeTravel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	st := s.src.Status()
	if !st.Powered {
		writeError(w, http.StatusConflict, device.ErrPoweredOff.Error())
		return
	}
	if st.Locked || st.Phase != "idle" {
		writeError(w, http.StatusConflict, device.ErrBusy.Error())
		return
	}
	s.enqueue(w, hub.Command{Type: device.CmdTimeTravel}, nil)
}

type commandRequest struct {
	Code *uint32 `json:"code"`
}

// /api/v1/command
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Code == nil {
		writeError(w, http.StatusBadRequest, "field 'code' is required")
		return
	}
	if *req.Code == 0 {
		writeError(w, http.StatusBadRequest, "code must not be zero")
		return
	}

	payload, _ := json.Marshal(map[string]uint32{"code": *req.Code})
	s.enqueue(w, hub.Command{Type: device.CmdRemote, Payload: payload},
		map[string]any{"display": remote.Format(*req.Code)})
}

// /api/v1/keypad
func (s *Server) handleKeypad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req device.KeypadPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if (req.Key == nil) == !req.End {
		writeError(w, http.StatusBadRequest, "exactly one of 'key' or 'end' is required")
		return
	}
	if !s.src.Status().Link.Keypad {
		writeError(w, http.StatusConflict, bttfn.ErrKeypadUnavailable.Error())
		return
	}

	payload, _ := json.Marshal(req)
	s.enqueue(w, hub.Command{Type: device.CmdKeypad, Payload: payload}, nil)
}

func (s *Server) enqueue(w http.ResponseWriter, c hub.Command, extra map[string]any) {
	id, err := s.hub.Enqueue(device.Inbox, c)
	if errors.Is(err, hub.ErrFull) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]any{"ok": true, "id": id}
	for k, v := range extra {
		resp[k] = v
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// /api/v1/events/stream
func (s *Server) handleEventsStream(w http.ResponseWriter, r *http.Request) {
	if s.evbuf == nil {
		http.Error(w, "events buffer not enabled", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	_, _ = w.Write([]byte(": welcome\n\n"))
	flusher.Flush()

	last := time.Now().Add(-time.Second)
	topic := r.URL.Query().Get("source")

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()
	poll := time.NewTicker(250 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[web] sse client disconnected")
			return

		case <-heartbeat.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()

		case <-poll.C:
			evs := s.evbuf.Pull(last, 100)
			if len(evs) == 0 {
				continue
			}
			last = evs[len(evs)-1].Time

			for _, e := range evs {
				if topic != "" && e.Source != topic {
					continue
				}
				data, err := json.Marshal(e)
				if err != nil {
					log.Printf("[web] sse marshal error: %v", err)
					continue
				}
				_, _ = w.Write([]byte("event: " + e.Topic + "\ndata: "))
				_, _ = w.Write(data)
				_, _ = w.Write([]byte("\n\n"))
			}
			flusher.Flush()
		}
	}
}
