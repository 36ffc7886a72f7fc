package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dungeonsync/logger"
	"dungeonsync/protocol"
)

var validate = validator.New()

// Handler is the HTTP side of the server: health, metrics, the admin API and
// the WebSocket game endpoint.
//
//	GET  /healthz
//	GET  /metrics               Prometheus
//	GET  /ws                    game protocol over WebSocket
//	GET  /admin/players         online players
//	GET  /admin/stats           counters snapshot
//	GET  /admin/floor           floor items
//	DELETE /admin/floor         clear the floor
//	POST /admin/spawn           {"code":"007","x":10,"y":20}
//	POST /admin/broadcast       {"text":"hello"}
//	GET  /admin/config          spawner settings
//	POST /admin/config          {"intervalMs":5000,"maxFloorItems":20}
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	r.Get("/ws", s.HandleWS)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/players", s.handleAdminPlayers)
		r.Get("/stats", s.handleAdminStats)
		r.Get("/floor", s.handleAdminFloor)
		r.Delete("/floor", s.handleAdminClearFloor)
		r.Post("/spawn", s.handleAdminSpawn)
		r.Post("/broadcast", s.handleAdminBroadcast)
		r.Get("/config", s.handleAdminGetConfig)
		r.Post("/config", s.handleAdminSetConfig)
	})
	return r
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.Warnf("admin: encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// decodeAndValidate writes the error response itself; callers just return.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) handleAdminPlayers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.reg.Players())
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"protocol_version": protocol.Version,
		"players_online":   s.reg.OnlineCount(),
		"connections":      s.reg.PeerCount(),
		"floor_items":      len(s.reg.FloorItems()),
		"metrics":          s.metrics.Snapshot(),
	})
}

func (s *Server) handleAdminFloor(w http.ResponseWriter, r *http.Request) {
	items := s.reg.FloorItems()
	if items == nil {
		items = []protocol.FloorItem{}
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleAdminClearFloor(w http.ResponseWriter, r *http.Request) {
	n := s.reg.ClearFloor()
	logger.Log.Infof("admin cleared %d floor items", n)
	respondJSON(w, http.StatusOK, map[string]any{"removed": n})
}

type spawnRequest struct {
	Code string `json:"code" validate:"required,len=3,numeric"`
	X    *int   `json:"x,omitempty" validate:"omitempty,gte=0,lt=800"`
	Y    *int   `json:"y,omitempty" validate:"omitempty,gte=0,lt=440"`
}

// handleAdminSpawn places an item, at a random point unless x and y are given.
// The floor cap does not apply.
func (s *Server) handleAdminSpawn(w http.ResponseWriter, r *http.Request) {
	var req spawnRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if _, ok := protocol.LookupItem(req.Code); !ok || req.Code == protocol.ItemNone {
		respondError(w, http.StatusBadRequest, "unknown item code")
		return
	}
	pt := randomPoint()
	if req.X != nil {
		pt.X = *req.X
	}
	if req.Y != nil {
		pt.Y = *req.Y
	}
	item := protocol.FloorItem{Code: req.Code, X: pt.X, Y: pt.Y}
	if err := s.reg.Spawn(item, 0); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	logger.Log.Infof("admin spawned %s", item.Encode())
	respondJSON(w, http.StatusCreated, item)
}

type broadcastRequest struct {
	Text string `json:"text" validate:"required,max=512"`
}

func (s *Server) handleAdminBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	n := s.reg.Broadcast(protocol.CmdTextMessage, "Server : "+req.Text, "")
	respondJSON(w, http.StatusOK, map[string]any{"recipients": n})
}

type spawnerConfig struct {
	IntervalMs    *int64 `json:"intervalMs,omitempty" validate:"omitempty,gte=0"`
	MaxFloorItems *int   `json:"maxFloorItems,omitempty" validate:"omitempty,gte=0"`
}

func (s *Server) handleAdminGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.spawner.Config()
	ms := cfg.Interval.Milliseconds()
	respondJSON(w, http.StatusOK, spawnerConfig{IntervalMs: &ms, MaxFloorItems: &cfg.MaxItems})
}

// handleAdminSetConfig updates only the fields present in the body.
func (s *Server) handleAdminSetConfig(w http.ResponseWriter, r *http.Request) {
	var req spawnerConfig
	if !decodeAndValidate(w, r, &req) {
		return
	}
	cfg := s.spawner.Config()
	if req.IntervalMs != nil {
		cfg.Interval = time.Duration(*req.IntervalMs) * time.Millisecond
	}
	if req.MaxFloorItems != nil {
		cfg.MaxItems = *req.MaxFloorItems
	}
	s.spawner.SetConfig(cfg)
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}
