// Package api provides HTTP handlers for ModalPipe endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BTreeMap/ModalPipe/internal/models"
	"github.com/BTreeMap/ModalPipe/internal/page"
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"state": "up"}))
}

// modalsHandler serves GET /modals (list) and POST /modals (register).
func (s *Server) modalsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodGet:
		writeJSONResponse(w, http.StatusOK, models.Success(s.registry.ListModals()))

	case http.MethodPost:
		var cfg models.ModalConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			slog.Warn("Server.modalsHandler: failed to decode JSON", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		cfg.ApplyDefaults()
		if err := s.registry.Register(cfg); err != nil {
			slog.Warn("Server.modalsHandler: registration rejected", "modalID", cfg.ID, "error", err)
			writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
			return
		}
		slog.Info("Server.modalsHandler: modal registered", "modalID", cfg.ID)
		writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Modal registered", cfg.ID))

	default:
		w.Header().Set("Allow", strings.Join([]string{http.MethodGet, http.MethodPost}, ", "))
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// modalCommandHandler serves /modals/{id}/{command} and /modals/hide-all.
func (s *Server) modalCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	path := strings.TrimPrefix(r.URL.Path, "/modals/")
	path = strings.Trim(path, "/")

	if path == "hide-all" {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.registry.HideAll()
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("All visible modals closed", nil))
		return
	}

	modalID, command, _ := strings.Cut(path, "/")
	if modalID == "" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Missing modal id"))
		return
	}

	switch command {
	case "status":
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(s.registry.Status(modalID)))
		return
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Commands on unknown ids are silent no-ops by contract; the API still
	// answers OK so stale external references never see errors.
	switch command {
	case "show":
		s.registry.Show(modalID)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Show requested", nil))
	case "hide":
		s.registry.Hide(modalID)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Hide requested", nil))
	case "force-close":
		s.registry.ForceClose(modalID)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Force close requested", nil))
	case "reset-frequency":
		s.registry.ResetFrequency(modalID)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Frequency records cleared", nil))
	case "dev-mode":
		var body struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			slog.Warn("Server.modalCommandHandler: failed to decode dev-mode body", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		if body.Enabled {
			s.registry.EnableDevMode(modalID)
		} else {
			s.registry.DisableDevMode(modalID)
		}
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Dev mode updated", nil))
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown command"))
	}
}

// eventsHandler serves GET /events: recent lifecycle events.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.host.Events()))
}

// eventIngestHandler serves POST /events/{kind}: host page activity fed
// into the bus by an out-of-process adapter.
func (s *Server) eventIngestHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	kind := strings.Trim(strings.TrimPrefix(r.URL.Path, "/events/"), "/")
	slog.Debug("Server.eventIngestHandler: ingesting event", "kind", kind)

	switch kind {
	case "scroll":
		var ev page.ScrollEvent
		if !decodeEvent(w, r, &ev) {
			return
		}
		s.bus.PublishScroll(ev)
		writeJSONResponse(w, http.StatusOK, models.Success(nil))

	case "click":
		var ev page.ClickEvent
		if !decodeEvent(w, r, &ev) {
			return
		}
		s.bus.PublishClick(&ev)
		writeJSONResponse(w, http.StatusOK, models.Success(map[string]bool{
			"default_prevented": ev.DefaultPrevented(),
		}))

	case "pointer-leave":
		var ev page.PointerLeaveEvent
		if !decodeEvent(w, r, &ev) {
			return
		}
		s.bus.PublishPointerLeave(ev)
		writeJSONResponse(w, http.StatusOK, models.Success(nil))

	case "key":
		var ev page.KeyEvent
		if !decodeEvent(w, r, &ev) {
			return
		}
		s.bus.PublishKey(ev)
		writeJSONResponse(w, http.StatusOK, models.Success(nil))

	case "submit":
		var ev page.SubmitEvent
		if !decodeEvent(w, r, &ev) {
			return
		}
		s.bus.PublishSubmit(ev)
		writeJSONResponse(w, http.StatusOK, models.Success(nil))

	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown event kind"))
	}
}

func decodeEvent(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		slog.Warn("Server: failed to decode event body", "path", r.URL.Path, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return false
	}
	return true
}
