package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-it600/internal/bridges/salus"
	"github.com/nerrad567/gray-logic-it600/internal/catalog"
	"github.com/nerrad567/gray-logic-it600/internal/it600"
)

// deviceView is the JSON shape of one device in API responses and
// WebSocket events.
type deviceView struct {
	Kind  it600.Kind   `json:"kind"`
	ID    string       `json:"id"`
	State it600.Device `json:"state"`
}

// commandRequest is the body of POST /devices/{kind}/{id}/commands.
type commandRequest struct {
	ID         string         `json:"id,omitempty"`
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// commandResponse reports an accepted command.
type commandResponse struct {
	CommandID string          `json:"command_id"`
	Kind      it600.Kind      `json:"kind"`
	DeviceID  string          `json:"device_id"`
	Status    salus.AckStatus `json:"status"`
}

// viewsOf returns the devices of kind ordered by id.
func viewsOf(kind it600.Kind, devices map[string]it600.Device) []deviceView {
	views := make([]deviceView, 0, len(devices))
	for id, d := range devices {
		views = append(views, deviceView{Kind: kind, ID: id, State: d})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

// handleListDevices returns every device, kinds in refresh order.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	var devices []deviceView
	for _, kind := range it600.Kinds() {
		devices = append(devices, viewsOf(kind, s.devices.Devices(kind))...)
	}
	if devices == nil {
		devices = []deviceView{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleListDevicesByKind returns the devices of one kind.
func (s *Server) handleListDevicesByKind(w http.ResponseWriter, r *http.Request) {
	kind, ok := it600.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		writeNotFound(w, "unknown device kind")
		return
	}
	devices := viewsOf(kind, s.devices.Devices(kind))
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device snapshot.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	kind, ok := it600.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		writeNotFound(w, "unknown device kind")
		return
	}
	id := chi.URLParam(r, "id")

	dev, ok := s.devices.Device(kind, id)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, deviceView{Kind: kind, ID: id, State: dev})
}

// handleCommand runs a command through the bridge and waits for the
// gateway's answer.
//
// Ack codes map onto HTTP status: INVALID_* → 400, NOT_CONFIGURED → 404,
// DEVICE_UNREACHABLE → 503, PROTOCOL_ERROR → 502.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		writeUnavailable(w, "bridge not running")
		return
	}
	kind, ok := it600.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		writeNotFound(w, "unknown device kind")
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	cmd := salus.CommandMessage{
		ID:         req.ID,
		Timestamp:  time.Now().UTC(),
		DeviceID:   chi.URLParam(r, "id"),
		Kind:       string(kind),
		Command:    req.Command,
		Parameters: req.Parameters,
		Source:     "api",
	}

	if err := s.bridge.Execute(r.Context(), cmd); err != nil {
		var ce *salus.CommandError
		if !errors.As(err, &ce) {
			writeInternalError(w, "command failed")
			return
		}
		writeError(w, statusForCode(ce.Code), ce.Code, ce.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, commandResponse{
		CommandID: cmd.ID,
		Kind:      kind,
		DeviceID:  cmd.DeviceID,
		Status:    salus.AckAccepted,
	})
}

func statusForCode(code string) int {
	switch code {
	case salus.ErrCodeInvalidCommand, salus.ErrCodeInvalidParameters:
		return http.StatusBadRequest
	case salus.ErrCodeNotConfigured:
		return http.StatusNotFound
	case salus.ErrCodeDeviceUnreachable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// handleListCatalog returns catalog entries, optionally filtered by ?kind=.
func (s *Server) handleListCatalog(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeUnavailable(w, "catalog not configured")
		return
	}

	var (
		entries []catalog.Entry
		err     error
	)
	if k := r.URL.Query().Get("kind"); k != "" {
		if _, ok := it600.ParseKind(k); !ok {
			writeBadRequest(w, "unknown device kind")
			return
		}
		entries, err = s.catalog.ListByKind(r.Context(), k)
	} else {
		entries, err = s.catalog.List(r.Context())
	}
	if err != nil {
		s.logger.Error("listing catalog failed", "error", err, "request_id", requestID(r.Context()))
		writeInternalError(w, "failed to list catalog")
		return
	}
	if entries == nil {
		entries = []catalog.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}
