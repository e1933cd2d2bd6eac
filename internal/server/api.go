package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/esp32aq/internal/coordinator"
	"github.com/muurk/esp32aq/internal/device"
	"github.com/muurk/esp32aq/internal/hub"
	"github.com/muurk/esp32aq/internal/logging"
	"github.com/muurk/esp32aq/internal/sensor"
	"github.com/muurk/esp32aq/internal/version"
)

// DeviceView is the JSON representation of a device
type DeviceView struct {
	ChipID              string            `json:"chip_id"`
	Name                string            `json:"name"`
	Host                string            `json:"host"`
	Info                device.DeviceInfo `json:"info"`
	Available           bool              `json:"available"`
	Readings            *device.Readings  `json:"readings,omitempty"`
	UpdatedAt           *time.Time        `json:"updated_at,omitempty"`
	LastAttempt         *time.Time        `json:"last_attempt,omitempty"`
	LastError           string            `json:"last_error,omitempty"`
	ConsecutiveFailures int               `json:"consecutive_failures"`
}

func newDeviceView(e *hub.Entry) DeviceView {
	coord := e.Coordinator
	status := coord.Status()

	v := DeviceView{
		ChipID:              e.ChipID,
		Name:                e.Name,
		Host:                coord.Host(),
		Info:                e.Info,
		Available:           status.Available,
		ConsecutiveFailures: status.ConsecutiveFailures,
	}
	if !status.LastAttempt.IsZero() {
		t := status.LastAttempt
		v.LastAttempt = &t
	}
	if status.LastError != nil {
		v.LastError = status.LastError.Error()
	}
	if snap, err := coord.Latest(); err == nil {
		r := snap.Readings
		t := snap.UpdatedAt
		v.Readings = &r
		v.UpdatedAt = &t
	}
	return v
}

type errorResponse struct {
	Error string   `json:"error"`
	Hint  []string `json:"hint,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Server", version.UserAgent())
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Hint: device.TroubleshootingHint(err)})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*hub.Entry, bool) {
	entry, err := s.devices.Get(r.PathValue("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, hub.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return nil, false
	}
	return entry, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	devices := s.devices.List()
	available := 0
	for _, e := range devices {
		if e.Coordinator.Available() {
			available++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"version":   version.Full(),
		"devices":   len(devices),
		"available": available,
	})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	entries := s.devices.List()
	views := make([]DeviceView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newDeviceView(e))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if _, err := entry.Coordinator.Latest(); errors.Is(err, coordinator.ErrNotAvailable) {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, newDeviceView(entry))
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(w, r)
	if !ok {
		return
	}

	entities := sensor.NewEntities(entry.Info, entry.Coordinator.Host(), entry.Coordinator)
	states := make([]sensor.State, 0, len(entities))
	for _, e := range entities {
		states = append(states, e.State())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"device":   sensor.NewDeviceBlock(entry.Info, entry.Coordinator.Host()),
		"entities": states,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(w, r)
	if !ok {
		return
	}

	// A caller that hangs up must not turn a healthy device into a failed
	// refresh; the client timeout still bounds the fetch.
	_, err := entry.Coordinator.Refresh(context.WithoutCancel(r.Context()))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, newDeviceView(entry))
	case errors.Is(err, coordinator.ErrRefreshInProgress):
		writeError(w, http.StatusConflict, err)
	case coordinator.IsUpdateFailed(err):
		writeError(w, http.StatusBadGateway, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
