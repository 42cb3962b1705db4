package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/alice-bridge/internal/alice"
)

// devicesResponse is the envelope of every device endpoint.
type devicesResponse struct {
	RequestID string         `json:"request_id"`
	Payload   devicesPayload `json:"payload"`
}

type devicesPayload struct {
	UserID  string         `json:"user_id,omitempty"`
	Devices []alice.Device `json:"devices"`
}

type queryRequest struct {
	Devices *[]alice.Device `json:"devices"`
}

type actionRequest struct {
	Payload *struct {
		Devices *[]alice.Device `json:"devices"`
	} `json:"payload"`
}

// handleProbe answers the platform's endpoint availability check.
func (s *Server) handleProbe(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// handleUnlink acknowledges that the user removed the account link.
func (s *Server) handleUnlink(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	client := currentClient(r.Context())
	s.logger.Info("account unlinked", "user", user.ID, "app_id", client.AppID)

	writeJSON(w, http.StatusOK, map[string]string{"request_id": requestID(r.Context())})
}

// handleUserDevices lists the user's devices without state and schedules
// the follow-up state notification owed after a discovery callback.
func (s *Server) handleUserDevices(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	writeJSON(w, http.StatusOK, devicesResponse{
		RequestID: requestID(r.Context()),
		Payload: devicesPayload{
			UserID:  user.ID.String(),
			Devices: s.devices.UserDevices(user),
		},
	})

	s.devices.ScheduleFollowUp(user)
}

// handleDevicesQuery returns the reconciled state of the requested devices.
func (s *Server) handleDevicesQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Devices == nil {
		writeBadRequest(w, "devices are required")
		return
	}

	ids := make([]string, 0, len(*req.Devices))
	for _, d := range *req.Devices {
		ids = append(ids, d.ID)
	}

	writeJSON(w, http.StatusOK, devicesResponse{
		RequestID: requestID(r.Context()),
		Payload:   devicesPayload{Devices: s.devices.Query(r.Context(), currentUser(r.Context()), ids)},
	})
}

// handleDevicesAction applies the requested capability changes.
func (s *Server) handleDevicesAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Payload == nil || req.Payload.Devices == nil {
		writeBadRequest(w, "payload.devices is required")
		return
	}

	writeJSON(w, http.StatusOK, devicesResponse{
		RequestID: requestID(r.Context()),
		Payload:   devicesPayload{Devices: s.devices.Action(r.Context(), currentUser(r.Context()), *req.Payload.Devices)},
	})
}
