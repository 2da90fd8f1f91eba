package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cbodonnell/duelsync/pkg/devices"
	"github.com/cbodonnell/duelsync/pkg/events"
	"github.com/cbodonnell/duelsync/pkg/game/types"
	"github.com/cbodonnell/duelsync/pkg/log"
	"github.com/cbodonnell/duelsync/pkg/messages"
	"github.com/cbodonnell/duelsync/pkg/repositories"
	"github.com/cbodonnell/duelsync/pkg/state"
)

// Session is the part of a running session the API reads from.
type Session interface {
	ID() string
	LocalID() types.PlayerID
	Store() *state.Store
	Hub() *events.Hub
	Tracker() *devices.Tracker
	Repository() repositories.Repository
	QueueSize() int
	SubmitAction(action string) (*messages.ActionIntent, error)
}

type StatusResponse struct {
	SessionID string         `json:"sessionId"`
	LocalID   types.PlayerID `json:"localId"`
	Connected bool           `json:"connected"`
	LastError string         `json:"lastError,omitempty"`
	QueueSize int            `json:"queueSize"`
	MatchLog  bool           `json:"matchLog"`
}

type DevicesResponse struct {
	Player1     types.DeviceConnectivity `json:"player1"`
	Player2     types.DeviceConnectivity `json:"player2"`
	PromptShown bool                     `json:"promptShown"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
	}
}

func HandleStatus(session Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := session.Store()
		writeJSON(w, http.StatusOK, &StatusResponse{
			SessionID: session.ID(),
			LocalID:   session.LocalID(),
			Connected: store.Connected(),
			LastError: store.LastError(),
			QueueSize: session.QueueSize(),
			MatchLog:  session.Repository() != nil,
		})
	}
}

func HandleState(session Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, session.Store().View())
	}
}

func HandleDevices(session Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := session.Store()
		writeJSON(w, http.StatusOK, &DevicesResponse{
			Player1:     store.Devices(types.PlayerOne),
			Player2:     store.Devices(types.PlayerTwo),
			PromptShown: session.Tracker().PromptShown(),
		})
	}
}

// HandleListActions returns the most recent match log actions of the
// session, newest first.
func HandleListActions(session Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		repository := session.Repository()
		if repository == nil {
			http.Error(w, "Match log is disabled", http.StatusNotFound)
			return
		}

		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed < 0 {
				http.Error(w, "Limit must be a non-negative integer", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		actions, err := repository.ListActions(r.Context(), session.ID(), limit)
		if err != nil {
			log.Error("failed to list actions: %v", err)
			http.Error(w, "Failed to list actions", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, actions)
	}
}

func HandleLatestSnapshot(session Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		repository := session.Repository()
		if repository == nil {
			http.Error(w, "Match log is disabled", http.StatusNotFound)
			return
		}

		snapshot, err := repository.LatestSnapshot(r.Context(), session.ID())
		if err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "No snapshot recorded yet", http.StatusNotFound)
				return
			}
			log.Error("failed to get latest snapshot: %v", err)
			http.Error(w, "Failed to get latest snapshot", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	}
}

// HandleSubmitAction publishes an action intent. The action only takes
// effect once the game server confirms it.
func HandleSubmitAction(session Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action := r.FormValue("action")
		if action == "" {
			http.Error(w, "Action is required", http.StatusBadRequest)
			return
		}

		intent, err := session.SubmitAction(action)
		if err != nil {
			log.Error("failed to submit action: %v", err)
			http.Error(w, "Failed to submit action", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusAccepted, intent)
	}
}
