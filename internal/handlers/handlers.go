package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gunbamguy/lolpick/internal/logger"
	"github.com/gunbamguy/lolpick/internal/models"
	"github.com/gunbamguy/lolpick/internal/pubsub"
	"github.com/gunbamguy/lolpick/internal/roster"
)

// APIHandlers contains all API handler methods
type APIHandlers struct {
	mgr    *roster.Manager
	pubsub *pubsub.PubSub

	mu         sync.RWMutex
	formScores map[string]int
}

// NewAPIHandlers creates a new API handlers instance
func NewAPIHandlers(mgr *roster.Manager, ps *pubsub.PubSub) *APIHandlers {
	return &APIHandlers{
		mgr:        mgr,
		pubsub:     ps,
		formScores: map[string]int{},
	}
}

// SetFormScores replaces the cached per-player form scores.
func (h *APIHandlers) SetFormScores(scores map[string]int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.formScores = scores
}

// writeError maps roster errors to HTTP status codes. Busy means a
// bulk operation is already running on this state.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, roster.ErrBusy) {
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// GetRosterState returns the current roster state
func (h *APIHandlers) GetRosterState(w http.ResponseWriter, r *http.Request) {
	logger.Debug("Getting roster state")
	state := h.mgr.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(state)
}

// AssignPlayer places a catalog player into a team slot
func (h *APIHandlers) AssignPlayer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		TeamID   int    `json:"teamId"`
		Position string `json:"position"`
		PlayerID string `json:"playerId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("Failed to decode assign request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	player, ok := h.mgr.Catalog().Lookup(req.PlayerID)
	if !ok {
		http.Error(w, "unknown player", http.StatusBadRequest)
		return
	}

	logger.Info("Assigning player", "player_id", req.PlayerID, "team_id", req.TeamID, "position", req.Position)
	if err := h.mgr.AssignPlayer(req.TeamID, models.Position(req.Position), player); err != nil {
		logger.Error("Failed to assign player", "error", err, "player_id", req.PlayerID, "team_id", req.TeamID)
		writeError(w, err)
		return
	}

	h.pubsub.Publish(pubsub.Event{
		Type: "roster:assign",
		Payload: map[string]interface{}{
			"playerId": player.ID,
			"teamId":   req.TeamID,
			"position": req.Position,
		},
	})

	writeOK(w)
}

// RemovePlayer clears a team slot and refunds its committed score
func (h *APIHandlers) RemovePlayer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		TeamID   int    `json:"teamId"`
		Position string `json:"position"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logger.Info("Removing player", "team_id", req.TeamID, "position", req.Position)
	if err := h.mgr.RemovePlayer(req.TeamID, models.Position(req.Position)); err != nil {
		writeError(w, err)
		return
	}

	h.pubsub.Publish(pubsub.Event{
		Type: "roster:remove",
		Payload: map[string]interface{}{
			"teamId":   req.TeamID,
			"position": req.Position,
		},
	})

	writeOK(w)
}

// SetPositionScore commits score points against a team's budget
func (h *APIHandlers) SetPositionScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		TeamID   int    `json:"teamId"`
		Position string `json:"position"`
		Score    int    `json:"score"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	applied, err := h.mgr.SetPositionScore(req.TeamID, models.Position(req.Position), req.Score)
	if err != nil {
		writeError(w, err)
		return
	}

	h.pubsub.Publish(pubsub.Event{
		Type: "roster:score",
		Payload: map[string]interface{}{
			"teamId":   req.TeamID,
			"position": req.Position,
			"score":    applied,
		},
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "score": applied})
}

// SetTeamPoints overrides a team's remaining point budget
func (h *APIHandlers) SetTeamPoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		TeamID int `json:"teamId"`
		Points int `json:"points"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.mgr.SetTeamPoints(req.TeamID, req.Points); err != nil {
		writeError(w, err)
		return
	}

	h.pubsub.Publish(pubsub.Event{
		Type: "roster:points",
		Payload: map[string]interface{}{
			"teamId": req.TeamID,
			"points": req.Points,
		},
	})

	writeOK(w)
}

// SwapTeams exchanges the full payloads of two teams
func (h *APIHandlers) SwapTeams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		TeamA int `json:"teamA"`
		TeamB int `json:"teamB"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logger.Info("Swapping teams", "team_a", req.TeamA, "team_b", req.TeamB)
	if err := h.mgr.SwapTeams(req.TeamA, req.TeamB); err != nil {
		writeError(w, err)
		return
	}

	h.pubsub.Publish(pubsub.Event{
		Type: "roster:swap",
		Payload: map[string]interface{}{
			"teamA": req.TeamA,
			"teamB": req.TeamB,
		},
	})

	writeOK(w)
}

// RandomizeOrder shuffles team payloads across the fixed team slots
func (h *APIHandlers) RandomizeOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	logger.Info("Randomizing team order")
	if err := h.mgr.RandomizeOrder(); err != nil {
		writeError(w, err)
		return
	}

	h.pubsub.Publish(pubsub.Event{Type: "roster:randomize"})

	writeOK(w)
}

// ResetAll restores the initial empty roster state
func (h *APIHandlers) ResetAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	logger.Info("Resetting roster")
	if err := h.mgr.ResetAll(); err != nil {
		writeError(w, err)
		return
	}

	h.pubsub.Publish(pubsub.Event{Type: "roster:reset"})

	writeOK(w)
}

// DrawRandomPlayer picks a uniformly random unassigned catalog player
func (h *APIHandlers) DrawRandomPlayer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	player, err := h.mgr.DrawRandomUnassigned()
	if err != nil {
		writeError(w, err)
		return
	}

	h.pubsub.Publish(pubsub.Event{
		Type: "roster:draw",
		Payload: map[string]interface{}{
			"playerId": player.ID,
		},
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(player)
}

// SelectTeam marks a team as the highlighted one, or clears the mark
// when teamId is null
func (h *APIHandlers) SelectTeam(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		TeamID *int `json:"teamId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.TeamID == nil {
		h.mgr.ClearSelectedTeam()
	} else if err := h.mgr.SelectTeam(*req.TeamID); err != nil {
		writeError(w, err)
		return
	}

	payload := map[string]interface{}{}
	if req.TeamID != nil {
		payload["teamId"] = *req.TeamID
	}
	h.pubsub.Publish(pubsub.Event{Type: "roster:selectTeam", Payload: payload})

	writeOK(w)
}

// playerEntry is the wire shape for catalog listings.
type playerEntry struct {
	ID        string `json:"id"`
	File      string `json:"file"`
	Name      string `json:"name"`
	Position  string `json:"position"`
	Used      bool   `json:"used"`
	FormScore int    `json:"formScore,omitempty"`
}

// ListPlayers returns the full player catalog with usage flags
func (h *APIHandlers) ListPlayers(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	scores := h.formScores
	h.mu.RUnlock()

	players := h.mgr.Catalog().Players()
	entries := make([]playerEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, playerEntry{
			ID:        p.ID,
			File:      p.File,
			Name:      roster.PlayerName(p.File),
			Position:  string(p.Position),
			Used:      h.mgr.Used(p.ID),
			FormScore: scores[p.ID],
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// GetFormScores returns the cached per-player form scores
func (h *APIHandlers) GetFormScores(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	scores := h.formScores
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(scores)
}

// EventsSSE provides Server-Sent Events for realtime updates
func (h *APIHandlers) EventsSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	eventChan := h.pubsub.Subscribe()
	defer h.pubsub.Unsubscribe(eventChan)

	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	for {
		select {
		case event := <-eventChan:
			data, _ := json.Marshal(event)
			fmt.Fprintf(w, "data: %s\n\n", data)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		case <-r.Context().Done():
			logger.Debug("SSE client disconnected")
			return
		case <-time.After(30 * time.Second):
			// Send keepalive ping
			fmt.Fprintf(w, ": keepalive\n\n")
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}
