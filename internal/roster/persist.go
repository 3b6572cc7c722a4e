package roster

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/gunbamguy/lolpick/internal/logger"
	"github.com/gunbamguy/lolpick/internal/models"
)

// Snapshot produces a plain data copy of the full roster state, in the shape
// written to the store.
func (m *Manager) Snapshot() models.PersistedState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() models.PersistedState {
	state := models.PersistedState{
		Teams:       make([]models.PersistedTeam, len(m.teams)),
		UsedPlayers: []string{},
		TeamPoints:  make([]int, len(m.teams)),
		Timestamp:   time.Now().UnixMilli(),
	}

	for i, t := range m.teams {
		pt := models.PersistedTeam{
			ID:      t.ID,
			Players: make(map[models.Position]*models.PersistedRef),
			Points:  t.Points,
		}
		for _, pos := range models.ScorablePositions {
			if p := t.Players[pos]; p != nil {
				pt.Players[pos] = &models.PersistedRef{File: p.File, ID: p.ID}
				state.UsedPlayers = append(state.UsedPlayers, p.ID)
			} else {
				pt.Players[pos] = nil
			}
			state.PositionScores = append(state.PositionScores, models.PositionScore{
				TeamID:   t.ID,
				Position: pos,
				Score:    t.PositionScores[pos],
			})
		}
		state.Teams[i] = pt
		state.TeamPoints[i] = t.Points
	}

	if m.selectedTeam != nil {
		id := *m.selectedTeam
		state.SelectedTeam = &id
	}
	return state
}

// persistLocked writes the current snapshot to the store. Best-effort:
// failures are logged and never surfaced to the caller.
func (m *Manager) persistLocked() {
	if m.store == nil {
		return
	}
	data, err := json.Marshal(m.snapshotLocked())
	if err != nil {
		logger.Error("Failed to serialize roster state", "error", err)
		return
	}
	if err := m.store.Set(StorageKey, string(data)); err != nil {
		logger.Error("Failed to save roster state", "error", err)
	}
}

// loadFromStore restores state saved by a previous session. A load never
// fails: a missing record keeps the defaults, and a corrupt one falls back
// per field.
func (m *Manager) loadFromStore() {
	if m.store == nil {
		return
	}
	raw, err := m.store.Get(StorageKey)
	if err != nil {
		logger.Warn("Failed to read saved roster state, starting fresh", "error", err)
		return
	}
	if raw == "" {
		return
	}
	m.Restore(raw)
}

// Restore rebuilds the roster from a serialized blob with defensive
// normalization: each field is decoded independently and malformed fields
// fall back to their defaults instead of aborting the load. Teams are
// accepted either as the normal 6-element array or as a sparse keyed object
// (a shape older saves produced), with each index validated individually.
func (m *Manager) Restore(raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var fields struct {
		Teams          json.RawMessage `json:"teams"`
		TeamPoints     json.RawMessage `json:"teamPoints"`
		PositionScores json.RawMessage `json:"positionScores"`
		SelectedTeam   json.RawMessage `json:"selectedTeam"`
	}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		logger.Warn("Saved roster state is corrupt, starting fresh", "error", err)
		return
	}

	for i := range m.teams {
		m.teams[i] = emptyTeam(i)
	}
	m.used = make(map[string]bool)
	m.selected = nil
	m.selectedTeam = nil

	persisted := decodeTeams(fields.Teams)
	for i, pt := range persisted {
		if i >= len(m.teams) || pt == nil {
			continue
		}
		t := m.teams[i]
		for _, pos := range models.ScorablePositions {
			ref := pt.Players[pos]
			if ref == nil || ref.File == "" {
				continue
			}
			id := ref.ID
			if id == "" {
				id = models.PlayerID(pos, ref.File)
			}
			if m.used[id] {
				// Duplicate occupancy in a corrupt save; keep the first slot.
				continue
			}
			t.Players[pos] = &models.PlayerRef{ID: id, File: ref.File, Position: pos}
			m.used[id] = true
		}
	}

	var scores []models.PositionScore
	if len(fields.PositionScores) > 0 {
		if err := json.Unmarshal(fields.PositionScores, &scores); err != nil {
			logger.Warn("Saved position scores are malformed, ignoring", "error", err)
			scores = nil
		}
	}
	for _, s := range scores {
		if s.TeamID < 0 || s.TeamID >= len(m.teams) || !s.Position.Scorable() {
			continue
		}
		m.teams[s.TeamID].PositionScores[s.Position] = clampPoints(s.Score)
	}

	var points []int
	if len(fields.TeamPoints) > 0 {
		if err := json.Unmarshal(fields.TeamPoints, &points); err != nil {
			logger.Warn("Saved team points are malformed, deriving from scores", "error", err)
			points = nil
		}
	}
	for i, t := range m.teams {
		if i < len(points) {
			t.Points = clampPoints(points[i])
			continue
		}
		// No saved value: derive what is left of the budget from the
		// committed scores.
		spent := 0
		for _, pos := range models.ScorablePositions {
			spent += t.PositionScores[pos]
		}
		t.Points = clampPoints(models.DefaultPoints - spent)
	}

	if len(fields.SelectedTeam) > 0 {
		var sel *int
		if err := json.Unmarshal(fields.SelectedTeam, &sel); err == nil && sel != nil {
			if *sel >= 0 && *sel < len(m.teams) {
				m.selectedTeam = sel
			}
		}
	}
}

// decodeTeams accepts the teams field as an array or as an index-keyed
// object and returns a 6-slot slice with nil entries for anything invalid.
func decodeTeams(raw json.RawMessage) []*models.PersistedTeam {
	out := make([]*models.PersistedTeam, models.TeamCount)
	if len(raw) == 0 {
		return out
	}

	var asList []*models.PersistedTeam
	if err := json.Unmarshal(raw, &asList); err == nil {
		for i, pt := range asList {
			if i < len(out) {
				out[i] = pt
			}
		}
		return out
	}

	var asMap map[string]*models.PersistedTeam
	if err := json.Unmarshal(raw, &asMap); err != nil {
		logger.Warn("Saved teams field is malformed, using empty roster")
		return out
	}
	for key, pt := range asMap {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(out) {
			continue
		}
		out[idx] = pt
	}
	return out
}
