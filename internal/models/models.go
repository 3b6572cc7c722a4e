package models

// Position identifies a roster slot role.
type Position string

const (
	PositionTop Position = "top"
	PositionMid Position = "mid"
	PositionBot Position = "bot"
	PositionSup Position = "sup"

	// PositionJungle is the fixed captain slot. It is rendered by the
	// presentation layer but never assignable or scored here.
	PositionJungle Position = "jgl"
)

// ScorablePositions lists the assignable positions in display order. This is
// also the canonical slot order used for serialization.
var ScorablePositions = []Position{PositionTop, PositionMid, PositionBot, PositionSup}

// PositionNames holds the display labels for each position.
var PositionNames = map[Position]string{
	PositionTop:    "탑",
	PositionMid:    "미드",
	PositionBot:    "원딜",
	PositionSup:    "서포터",
	PositionJungle: "정글",
}

// Scorable reports whether p is one of the four assignable, scored positions.
func (p Position) Scorable() bool {
	switch p {
	case PositionTop, PositionMid, PositionBot, PositionSup:
		return true
	}
	return false
}

// Team sizing and point budget constants.
const (
	TeamCount     = 6
	MaxPoints     = 1000
	DefaultPoints = 1000
)

// PlayerRef identifies a catalog player. ID is derived as position + "_" +
// file and is unique across the catalog; it is the key used for usage
// tracking.
type PlayerRef struct {
	ID       string   `json:"id"`
	File     string   `json:"file"`
	Position Position `json:"position,omitempty"`
}

// PlayerID derives the globally unique player id for a position/file pair.
func PlayerID(pos Position, file string) string {
	return string(pos) + "_" + file
}

// Team holds one roster entry. ID doubles as the team's display index; swap
// and randomize move the payload (players, points, scores) between indices
// while ids stay pinned to their index.
type Team struct {
	ID             int                     `json:"id"`
	Players        map[Position]*PlayerRef `json:"players"`
	Points         int                     `json:"points"`
	PositionScores map[Position]int        `json:"positionScores"`
}

// PersistedRef is the on-disk shape of an occupied slot. The position is
// implied by the slot key, so only file and id are stored.
type PersistedRef struct {
	File string `json:"file"`
	ID   string `json:"id"`
}

// PersistedTeam is the on-disk shape of a team.
type PersistedTeam struct {
	ID      int                        `json:"id"`
	Players map[Position]*PersistedRef `json:"players"`
	Points  int                        `json:"points,omitempty"`
}

// PositionScore records one slot's committed score in the persisted blob.
type PositionScore struct {
	TeamID   int      `json:"teamId"`
	Position Position `json:"position"`
	Score    int      `json:"score"`
}

// PersistedState is the single JSON record written to the backing store.
// TeamPoints is index-aligned with Teams; PositionScores covers every
// scorable slot, including zeroes.
type PersistedState struct {
	Teams          []PersistedTeam `json:"teams"`
	UsedPlayers    []string        `json:"usedPlayers"`
	TeamPoints     []int           `json:"teamPoints"`
	PositionScores []PositionScore `json:"positionScores"`
	SelectedTeam   *int            `json:"selectedTeam"`
	Timestamp      int64           `json:"timestamp"`
}
