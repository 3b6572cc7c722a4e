package roster

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gunbamguy/lolpick/internal/models"
)

// StorageKey is the single record key used in the backing store.
const StorageKey = "lol-team-builder"

// Store is the injected persistence capability: a string key/value record
// store, the server-side analog of the browser's local storage. Get returns
// an empty string when the key is absent.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Manager owns all team/player/points data, enforces assignment invariants,
// and persists a JSON snapshot to the store after every mutation. Persistence
// is best-effort: a failed save is logged and the in-memory state stays
// authoritative.
type Manager struct {
	mu   sync.Mutex
	busy atomic.Bool

	catalog *Catalog
	teams   []*models.Team
	used    map[string]bool

	selected     *models.PlayerRef
	selectedTeam *int
	editMode     bool

	rng   *rand.Rand
	store Store
}

// New creates a manager with the default catalog and restores any previously
// saved state from the store. A nil store disables persistence.
func New(store Store) *Manager {
	return NewWithRand(store, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRand is New with an explicit random source, for deterministic
// randomize/draw behavior in tests.
func NewWithRand(store Store, rng *rand.Rand) *Manager {
	m := &Manager{
		catalog: DefaultCatalog(),
		used:    make(map[string]bool),
		rng:     rng,
		store:   store,
	}
	m.teams = make([]*models.Team, models.TeamCount)
	for i := range m.teams {
		m.teams[i] = emptyTeam(i)
	}
	m.loadFromStore()
	return m
}

func emptyTeam(id int) *models.Team {
	t := &models.Team{
		ID:             id,
		Players:        make(map[models.Position]*models.PlayerRef),
		Points:         models.DefaultPoints,
		PositionScores: make(map[models.Position]int),
	}
	for _, pos := range models.ScorablePositions {
		t.Players[pos] = nil
		t.PositionScores[pos] = 0
	}
	return t
}

// Catalog returns the static player pool.
func (m *Manager) Catalog() *Catalog {
	return m.catalog
}

func (m *Manager) teamLocked(teamID int) (*models.Team, error) {
	if teamID < 0 || teamID >= len(m.teams) {
		return nil, ErrInvalidTeam
	}
	return m.teams[teamID], nil
}

// AssignPlayer places candidate into the (teamID, position) slot. The slot
// must be empty, the candidate's native position must match, and the player
// must not already occupy another slot.
func (m *Manager) AssignPlayer(teamID int, position models.Position, candidate models.PlayerRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.assignLocked(teamID, position, candidate); err != nil {
		return err
	}
	m.persistLocked()
	return nil
}

func (m *Manager) assignLocked(teamID int, position models.Position, candidate models.PlayerRef) error {
	t, err := m.teamLocked(teamID)
	if err != nil {
		return err
	}
	if !position.Scorable() {
		return ErrInvalidPosition
	}
	if candidate.Position != position {
		return ErrPositionMismatch
	}
	if t.Players[position] != nil {
		return ErrSlotOccupied
	}

	ref := candidate
	if ref.ID == "" {
		ref.ID = models.PlayerID(position, ref.File)
	}
	if m.used[ref.ID] {
		return ErrPlayerAlreadyUsed
	}

	t.Players[position] = &ref
	m.used[ref.ID] = true
	return nil
}

// SelectPlayer marks a candidate as pending placement. At most one player is
// selected at a time; a successful AssignSelected clears it.
func (m *Manager) SelectPlayer(candidate models.PlayerRef) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref := candidate
	if ref.ID == "" {
		ref.ID = models.PlayerID(ref.Position, ref.File)
	}
	m.selected = &ref
}

// SelectedPlayer returns the pending selection, if any.
func (m *Manager) SelectedPlayer() (models.PlayerRef, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.selected == nil {
		return models.PlayerRef{}, false
	}
	return *m.selected, true
}

// ClearSelection drops the pending selection.
func (m *Manager) ClearSelection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected = nil
}

// AssignSelected places the pending selection into the given slot and clears
// the selection on success. The selection is kept on failure so the user can
// retry with a different slot.
func (m *Manager) AssignSelected(teamID int, position models.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.selected == nil {
		return ErrNoPlayerSelected
	}
	if err := m.assignLocked(teamID, position, *m.selected); err != nil {
		return err
	}
	m.selected = nil
	m.persistLocked()
	return nil
}

// RemovePlayer empties the (teamID, position) slot. The slot's committed
// score is refunded into the team's points (capped at the budget) and the
// slot score resets to zero.
func (m *Manager) RemovePlayer(teamID int, position models.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.teamLocked(teamID)
	if err != nil {
		return err
	}
	if !position.Scorable() {
		return ErrInvalidPosition
	}
	p := t.Players[position]
	if p == nil {
		return ErrSlotEmpty
	}

	score := t.PositionScores[position]
	t.Players[position] = nil
	delete(m.used, p.ID)
	t.PositionScores[position] = 0
	t.Points = min(models.MaxPoints, t.Points+score)

	m.persistLocked()
	return nil
}

// SetPositionScore commits a new score for a slot and deducts the difference
// from the team's points. The score is clamped to [0,1000] and then capped so
// the deduction never exceeds the remaining points; the applied score is
// returned. Decreasing a score refunds the difference.
func (m *Manager) SetPositionScore(teamID int, position models.Position, newScore int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.teamLocked(teamID)
	if err != nil {
		return 0, err
	}
	if !position.Scorable() {
		return 0, ErrInvalidPosition
	}

	newScore = clampPoints(newScore)
	old := t.PositionScores[position]
	if newScore-old > t.Points {
		// Cannot spend more than the remaining budget.
		newScore = old + t.Points
	}
	t.Points = clampPoints(t.Points - (newScore - old))
	t.PositionScores[position] = newScore

	m.persistLocked()
	return newScore, nil
}

// SetTeamPoints overwrites a team's points directly, clamped to [0,1000].
// This is a manual override: no re-validation against committed scores.
func (m *Manager) SetTeamPoints(teamID int, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.teamLocked(teamID)
	if err != nil {
		return err
	}
	t.Points = clampPoints(value)

	m.persistLocked()
	return nil
}

// SwapTeams exchanges the full payloads of two teams. Team ids stay pinned to
// their roster index.
func (m *Manager) SwapTeams(a, b int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a == b {
		return ErrInvalidTeam
	}
	ta, err := m.teamLocked(a)
	if err != nil {
		return err
	}
	tb, err := m.teamLocked(b)
	if err != nil {
		return err
	}
	swapPayload(ta, tb)

	m.persistLocked()
	return nil
}

func swapPayload(a, b *models.Team) {
	a.Players, b.Players = b.Players, a.Players
	a.Points, b.Points = b.Points, a.Points
	a.PositionScores, b.PositionScores = b.PositionScores, a.PositionScores
}

// RandomizeOrder shuffles the six team payloads with a Fisher-Yates pass over
// the injected random source. Ids stay pinned to their index and player
// occupancy moves with its payload, so the used set is unaffected.
func (m *Manager) RandomizeOrder() error {
	if !m.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer m.busy.Store(false)

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.teams) - 1; i > 0; i-- {
		j := m.rng.Intn(i + 1)
		if i != j {
			swapPayload(m.teams[i], m.teams[j])
		}
	}

	m.persistLocked()
	return nil
}

// ResetAll returns every team to an empty roster with a full budget and
// clears the used set, the pending selection, and the my-team focus.
// Idempotent.
func (m *Manager) ResetAll() error {
	if !m.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer m.busy.Store(false)

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.teams {
		m.teams[i] = emptyTeam(i)
	}
	m.used = make(map[string]bool)
	m.selected = nil
	m.selectedTeam = nil

	m.persistLocked()
	return nil
}

// DrawRandomUnassigned picks one catalog player uniformly among those not
// currently occupying a slot. The draw does not mark the player used; the
// caller assigns the result if it should be placed.
func (m *Manager) DrawRandomUnassigned() (models.PlayerRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates []models.PlayerRef
	for _, ref := range m.catalog.players {
		if !m.used[ref.ID] {
			candidates = append(candidates, ref)
		}
	}
	if len(candidates) == 0 {
		return models.PlayerRef{}, ErrNoPlayersRemaining
	}
	return candidates[m.rng.Intn(len(candidates))], nil
}

// SelectTeam enters my-team focus on the given team. Persisted so a reload
// restores the focused view.
func (m *Manager) SelectTeam(teamID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.teamLocked(teamID); err != nil {
		return err
	}
	id := teamID
	m.selectedTeam = &id

	m.persistLocked()
	return nil
}

// ClearSelectedTeam leaves my-team focus.
func (m *Manager) ClearSelectedTeam() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.selectedTeam = nil
	m.persistLocked()
}

// SelectedTeam returns the focused team index, if any.
func (m *Manager) SelectedTeam() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.selectedTeam == nil {
		return 0, false
	}
	return *m.selectedTeam, true
}

// SetEditMode toggles the layout-edit view. Transient: not persisted, and
// mutual exclusion with my-team focus is the caller's responsibility.
func (m *Manager) SetEditMode(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.editMode = on
}

// EditMode reports whether layout editing is active.
func (m *Manager) EditMode() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.editMode
}

// Used reports whether a player id currently occupies any slot.
func (m *Manager) Used(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used[id]
}

func clampPoints(v int) int {
	if v < 0 {
		return 0
	}
	if v > models.MaxPoints {
		return models.MaxPoints
	}
	return v
}
