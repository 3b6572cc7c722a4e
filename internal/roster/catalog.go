package roster

import (
	"strings"

	"github.com/gunbamguy/lolpick/internal/models"
)

// defaultPlayerFiles is the fixed player pool, six candidates per scorable
// position. Image files double as player identity, same as the tab panel in
// the front end.
var defaultPlayerFiles = map[models.Position][]string{
	models.PositionTop: {"던.gif", "룩삼.gif", "맛수령.gif", "승우아빠.gif", "치킨쿤.gif", "푸린.gif"},
	models.PositionMid: {"네클릿.gif", "노페.gif", "인간젤리.gif", "트롤야.gif", "피닉스박.gif", "헤징.gif"},
	models.PositionBot: {"강퀴.gif", "눈꽃.gif", "따효니.gif", "러너.gif", "마소킴.gif", "플러리.gif"},
	models.PositionSup: {"고수달.gif", "라콩.gif", "매드라이프.gif", "이희태.gif", "캡틴잭.gif", "크캣.gif"},
}

// Catalog is the static, read-only player pool. Players are ordered by
// position (top, mid, bot, sup) and then by file order within the position,
// which keeps draw candidate lists deterministic for a seeded random source.
type Catalog struct {
	players []models.PlayerRef
	byID    map[string]models.PlayerRef
}

// NewCatalog builds a catalog from a position -> file list mapping.
func NewCatalog(files map[models.Position][]string) *Catalog {
	c := &Catalog{
		byID: make(map[string]models.PlayerRef),
	}
	for _, pos := range models.ScorablePositions {
		for _, file := range files[pos] {
			ref := models.PlayerRef{
				ID:       models.PlayerID(pos, file),
				File:     file,
				Position: pos,
			}
			c.players = append(c.players, ref)
			c.byID[ref.ID] = ref
		}
	}
	return c
}

// DefaultCatalog returns the built-in 24-player pool.
func DefaultCatalog() *Catalog {
	return NewCatalog(defaultPlayerFiles)
}

// Players returns a copy of the full ordered player list.
func (c *Catalog) Players() []models.PlayerRef {
	out := make([]models.PlayerRef, len(c.players))
	copy(out, c.players)
	return out
}

// Lookup finds a player by id.
func (c *Catalog) Lookup(id string) (models.PlayerRef, bool) {
	ref, ok := c.byID[id]
	return ref, ok
}

// Size returns the number of players in the pool.
func (c *Catalog) Size() int {
	return len(c.players)
}

// PlayerName strips the image extension from a player file, which is how the
// front end labels players.
func PlayerName(file string) string {
	return strings.TrimSuffix(file, ".gif")
}
