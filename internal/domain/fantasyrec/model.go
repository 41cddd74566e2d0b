package fantasyrec

import (
	"fmt"
	"strings"
	"time"

	"github.com/prasetyadi/statmerge/internal/domain/player"
)

// Record is one player's fantasy-platform attributes at a point in time.
// Records are append-only so price history stays queryable.
type Record struct {
	PlayerID string
	Price    float64
	Position player.Position
	AsOfDate time.Time
}

func (r Record) Validate() error {
	if strings.TrimSpace(r.PlayerID) == "" {
		return fmt.Errorf("fantasy record player id is required")
	}
	if r.Price < 0 {
		return fmt.Errorf("fantasy record price cannot be negative")
	}
	if r.AsOfDate.IsZero() {
		return fmt.Errorf("fantasy record as-of date is required")
	}
	return nil
}
