package reconcile

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rickgao/pokerledger/internal/model"
)

// ErrUnbalancedGame matches every *UnbalancedGameError via errors.Is.
var ErrUnbalancedGame = errors.New("unbalanced game")

// UnbalancedGameError is returned when a game's results do not sum to zero
// within the configured tolerance. Nothing for the game is committed.
type UnbalancedGameError struct {
	GameKey   model.GameKey
	Sum       decimal.Decimal
	Tolerance decimal.Decimal
}

func (e *UnbalancedGameError) Error() string {
	return fmt.Sprintf("unbalanced game %s: results sum to %s, tolerance %s",
		e.GameKey, e.Sum.StringFixed(2), e.Tolerance.StringFixed(2))
}

// Is reports ErrUnbalancedGame as a match.
func (e *UnbalancedGameError) Is(target error) bool {
	return target == ErrUnbalancedGame
}
