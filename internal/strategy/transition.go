package strategy

import (
	"fmt"

	"statarb/internal/domain"
)

// Thresholds are the z-score levels of the spread state machine.
type Thresholds struct {
	EntryZ float64
	ExitZ  float64
	StopZ  float64
}

// Validate checks 0 <= ExitZ < EntryZ < StopZ.
func (t Thresholds) Validate() error {
	if t.ExitZ < 0 || t.ExitZ >= t.EntryZ || t.EntryZ >= t.StopZ {
		return fmt.Errorf("thresholds want 0 <= exit < entry < stop, got exit=%v entry=%v stop=%v",
			t.ExitZ, t.EntryZ, t.StopZ)
	}
	return nil
}

// Transition is the spread position state machine. Given the current state
// and z-score it returns the next state, the side to signal and whether a
// transition fired. Stop-outs and mean-reversion exits both go to flat.
func Transition(state domain.SpreadState, z float64, t Thresholds) (domain.SpreadState, domain.Side, bool) {
	switch state {
	case domain.StateFlat:
		if z > t.EntryZ {
			return domain.StateShortSpread, domain.SideShort, true
		}
		if z < -t.EntryZ {
			return domain.StateLongSpread, domain.SideLong, true
		}
	case domain.StateLongSpread:
		if z >= -t.ExitZ || z < -t.StopZ {
			return domain.StateFlat, domain.SideFlat, true
		}
	case domain.StateShortSpread:
		if z <= t.ExitZ || z > t.StopZ {
			return domain.StateFlat, domain.SideFlat, true
		}
	}
	return state, state.Side(), false
}
