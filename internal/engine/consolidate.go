package engine

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

// Consolidator enforces "at most one canonical snapshot per trading day".
// For each day a snapshot moves through NO_SNAPSHOT -> INTRADAY ->
// MARKET_CLOSE; the close snapshot is protected from later intraday saves
// unless the save was triggered by a trade execution.
type Consolidator struct {
	loc         *time.Location
	closeHour   int
	closeMinute int
	log         zerolog.Logger
}

func NewConsolidator(loc *time.Location, closeHour, closeMinute int, log zerolog.Logger) *Consolidator {
	return &Consolidator{
		loc:         loc,
		closeHour:   closeHour,
		closeMinute: closeMinute,
		log:         log,
	}
}

// IsMarketClose classifies a save timestamp: a snapshot stamped exactly at
// the configured close time (in the trading timezone) is the day's canonical
// market-close snapshot; anything else is intraday.
func (c *Consolidator) IsMarketClose(ts time.Time) bool {
	local := ts.In(c.loc)
	return local.Hour() == c.closeHour && local.Minute() == c.closeMinute
}

// Merge resolves an incoming save against the day's existing snapshot and
// returns the row set to store plus whether to store it at all. existing is
// nil when the day has no snapshot yet. Duplicate days cannot come out of
// Merge: the result always replaces the day's rows, never adds a second set.
func (c *Consolidator) Merge(existing *types.Snapshot, incoming types.Snapshot, tradeExecution bool) (types.Snapshot, bool) {
	incomingClose := incoming.IsMarketClose || c.IsMarketClose(incoming.Timestamp)
	incoming.IsMarketClose = incomingClose
	incoming.Recalculate()

	if existing == nil {
		return incoming, true
	}

	day := types.DateOf(existing.Timestamp, c.loc)

	if !existing.IsMarketClose {
		// INTRADAY -> MARKET_CLOSE overwrites, INTRADAY -> INTRADAY updates
		// in place; either way the incoming rows are the fresher derivation.
		return incoming, true
	}

	if incomingClose {
		// Re-saving the close snapshot is idempotent: update in place, warn.
		c.log.Warn().
			Stringer("date", day).
			Msg("market close snapshot re-saved, updating in place")
		incoming.Timestamp = existing.Timestamp
		incoming.Recalculate()
		return incoming, true
	}

	if !tradeExecution {
		// A later intraday price refresh never replaces the close snapshot.
		c.log.Debug().
			Stringer("date", day).
			Msg("intraday save after market close ignored")
		return *existing, false
	}

	// Trade-execution bypass: a trade must be reflected even after close.
	// The day keeps its canonical close identity; only the rows change.
	c.log.Info().
		Stringer("date", day).
		Msg("trade execution updating market close snapshot")
	incoming.Timestamp = existing.Timestamp
	incoming.IsMarketClose = true
	incoming.Recalculate()
	return incoming, true
}
