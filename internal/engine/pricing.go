package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

// PriceUnavailableError aborts a rebuild when the terminal snapshot cannot be
// fully priced. Historical days degrade to flagged fallbacks instead.
type PriceUnavailableError struct {
	Ticker string
	Date   types.Date
}

func (e *PriceUnavailableError) Error() string {
	return fmt.Sprintf("no price available for %s on %s", e.Ticker, e.Date)
}

// PriceGap records a (ticker, day) pair dropped from a historical snapshot
// because no price could be resolved at any fallback level.
type PriceGap struct {
	Ticker string
	Date   types.Date
}

// priceBook carries the last observed close per ticker across the day walk,
// backing the forward-fill fallback.
type priceBook struct {
	last map[string]bookEntry
}

type bookEntry struct {
	price decimal.Decimal
	date  types.Date
}

func newPriceBook() *priceBook {
	return &priceBook{last: make(map[string]bookEntry)}
}

func (b *priceBook) observe(ticker string, date types.Date, price decimal.Decimal) {
	if cur, ok := b.last[ticker]; ok && date.Before(cur.date) {
		return
	}
	b.last[ticker] = bookEntry{price: price, date: date}
}

func (b *priceBook) lastKnown(ticker string) (bookEntry, bool) {
	e, ok := b.last[ticker]
	return e, ok
}

// fetched is one worker-pool result. Absent prices and fetch errors both end
// up with ok=false; the error is kept for logging.
type fetched struct {
	ticker string
	price  decimal.Decimal
	ok     bool
	err    error
}

// fetchCloses resolves close prices for tickers on date, fanning out over a
// bounded worker pool. Lot and snapshot mutation stay sequential; this is the
// only parallel step in a rebuild. The returned error is only a context
// cancellation.
func fetchCloses(ctx context.Context, src priceSource, tickers []string, date types.Date, workers int) (map[string]fetched, error) {
	fetch := func(ctx context.Context, ticker string) fetched {
		price, ok, err := src.ClosePrice(ctx, ticker, date)
		return fetched{ticker: ticker, price: price, ok: ok && err == nil, err: err}
	}
	return fanOut(ctx, tickers, workers, fetch)
}

// fetchLive resolves live quotes for tickers, same pool semantics.
func fetchLive(ctx context.Context, src priceSource, tickers []string, workers int) (map[string]fetched, error) {
	fetch := func(ctx context.Context, ticker string) fetched {
		price, ok, err := src.CurrentPrice(ctx, ticker)
		return fetched{ticker: ticker, price: price, ok: ok && err == nil, err: err}
	}
	return fanOut(ctx, tickers, workers, fetch)
}

func fanOut(ctx context.Context, tickers []string, workers int, fetch func(context.Context, string) fetched) (map[string]fetched, error) {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(tickers) {
		workers = len(tickers)
	}

	jobs := make(chan string)
	results := make(chan fetched)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ticker := range jobs {
				results <- fetch(ctx, ticker)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, t := range tickers {
			select {
			case jobs <- t:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[string]fetched, len(tickers))
	for r := range results {
		out[r.ticker] = r
	}
	return out, ctx.Err()
}
