package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

// FileSource serves prices from a local CSV table with columns
// ticker,date,close. It backs offline rebuilds and tests; its latest row per
// ticker doubles as the live quote.
type FileSource struct {
	closes map[string]map[types.Date]decimal.Decimal
	latest map[string]latestClose
}

type latestClose struct {
	date  types.Date
	price decimal.Decimal
}

// NewFileSource loads the whole price table into memory.
func NewFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read price file: %w", err)
	}

	fs := &FileSource{
		closes: make(map[string]map[types.Date]decimal.Decimal),
		latest: make(map[string]latestClose),
	}
	for i, rec := range records {
		if i == 0 && rec[0] == "ticker" {
			continue // header
		}
		if len(rec) != 3 {
			return nil, fmt.Errorf("price file row %d: want 3 columns, got %d", i+1, len(rec))
		}
		date, err := types.ParseDate(rec[1])
		if err != nil {
			return nil, fmt.Errorf("price file row %d: %w", i+1, err)
		}
		price, err := decimal.NewFromString(rec[2])
		if err != nil {
			return nil, fmt.Errorf("price file row %d: %w", i+1, err)
		}
		fs.add(rec[0], date, price)
	}
	return fs, nil
}

func (fs *FileSource) add(ticker string, date types.Date, price decimal.Decimal) {
	byDay, ok := fs.closes[ticker]
	if !ok {
		byDay = make(map[types.Date]decimal.Decimal)
		fs.closes[ticker] = byDay
	}
	byDay[date] = price
	if cur, ok := fs.latest[ticker]; !ok || date.After(cur.date) {
		fs.latest[ticker] = latestClose{date: date, price: price}
	}
}

func (fs *FileSource) ClosePrice(_ context.Context, ticker string, date types.Date) (decimal.Decimal, bool, error) {
	price, ok := fs.closes[ticker][date]
	return price, ok, nil
}

func (fs *FileSource) CurrentPrice(_ context.Context, ticker string) (decimal.Decimal, bool, error) {
	cur, ok := fs.latest[ticker]
	return cur.price, ok, nil
}
