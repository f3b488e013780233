package feed

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/Eternal-Darkness-07/GoQuant/internal/domain"
)

// bookMessage is the venue wire format for a full L2 snapshot. Price levels
// arrive as [price, size, ...] string arrays to preserve venue precision.
type bookMessage struct {
	Timestamp string     `json:"timestamp"`
	Exchange  string     `json:"exchange"`
	Symbol    string     `json:"symbol"`
	Asks      [][]string `json:"asks"`
	Bids      [][]string `json:"bids"`
}

// parseBookMessage decodes and validates one raw feed message. All five
// fields are required; an empty level array is a valid thin book. Any
// malformed level rejects the whole message.
func parseBookMessage(raw []byte) (domain.OrderbookSnapshot, error) {
	var m bookMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("feed: %w: %v", domain.ErrInvalidMessage, err)
	}

	if m.Timestamp == "" {
		return domain.OrderbookSnapshot{}, fmt.Errorf("feed: %w: timestamp", domain.ErrMissingField)
	}
	if m.Exchange == "" {
		return domain.OrderbookSnapshot{}, fmt.Errorf("feed: %w: exchange", domain.ErrMissingField)
	}
	if m.Symbol == "" {
		return domain.OrderbookSnapshot{}, fmt.Errorf("feed: %w: symbol", domain.ErrMissingField)
	}
	if m.Asks == nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("feed: %w: asks", domain.ErrMissingField)
	}
	if m.Bids == nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("feed: %w: bids", domain.ErrMissingField)
	}

	asks, err := parseLevels(m.Asks, "asks")
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("feed: %w", err)
	}
	bids, err := parseLevels(m.Bids, "bids")
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("feed: %w", err)
	}

	// Index 0 must be the best level on each side regardless of the order
	// the venue sent them in.
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })

	return domain.OrderbookSnapshot{
		Exchange:  m.Exchange,
		Symbol:    m.Symbol,
		Timestamp: m.Timestamp,
		Asks:      asks,
		Bids:      bids,
	}, nil
}

func parseLevels(raw [][]string, side string) ([]domain.PriceLevel, error) {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for i, pair := range raw {
		if len(pair) < 2 {
			return nil, fmt.Errorf("%w: %s[%d] has %d fields", domain.ErrBadPriceLevel, side, i, len(pair))
		}
		price, err := strconv.ParseFloat(pair[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%s[%d] price %q: %w", side, i, pair[0], err)
		}
		size, err := strconv.ParseFloat(pair[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s[%d] size %q: %w", side, i, pair[1], err)
		}
		if price < 0 || size < 0 {
			return nil, fmt.Errorf("%w: %s[%d] is negative", domain.ErrBadPriceLevel, side, i)
		}
		levels = append(levels, domain.PriceLevel{Price: price, Size: size})
	}
	return levels, nil
}
