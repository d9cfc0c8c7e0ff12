package models

import "time"

// IntradayOIRow is the persisted per-cycle aggregate, unique on
// (symbol, timestamp, strike, option type).
type IntradayOIRow struct {
	Symbol       string     `json:"symbol"`
	Timestamp    time.Time  `json:"timestamp"`
	Strike       float64    `json:"strike"`
	OptionType   OptionType `json:"option_type"`
	OpenInterest int64      `json:"open_interest"`
	OIChange     int64      `json:"oi_change"`
	LastPrice    float64    `json:"last_price"`
	Volume       int64      `json:"volume"`
	DataSource   string     `json:"data_source"`
}

// DailyOIRow is the end-of-day aggregate, unique on
// (symbol, date, strike, option type). Date is truncated to the trading day.
type DailyOIRow struct {
	Symbol       string     `json:"symbol"`
	Date         time.Time  `json:"date"`
	Strike       float64    `json:"strike"`
	OptionType   OptionType `json:"option_type"`
	OpenInterest int64      `json:"open_interest"`
	OIChange     int64      `json:"oi_change"`
	ClosePrice   float64    `json:"close_price"`
	Volume       int64      `json:"volume"`
	DataSource   string     `json:"data_source"`
}

// RawArchiveRecord describes one archived raw snapshot payload.
type RawArchiveRecord struct {
	Date        time.Time `json:"date"`
	Symbol      string    `json:"symbol"`
	DataType    string    `json:"data_type"`
	Location    string    `json:"location"`
	ByteSize    int64     `json:"byte_size"`
	RecordCount int       `json:"record_count"`
	Checksum    string    `json:"checksum"`
}

// IntradayRows flattens a snapshot into persisted intraday rows, one per
// strike and option type. Legs with zero OI and volume are still written so
// retried cycles upsert the same key set.
func IntradayRows(snap *MarketSnapshot) []IntradayOIRow {
	rows := make([]IntradayOIRow, 0, len(snap.Chain)*2)
	for _, s := range snap.Chain {
		rows = append(rows, IntradayOIRow{
			Symbol:       snap.Symbol,
			Timestamp:    snap.Timestamp,
			Strike:       s.Strike,
			OptionType:   OptionCall,
			OpenInterest: s.Call.OpenInterest,
			OIChange:     s.Call.OIChange,
			LastPrice:    s.Call.LastPrice,
			Volume:       s.Call.Volume,
			DataSource:   snap.DataSource,
		}, IntradayOIRow{
			Symbol:       snap.Symbol,
			Timestamp:    snap.Timestamp,
			Strike:       s.Strike,
			OptionType:   OptionPut,
			OpenInterest: s.Put.OpenInterest,
			OIChange:     s.Put.OIChange,
			LastPrice:    s.Put.LastPrice,
			Volume:       s.Put.Volume,
			DataSource:   snap.DataSource,
		})
	}
	return rows
}

// DailyRows flattens the final snapshot of a trading day into daily rows.
func DailyRows(snap *MarketSnapshot, day time.Time) []DailyOIRow {
	rows := make([]DailyOIRow, 0, len(snap.Chain)*2)
	for _, s := range snap.Chain {
		rows = append(rows, DailyOIRow{
			Symbol:       snap.Symbol,
			Date:         day,
			Strike:       s.Strike,
			OptionType:   OptionCall,
			OpenInterest: s.Call.OpenInterest,
			OIChange:     s.Call.OIChange,
			ClosePrice:   s.Call.LastPrice,
			Volume:       s.Call.Volume,
			DataSource:   snap.DataSource,
		}, DailyOIRow{
			Symbol:       snap.Symbol,
			Date:         day,
			Strike:       s.Strike,
			OptionType:   OptionPut,
			OpenInterest: s.Put.OpenInterest,
			OIChange:     s.Put.OIChange,
			ClosePrice:   s.Put.LastPrice,
			Volume:       s.Put.Volume,
			DataSource:   snap.DataSource,
		})
	}
	return rows
}
