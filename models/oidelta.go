package models

import "time"

// TriggerReason records what initiated an acquisition cycle.
type TriggerReason string

const (
	TriggerScheduled     TriggerReason = "scheduled"
	TriggerManualRefresh TriggerReason = "manual_refresh"
	TriggerAlert         TriggerReason = "alert_trigger"
)

// DeltaSeverity is a hint for downstream consumers about how large an OI
// move is relative to the configured floors.
type DeltaSeverity string

const (
	SeverityModerate DeltaSeverity = "moderate"
	SeverityLarge    DeltaSeverity = "large"
)

// OIDeltaRecord captures one observed open-interest change for a
// (symbol, strike, option type) key.
type OIDeltaRecord struct {
	Symbol        string        `json:"symbol"`
	Strike        float64       `json:"strike"`
	OptionType    OptionType    `json:"option_type"`
	Timestamp     time.Time     `json:"timestamp"`
	OldOI         int64         `json:"old_oi"`
	NewOI         int64         `json:"new_oi"`
	DeltaOI       int64         `json:"delta_oi"`
	PercentChange float64       `json:"percent_change"`
	TriggerReason TriggerReason `json:"trigger_reason"`
	Severity      DeltaSeverity `json:"severity"`
	DataSource    string        `json:"data_source"`
}
