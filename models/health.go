package models

import "time"

// DataSourceHealth is a point-in-time view of one provider's request
// accounting as tracked by the registry.
type DataSourceHealth struct {
	Name               string    `json:"name"`
	Priority           int       `json:"priority"`
	IsActive           bool      `json:"is_active"`
	TotalRequests      int64     `json:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	LastSuccess        time.Time `json:"last_success"`
	LastFailure        time.Time `json:"last_failure"`
	AvgResponseTimeMs  float64   `json:"avg_response_time_ms"`
}

// ProviderCredentials holds already-decrypted credentials for one provider.
// Credential storage and encryption are external concerns.
type ProviderCredentials struct {
	ClientID  string `yaml:"client_id" json:"client_id"`
	APIKey    string `yaml:"api_key" json:"-"`
	APISecret string `yaml:"api_secret" json:"-"`
	PIN       string `yaml:"pin" json:"-"`
	TOTPSeed  string `yaml:"totp_seed" json:"-"`
}
