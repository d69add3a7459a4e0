package models

import (
	"fmt"
	"time"
)

// Sync defaults used until the backend supplies its own configuration
const (
	DefaultSyncIntervalSeconds      = 300
	DefaultHeartbeatIntervalSeconds = 30
	DefaultMaxRetryAttempts         = 3
)

// SyncResource identifies a watermark kept in sync metadata
type SyncResource string

const (
	SyncResourceProducts     SyncResource = "products"
	SyncResourceCustomers    SyncResource = "customers"
	SyncResourceUsers        SyncResource = "users"
	SyncResourceFiscalConfig SyncResource = "fiscal_config"
)

// SyncConfig controls heartbeat and periodic sync scheduling
type SyncConfig struct {
	SyncIntervalSeconds      int `json:"sync_interval_seconds" validate:"gt=0"`
	HeartbeatIntervalSeconds int `json:"heartbeat_interval_seconds" validate:"gt=0"`
	MaxRetryAttempts         int `json:"max_retry_attempts" validate:"gt=0"`
}

// DefaultSyncConfig returns the local cache used before first contact
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		SyncIntervalSeconds:      DefaultSyncIntervalSeconds,
		HeartbeatIntervalSeconds: DefaultHeartbeatIntervalSeconds,
		MaxRetryAttempts:         DefaultMaxRetryAttempts,
	}
}

// WithDefaults fills zero fields with defaults
func (c SyncConfig) WithDefaults() SyncConfig {
	d := DefaultSyncConfig()
	if c.SyncIntervalSeconds <= 0 {
		c.SyncIntervalSeconds = d.SyncIntervalSeconds
	}
	if c.HeartbeatIntervalSeconds <= 0 {
		c.HeartbeatIntervalSeconds = d.HeartbeatIntervalSeconds
	}
	if c.MaxRetryAttempts <= 0 {
		c.MaxRetryAttempts = d.MaxRetryAttempts
	}
	return c
}

// SyncInterval returns the periodic sync interval as a duration
func (c SyncConfig) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}

// HeartbeatInterval returns the heartbeat interval as a duration
func (c SyncConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}

// Validate validates the sync configuration
func (c SyncConfig) Validate() error {
	if c.SyncIntervalSeconds <= 0 {
		return fmt.Errorf("sync interval must be positive")
	}
	if c.HeartbeatIntervalSeconds <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	if c.MaxRetryAttempts <= 0 {
		return fmt.Errorf("max retry attempts must be positive")
	}
	return nil
}

// SyncStatusSnapshot is a point-in-time view of the orchestrator
type SyncStatusSnapshot struct {
	IsOnline     bool       `json:"isOnline"`
	IsSyncing    bool       `json:"isSyncing"`
	LastSyncTime *time.Time `json:"lastSyncTime"`
	Errors       []string   `json:"errors"`
}
