package models

import (
	"encoding/json"
	"time"
)

// Delta is the backend's answer to "what changed since the watermark"
type Delta[T any] struct {
	Items         []T       `json:"items"`
	DeletedIDs    []int64   `json:"deleted_ids"`
	SyncTimestamp time.Time `json:"sync_timestamp"`
}

// IsEmpty reports whether the delta carries nothing to persist
func (d *Delta[T]) IsEmpty() bool {
	return len(d.Items)+len(d.DeletedIDs) == 0
}

// UnmarshalJSON accepts the changed records under "items" or under the
// resource name ("products", "customers", "users").
func (d *Delta[T]) UnmarshalJSON(data []byte) error {
	var raw struct {
		Items         []T        `json:"items"`
		Products      []T        `json:"products"`
		Customers     []T        `json:"customers"`
		Users         []T        `json:"users"`
		DeletedIDs    []int64    `json:"deleted_ids"`
		SyncTimestamp *time.Time `json:"sync_timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch {
	case raw.Items != nil:
		d.Items = raw.Items
	case raw.Products != nil:
		d.Items = raw.Products
	case raw.Customers != nil:
		d.Items = raw.Customers
	default:
		d.Items = raw.Users
	}

	d.DeletedIDs = raw.DeletedIDs
	d.SyncTimestamp = time.Time{}
	if raw.SyncTimestamp != nil {
		d.SyncTimestamp = *raw.SyncTimestamp
	}
	return nil
}
