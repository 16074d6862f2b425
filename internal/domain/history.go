// Package domain defines the history records, categories and settings shared by
// phocache services and storage adapters.
package domain

import (
	"encoding/json"
	"fmt"
)

// Category names one history partition.
type Category string

const (
	CategoryScanner         Category = "scanner"
	CategoryFoodRecognition Category = "food-recognition"
	CategoryPriceCheck      Category = "price-check"
)

// Categories returns the closed set of partitions, in creation order.
func Categories() []Category {
	return []Category{CategoryScanner, CategoryFoodRecognition, CategoryPriceCheck}
}

// ParseCategory validates a category name.
func ParseCategory(name string) (Category, error) {
	for _, c := range Categories() {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

// Valid reports whether c belongs to the closed set.
func (c Category) Valid() bool {
	_, err := ParseCategory(string(c))
	return err == nil
}

// Payload is an analysis result stored and returned verbatim.
type Payload = json.RawMessage

// Record is one persisted history entry. Records are never mutated once stored.
type Record struct {
	ID        string   `json:"id"`
	Category  Category `json:"category"`
	Timestamp int64    `json:"timestamp"`
	Image     string   `json:"image"`
	Thumbnail string   `json:"thumbnail"`
	Result    Payload  `json:"result"`
	Location  string   `json:"location,omitempty"`
}

// StorageEstimate is the engine-reported usage against the configured quota.
type StorageEstimate struct {
	UsedBytes  int64
	QuotaBytes int64
}

// StorageStats is StorageEstimate rendered for display.
type StorageStats struct {
	UsedBytes      int64   `json:"used_bytes"`
	QuotaBytes     int64   `json:"quota_bytes"`
	UsedFormatted  string  `json:"used_formatted"`
	QuotaFormatted string  `json:"quota_formatted"`
	Percentage     float64 `json:"percentage"`
}

// CompressOptions bounds the detail-view re-encoding.
type CompressOptions struct {
	MaxWidth  int
	MaxHeight int
	Quality   float64
}

// ThumbnailOptions sizes the list-view square crop.
type ThumbnailOptions struct {
	Width   int
	Height  int
	Quality float64
}
