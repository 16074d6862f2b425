package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/phocache/internal/domain"
	"github.com/doeshing/phocache/internal/pkg/bytesize"
	"github.com/doeshing/phocache/internal/ports"
)

// Settings tune the history service. Zero values select the defaults.
type Settings struct {
	MaxItems       int
	SoftLimitBytes int64
	Compress       domain.CompressOptions
	Thumbnail      domain.ThumbnailOptions
}

// SettingsFromConfig maps the loaded configuration onto Settings.
func SettingsFromConfig(cfg domain.Config) (Settings, error) {
	soft, err := cfg.SoftLimitBytes()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		MaxItems:       cfg.HistoryMaxItems(),
		SoftLimitBytes: soft,
		Compress:       cfg.Compression.CompressOptions(),
		Thumbnail:      cfg.Thumbnail.ThumbnailOptions(),
	}, nil
}

// Service saves captured photos with their analysis results and keeps each
// category bounded to MaxItems records.
type Service struct {
	Store      ports.RecordStore
	Transcoder ports.ImageTranscoder
	Logger     ports.Logger
	Settings   Settings

	// Now and NewID are replaceable for tests.
	Now   func() time.Time
	NewID func(category domain.Category, timestamp int64) string
}

// Save derives the compressed image and thumbnail, stores the record and
// evicts the oldest records beyond the cap.
func (s *Service) Save(ctx context.Context, category domain.Category, image string, result domain.Payload, location string) (domain.Record, error) {
	if s.Store == nil || s.Transcoder == nil || s.Logger == nil {
		return domain.Record{}, errors.New("history.Service dependencies not satisfied")
	}
	if !category.Valid() {
		return domain.Record{}, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
	}
	payload, err := normalizePayload(result)
	if err != nil {
		return domain.Record{}, err
	}

	originalSize := bytesize.SizeOf(image)
	if limit := s.softLimit(); originalSize > limit {
		s.Logger.Warn("image above soft limit, compressing anyway", map[string]interface{}{
			"category": string(category),
			"size":     bytesize.Format(originalSize),
			"limit":    bytesize.Format(limit),
		})
	}

	compressed, err := s.Transcoder.Compress(image, s.Settings.Compress)
	if err != nil {
		s.Logger.Error("compress image", err, map[string]interface{}{"category": string(category)})
		return domain.Record{}, fmt.Errorf("compress image: %w", err)
	}
	thumbnail, err := s.Transcoder.Thumbnail(image, s.Settings.Thumbnail)
	if err != nil {
		s.Logger.Error("create thumbnail", err, map[string]interface{}{"category": string(category)})
		return domain.Record{}, fmt.Errorf("create thumbnail: %w", err)
	}
	s.logCompression(originalSize, compressed, thumbnail)

	timestamp := s.now().UnixMilli()
	record := domain.Record{
		ID:        s.newID(category, timestamp),
		Category:  category,
		Timestamp: timestamp,
		Image:     compressed,
		Thumbnail: thumbnail,
		Result:    payload,
		Location:  strings.TrimSpace(location),
	}

	if err := s.Store.Insert(ctx, category, record); err != nil {
		s.Logger.Error("save history record", err, map[string]interface{}{"category": string(category), "id": record.ID})
		return domain.Record{}, fmt.Errorf("save history record: %w", err)
	}

	if err := s.evict(ctx, category); err != nil {
		return record, err
	}
	s.logStorage(ctx)
	return record, nil
}

// evict deletes every record past the newest MaxItems. Each delete is tried;
// records already deleted stay deleted when a later one fails.
func (s *Service) evict(ctx context.Context, category domain.Category) error {
	records, err := s.Store.ScanAll(ctx, category)
	if err != nil {
		s.Logger.Error("scan for eviction", err, map[string]interface{}{"category": string(category)})
		return fmt.Errorf("enforce history cap: %w", err)
	}
	max := s.maxItems()
	if len(records) <= max {
		return nil
	}

	var errs []error
	for _, rec := range records[max:] {
		if err := s.Store.DeleteOne(ctx, category, rec.ID); err != nil {
			s.Logger.Error("evict history record", err, map[string]interface{}{"category": string(category), "id": rec.ID})
			errs = append(errs, err)
		}
	}
	s.Logger.Debug("evicted history records", map[string]interface{}{
		"category": string(category),
		"evicted":  len(records) - max - len(errs),
	})
	if len(errs) > 0 {
		return fmt.Errorf("enforce history cap: %w", errors.Join(errs...))
	}
	return nil
}

// List returns up to MaxItems records, newest first. Store failures are
// logged and yield an empty list.
func (s *Service) List(ctx context.Context, category domain.Category) []domain.Record {
	records, err := s.Store.ScanAll(ctx, category)
	if err != nil {
		s.Logger.Error("get history", err, map[string]interface{}{"category": string(category)})
		return []domain.Record{}
	}
	if max := s.maxItems(); len(records) > max {
		records = records[:max]
	}
	return records
}

// Get finds one listed record by id.
func (s *Service) Get(ctx context.Context, category domain.Category, id string) (domain.Record, bool) {
	for _, rec := range s.List(ctx, category) {
		if rec.ID == id {
			return rec, true
		}
	}
	return domain.Record{}, false
}

// DeleteItem removes one record. Deleting an unknown id succeeds.
func (s *Service) DeleteItem(ctx context.Context, category domain.Category, id string) error {
	if err := s.Store.DeleteOne(ctx, category, id); err != nil {
		s.Logger.Error("delete history item", err, map[string]interface{}{"category": string(category), "id": id})
		return err
	}
	return nil
}

// ClearAll removes every record of the category.
func (s *Service) ClearAll(ctx context.Context, category domain.Category) error {
	if err := s.Store.Clear(ctx, category); err != nil {
		s.Logger.Error("clear history", err, map[string]interface{}{"category": string(category)})
		return err
	}
	return nil
}

// Count returns the number of stored records, or 0 on failure.
func (s *Service) Count(ctx context.Context, category domain.Category) int {
	n, err := s.Store.Count(ctx, category)
	if err != nil {
		s.Logger.Error("get history count", err, map[string]interface{}{"category": string(category)})
		return 0
	}
	return n
}

// StorageStats reports usage against quota, or zero stats on failure.
func (s *Service) StorageStats(ctx context.Context) domain.StorageStats {
	est, err := s.Store.StorageEstimate(ctx)
	if err != nil {
		s.Logger.Error("get storage estimate", err, nil)
		est = domain.StorageEstimate{}
	}
	return statsFor(est)
}

// Export writes the listed records of a category as JSON Lines.
func (s *Service) Export(ctx context.Context, category domain.Category, w io.Writer) (int, error) {
	records, err := s.Store.ScanAll(ctx, category)
	if err != nil {
		return 0, fmt.Errorf("export %s: %w", category, err)
	}
	if max := s.maxItems(); len(records) > max {
		records = records[:max]
	}
	enc := json.NewEncoder(w)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return i, fmt.Errorf("export %s: %w", category, err)
		}
	}
	return len(records), nil
}

func statsFor(est domain.StorageEstimate) domain.StorageStats {
	stats := domain.StorageStats{
		UsedBytes:      est.UsedBytes,
		QuotaBytes:     est.QuotaBytes,
		UsedFormatted:  bytesize.Format(est.UsedBytes),
		QuotaFormatted: bytesize.Format(est.QuotaBytes),
	}
	if est.QuotaBytes > 0 {
		stats.Percentage = float64(est.UsedBytes) / float64(est.QuotaBytes) * 100
	}
	return stats
}

func (s *Service) logCompression(originalSize int64, compressed, thumbnail string) {
	compressedSize := bytesize.SizeOf(compressed)
	fields := map[string]interface{}{
		"original":   bytesize.Format(originalSize),
		"compressed": bytesize.Format(compressedSize),
		"thumbnail":  bytesize.Format(bytesize.SizeOf(thumbnail)),
		"saved":      bytesize.Format(originalSize - compressedSize),
	}
	if originalSize > 0 {
		ratio := (1 - float64(compressedSize)/float64(originalSize)) * 100
		fields["compression_ratio"] = fmt.Sprintf("%.1f%%", ratio)
	}
	s.Logger.Debug("image compression stats", fields)
}

func (s *Service) logStorage(ctx context.Context) {
	est, err := s.Store.StorageEstimate(ctx)
	if err != nil {
		return
	}
	stats := statsFor(est)
	s.Logger.Debug("storage usage", map[string]interface{}{
		"used":       stats.UsedFormatted,
		"quota":      stats.QuotaFormatted,
		"percentage": fmt.Sprintf("%.2f%%", stats.Percentage),
	})
}

func (s *Service) maxItems() int {
	if s.Settings.MaxItems <= 0 {
		return domain.DefaultMaxHistoryItems
	}
	return s.Settings.MaxItems
}

func (s *Service) softLimit() int64 {
	if s.Settings.SoftLimitBytes <= 0 {
		return domain.DefaultSoftLimitBytes
	}
	return s.Settings.SoftLimitBytes
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) newID(category domain.Category, timestamp int64) string {
	if s.NewID != nil {
		return s.NewID(category, timestamp)
	}
	return NewRecordID(category, timestamp)
}

// NewRecordID returns "<category>-<timestamp>-<9 random base36 chars>".
func NewRecordID(category domain.Category, timestamp int64) string {
	return fmt.Sprintf("%s-%d-%s", category, timestamp, randomSuffix())
}

func randomSuffix() string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	id := uuid.New()
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = alphabet[int(id[i])%len(alphabet)]
	}
	return string(suffix)
}

// normalizePayload checks that the result is JSON and compacts it so every
// engine returns the same bytes.
func normalizePayload(result domain.Payload) (domain.Payload, error) {
	if len(bytes.TrimSpace(result)) == 0 {
		return domain.Payload("null"), nil
	}
	if !json.Valid(result) {
		return nil, domain.ErrInvalidPayload
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, result); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return domain.Payload(buf.Bytes()), nil
}
