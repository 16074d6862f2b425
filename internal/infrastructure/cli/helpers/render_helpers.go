package helpers

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/doeshing/phocache/internal/domain"
	"github.com/doeshing/phocache/internal/pkg/bytesize"
)

// TimestampFormat is used for every timestamp the CLI prints.
const TimestampFormat = "2006-01-02 15:04:05"

// RecordSummary is the printable view of a record without image data.
type RecordSummary struct {
	ID            string          `json:"id"`
	Category      domain.Category `json:"category"`
	Time          string          `json:"time"`
	Location      string          `json:"location,omitempty"`
	ImageSize     string          `json:"image_size"`
	ThumbnailSize string          `json:"thumbnail_size"`
	Result        domain.Payload  `json:"result"`
}

// Summarize builds the printable view of rec.
func Summarize(rec domain.Record) RecordSummary {
	return RecordSummary{
		ID:            rec.ID,
		Category:      rec.Category,
		Time:          FormatTimestamp(rec.Timestamp),
		Location:      rec.Location,
		ImageSize:     bytesize.Format(bytesize.SizeOf(rec.Image)),
		ThumbnailSize: bytesize.Format(bytesize.SizeOf(rec.Thumbnail)),
		Result:        rec.Result,
	}
}

// FormatTimestamp renders unix milliseconds in local time.
func FormatTimestamp(ms int64) string {
	return time.UnixMilli(ms).Local().Format(TimestampFormat)
}

// RenderRecordLines prints one line per record, newest first.
func RenderRecordLines(out io.Writer, records []domain.Record) {
	for _, rec := range records {
		location := rec.Location
		if location == "" {
			location = "-"
		}
		fmt.Fprintf(out, "%s | %s | %s | %s\n",
			FormatTimestamp(rec.Timestamp),
			rec.ID,
			location,
			bytesize.Format(bytesize.SizeOf(rec.Image)))
	}
}

// WriteJSON pretty-prints v.
func WriteJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
