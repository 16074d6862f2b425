package history

import (
	"github.com/goccy/go-json"

	"github.com/doeshing/phocache/internal/domain"
)

// storedRecord is the value layout used by the key-value engines. The result
// payload is kept as text so it round-trips byte for byte.
type storedRecord struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Timestamp int64  `json:"timestamp"`
	Image     string `json:"image"`
	Thumbnail string `json:"thumbnail"`
	Result    string `json:"result"`
	Location  string `json:"location,omitempty"`
}

func encodeRecord(record domain.Record) ([]byte, error) {
	return json.Marshal(storedRecord{
		ID:        record.ID,
		Category:  string(record.Category),
		Timestamp: record.Timestamp,
		Image:     record.Image,
		Thumbnail: record.Thumbnail,
		Result:    string(record.Result),
		Location:  record.Location,
	})
}

func decodeRecord(data []byte) (domain.Record, error) {
	var stored storedRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.Record{}, err
	}
	return domain.Record{
		ID:        stored.ID,
		Category:  domain.Category(stored.Category),
		Timestamp: stored.Timestamp,
		Image:     stored.Image,
		Thumbnail: stored.Thumbnail,
		Result:    domain.Payload(stored.Result),
		Location:  stored.Location,
	}, nil
}
