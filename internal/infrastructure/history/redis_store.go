package history

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/doeshing/phocache/internal/domain"
	"github.com/doeshing/phocache/internal/ports"
)

// DefaultRedisKeyPrefix namespaces every key written by RedisStore.
const DefaultRedisKeyPrefix = "phocache:"

// insertScript sets KEYS[1] to ARGV[1] unless it exists and adds ARGV[3] to
// the timeline KEYS[2] with score ARGV[2]. Returns 1 when written, 0 when taken.
var insertScript = redis.NewScript(`
if not redis.call('SET', KEYS[1], ARGV[1], 'NX') then
	return 0
end
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[3])
return 1
`)

// clearScript deletes every record listed in the timeline KEYS[1] (record
// keys are ARGV[1] .. id) and then the timeline.
var clearScript = redis.NewScript(`
local ids = redis.call('ZRANGE', KEYS[1], 0, -1)
for _, id in ipairs(ids) do
	redis.call('DEL', ARGV[1] .. id)
end
redis.call('DEL', KEYS[1])
return #ids
`)

// RedisStore keeps each record as a JSON string and orders each category with
// a sorted set scored by timestamp.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps a connected client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// RedisOpener connects with ConnectRedis on first use.
func RedisOpener(opts RedisOptions, log ports.Logger) Opener {
	return func(ctx context.Context) (ports.TransactionalStore, error) {
		client, err := ConnectRedis(ctx, opts, log)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, DefaultRedisKeyPrefix), nil
	}
}

func (s *RedisStore) recordKey(category domain.Category, id string) string {
	return s.prefix + "record:" + string(category) + ":" + id
}

func (s *RedisStore) timelineKey(category domain.Category) string {
	return s.prefix + "timeline:" + string(category)
}

func (s *RedisStore) partitionsKey() string {
	return s.prefix + "partitions"
}

// OpenPartition registers the category in the partition set.
func (s *RedisStore) OpenPartition(ctx context.Context, category domain.Category) error {
	return s.client.SAdd(ctx, s.partitionsKey(), string(category)).Err()
}

// Insert writes the record and its timeline entry in one script, failing
// with domain.ErrDuplicateKey when the id is taken.
func (s *RedisStore) Insert(ctx context.Context, category domain.Category, record domain.Record) error {
	data, err := encodeRecord(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	keys := []string{s.recordKey(category, record.ID), s.timelineKey(category)}
	created, err := insertScript.Run(ctx, s.client, keys, data, record.Timestamp, record.ID).Int()
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	if created == 0 {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateKey, record.ID)
	}
	return nil
}

// Scan reads the timeline backwards and fetches the records in one MGET.
func (s *RedisStore) Scan(ctx context.Context, category domain.Category) ([]domain.Record, error) {
	ids, err := s.client.ZRevRange(ctx, s.timelineKey(category), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read timeline: %w", err)
	}
	records := make([]domain.Record, 0, len(ids))
	if len(ids) == 0 {
		return records, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(category, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decodeRecord([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("decode record %s: %w", ids[i], err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Delete removes the record and its timeline entry atomically.
func (s *RedisStore) Delete(ctx context.Context, category domain.Category, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.recordKey(category, id))
		pipe.ZRem(ctx, s.timelineKey(category), id)
		return nil
	})
	return err
}

// Clear removes every record of the category and the timeline itself in one
// script, so a concurrent insert lands either before or after it.
func (s *RedisStore) Clear(ctx context.Context, category domain.Category) error {
	keys := []string{s.timelineKey(category)}
	recordPrefix := s.recordKey(category, "")
	if err := clearScript.Run(ctx, s.client, keys, recordPrefix).Err(); err != nil {
		return fmt.Errorf("clear %s: %w", category, err)
	}
	return nil
}

// Count returns the timeline cardinality.
func (s *RedisStore) Count(ctx context.Context, category domain.Category) (int, error) {
	n, err := s.client.ZCard(ctx, s.timelineKey(category)).Result()
	return int(n), err
}

// UsedBytes reads used_memory from INFO memory.
func (s *RedisStore) UsedBytes(ctx context.Context) (int64, error) {
	info, err := s.client.Info(ctx, "memory").Result()
	if err != nil {
		return 0, err
	}
	return parseUsedMemory(info)
}

func parseUsedMemory(info string) (int64, error) {
	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if value, ok := strings.CutPrefix(line, "used_memory:"); ok {
			return strconv.ParseInt(value, 10, 64)
		}
	}
	return 0, errors.New("used_memory not reported")
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ ports.TransactionalStore = (*RedisStore)(nil)
