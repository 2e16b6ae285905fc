package store

import (
    "context"
    "encoding/json"
    "fmt"
    "strconv"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// RedisStore keeps records as hashes that expire with their storage entry.
type RedisStore struct {
    client *redis.Client
    keyNS  string
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, err }
    c := redis.NewClient(opt)
    if err := c.Ping(context.Background()).Err(); err != nil { return nil, err }
    return &RedisStore{client: c, keyNS: "conversion"}, nil
}

func (s *RedisStore) key(id string) string { return fmt.Sprintf("%s:%s", s.keyNS, id) }

func (s *RedisStore) Save(ctx context.Context, rec Record, ttl time.Duration) error {
    m := map[string]interface{}{
        "pages":    rec.Pages,
        "filename": rec.Filename,
        "size":     rec.Size,
        "created":  rec.CreatedAt.Format(time.RFC3339Nano),
    }
    if len(rec.Skipped) > 0 {
        b, _ := json.Marshal(rec.Skipped)
        m["skipped"] = string(b)
    }
    if rec.ArchiveURL != "" { m["archive_url"] = rec.ArchiveURL }

    k := s.key(rec.ID)
    _, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
        p.HSet(ctx, k, m)
        p.Expire(ctx, k, ttl)
        return nil
    })
    return err
}

func (s *RedisStore) Get(ctx context.Context, id string) (Record, bool, error) {
    res, err := s.client.HGetAll(ctx, s.key(id)).Result()
    if err != nil { return Record{}, false, err }
    if len(res) == 0 { return Record{}, false, nil }
    rec := Record{ID: id, Filename: res["filename"], ArchiveURL: res["archive_url"]}
    rec.Pages, _ = strconv.Atoi(res["pages"])
    rec.Size, _ = strconv.ParseInt(res["size"], 10, 64)
    if v := res["created"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { rec.CreatedAt = t }
    }
    if v := res["skipped"]; v != "" {
        _ = json.Unmarshal([]byte(v), &rec.Skipped)
    }
    return rec, true, nil
}

// SetArchiveURL updates an existing record without touching its expiry.
func (s *RedisStore) SetArchiveURL(ctx context.Context, id, url string) error {
    k := s.key(id)
    n, err := s.client.Exists(ctx, k).Result()
    if err != nil || n == 0 { return err }
    return s.client.HSet(ctx, k, "archive_url", url).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *RedisStore) Close() error { return s.client.Close() }
