package auth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"go.etcd.io/bbolt"
)

// Revoker remembers tokens that were logged out before they expired
type Revoker interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

const revokedKeyTpl = "projectdesk:revoked:%s" // projectdesk:revoked:${jti}

// RedisRevoker shares revocations between instances. Keys expire with the token.
type RedisRevoker struct {
	redis *redis.Client
}

// NewRedisRevoker connects to the redis server at url
func NewRedisRevoker(ctx context.Context, url string) (*RedisRevoker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisRevoker{redis: client}, nil
}

func (r *RedisRevoker) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := r.redis.Set(ctx, fmt.Sprintf(revokedKeyTpl, jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.redis.Exists(ctx, fmt.Sprintf(revokedKeyTpl, jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return n > 0, nil
}

// Close closes the redis client
func (r *RedisRevoker) Close() error {
	return r.redis.Close()
}

var revokedBucket = []byte("revoked_tokens")

// BoltRevoker keeps revocations in a local bbolt file, for single-instance deployments
type BoltRevoker struct {
	db  *bbolt.DB
	now func() time.Time
}

// OpenBoltRevoker opens (or creates) the revocation file at path and drops
// entries whose tokens have expired
func OpenBoltRevoker(path string) (*BoltRevoker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open revocation store: %w", err)
	}
	r := &BoltRevoker{db: db, now: time.Now}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(revokedBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	if _, err := r.Purge(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *BoltRevoker) Revoke(_ context.Context, jti string, until time.Time) error {
	if !until.After(r.now()) {
		return nil
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		stamp, err := until.UTC().MarshalBinary()
		if err != nil {
			return err
		}
		return tx.Bucket(revokedBucket).Put([]byte(jti), stamp)
	})
}

func (r *BoltRevoker) IsRevoked(_ context.Context, jti string) (bool, error) {
	revoked := false
	err := r.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(revokedBucket).Get([]byte(jti))
		if v == nil {
			return nil
		}
		var until time.Time
		if err := until.UnmarshalBinary(v); err != nil {
			return err
		}
		revoked = until.After(r.now())
		return nil
	})
	return revoked, err
}

// Purge deletes expired entries and returns how many were removed
func (r *BoltRevoker) Purge() (int, error) {
	removed := 0
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(revokedBucket)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var until time.Time
			if err := until.UnmarshalBinary(v); err != nil || !until.After(r.now()) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

// Close closes the bbolt file
func (r *BoltRevoker) Close() error {
	return r.db.Close()
}
