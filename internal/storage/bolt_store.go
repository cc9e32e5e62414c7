package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

var kvBucket = []byte("kv")

var errNoBucket = errors.New("kv bucket missing")

// record is one stored value. Encoded as an 8-byte big-endian unix expiry
// (0 = never) followed by the value bytes.
type record struct {
	value     string
	expiresAt time.Time
}

const recordHeader = 8

func (r record) encode() []byte {
	buf := make([]byte, recordHeader+len(r.value))
	if !r.expiresAt.IsZero() {
		binary.BigEndian.PutUint64(buf[:recordHeader], uint64(r.expiresAt.Unix()))
	}
	copy(buf[recordHeader:], r.value)
	return buf
}

func (r record) liveAt(now time.Time) bool {
	return r.expiresAt.IsZero() || r.expiresAt.After(now)
}

func decodeRecord(raw []byte) (record, bool) {
	if len(raw) < recordHeader {
		return record{}, false
	}
	secs := int64(binary.BigEndian.Uint64(raw[:recordHeader]))
	if secs < 0 {
		return record{}, false
	}
	r := record{value: string(raw[recordHeader:])}
	if secs > 0 {
		r.expiresAt = time.Unix(secs, 0)
	}
	return r, true
}

// boltStore keeps tokens in a single-file BoltDB and purges expired keys
// at most once per cleanup interval.
type boltStore struct {
	db          *bolt.DB
	purgeEvery  time.Duration
	purgeMu     sync.Mutex
	lastCleanup atomic.Int64
}

func openBolt(path string, opts Options) (Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create token db directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open token db %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(kvBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv bucket: %w", err)
	}

	s := &boltStore{db: db, purgeEvery: opts.CleanupInterval}
	s.lastCleanup.Store(time.Now().Unix())
	return s, nil
}

func (s *boltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the value under key unless it has expired; expired keys are removed on read.
func (s *boltStore) Get(key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, nil
	}
	now := time.Now()
	if err := s.purgeIfDue(now); err != nil {
		return "", false, err
	}

	var (
		rec   record
		found bool
		stale bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(kvBucket)
		if b == nil {
			return errNoBucket
		}
		raw := b.Get([]byte(key))
		if raw == nil {
			return nil
		}
		r, ok := decodeRecord(raw)
		if !ok || !r.liveAt(now) {
			stale = true
			return nil
		}
		rec, found = r, true
		return nil
	})
	switch {
	case err != nil:
		return "", false, fmt.Errorf("read %q: %w", key, err)
	case stale:
		return "", false, s.Delete(key)
	}
	return rec.value, found, nil
}

// Set writes value under key. ttl <= 0 keeps it until deleted.
func (s *boltStore) Set(key, value string, ttl time.Duration) error {
	if s == nil || s.db == nil {
		return nil
	}
	now := time.Now()
	if err := s.purgeIfDue(now); err != nil {
		return err
	}

	rec := record{value: value}
	if ttl > 0 {
		rec.expiresAt = now.Add(ttl)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(kvBucket)
		if b == nil {
			return errNoBucket
		}
		return b.Put([]byte(key), rec.encode())
	})
}

func (s *boltStore) Delete(key string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(kvBucket)
		if b == nil {
			return errNoBucket
		}
		return b.Delete([]byte(key))
	})
}

// purgeIfDue drops every expired or unreadable record once the cleanup interval has passed.
func (s *boltStore) purgeIfDue(now time.Time) error {
	due := func() bool {
		return now.Sub(time.Unix(s.lastCleanup.Load(), 0)) >= s.purgeEvery
	}
	if !due() {
		return nil
	}

	s.purgeMu.Lock()
	defer s.purgeMu.Unlock()
	if !due() {
		return nil
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(kvBucket)
		if b == nil {
			return errNoBucket
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if r, ok := decodeRecord(v); ok && r.liveAt(now) {
				continue
			}
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("purge expired tokens: %w", err)
	}
	s.lastCleanup.Store(now.Unix())
	return nil
}
