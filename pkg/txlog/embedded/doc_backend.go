package embedded

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cuemby/chronodb/pkg/txlog"
	bolt "go.etcd.io/bbolt"
)

var logBucket = []byte("log")

// boltOffsetLogBackend is a plain bbolt-backed append-only log used
// for the doc-topic: records are addressed by an 8-byte big-endian
// offset key, same ordering discipline as pkg/kv/boltkv but scoped to
// a private file rather than the shared index keyspace.
type boltOffsetLogBackend struct {
	db *bolt.DB
}

func newBoltOffsetLogBackend(path string) (*boltOffsetLogBackend, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("embedded: open doc log %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(logBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &boltOffsetLogBackend{db: db}, nil
}

func offsetKey(offset uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, offset)
	return b
}

// envelope packs a record's key (content-hash, possibly nil) and
// value and a millisecond timestamp into one bbolt value, since the
// bucket only has room for one value per offset key.
func encodeEnvelope(key, value []byte, when time.Time) []byte {
	out := make([]byte, 0, 4+len(key)+8+len(value))
	var klen [4]byte
	binary.BigEndian.PutUint32(klen[:], uint32(len(key)))
	out = append(out, klen[:]...)
	out = append(out, key...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(when.UnixMilli()))
	out = append(out, ts[:]...)
	out = append(out, value...)
	return out
}

func decodeEnvelope(raw []byte) (key, value []byte, when time.Time, err error) {
	if len(raw) < 12 {
		return nil, nil, time.Time{}, fmt.Errorf("embedded: truncated doc-log envelope (%d bytes)", len(raw))
	}
	klen := binary.BigEndian.Uint32(raw[:4])
	if uint32(len(raw)) < 4+klen+8 {
		return nil, nil, time.Time{}, fmt.Errorf("embedded: truncated doc-log envelope key field")
	}
	key = raw[4 : 4+klen]
	ts := binary.BigEndian.Uint64(raw[4+klen : 4+klen+8])
	value = raw[4+klen+8:]
	return key, value, time.UnixMilli(int64(ts)).UTC(), nil
}

func (b *boltOffsetLogBackend) append(key, value []byte) (int64, time.Time, error) {
	var offset uint64
	now := time.Now().UTC()
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(logBucket)
		next, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		offset = next
		return bucket.Put(offsetKey(offset), encodeEnvelope(key, value, now))
	})
	if err != nil {
		return 0, time.Time{}, err
	}
	return int64(offset), now, nil
}

func (b *boltOffsetLogBackend) readFrom(offset int64, max int) ([]txlog.Record, error) {
	var out []txlog.Record
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(logBucket).Cursor()
		start := offset
		if start < 1 {
			start = 1
		}
		for k, v := c.Seek(offsetKey(uint64(start))); k != nil && len(out) < max; k, v = c.Next() {
			off := binary.BigEndian.Uint64(k)
			key, value, when, err := decodeEnvelope(v)
			if err != nil {
				return err
			}
			out = append(out, txlog.Record{
				Offset:    int64(off),
				Key:       append([]byte(nil), key...),
				Value:     append([]byte(nil), value...),
				Timestamp: when,
			})
		}
		return nil
	})
	return out, err
}

func (b *boltOffsetLogBackend) close() error {
	return b.db.Close()
}
