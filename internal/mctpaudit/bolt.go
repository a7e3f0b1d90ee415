// Package mctpaudit implements the optional best-effort action-audit log:
// a bbolt-backed sink that records one row per retired action (tag,
// message type, completion code, timestamps) for post-mortem debugging of
// retry storms, without ever perturbing the completer's hot path. It is
// grounded on phenix/store/bolt.go's BoltDB (open-a-file, ensure-bucket,
// Update-to-write idiom), adapted from a config-object store to an
// append-only event log keyed by a monotonic sequence number.
package mctpaudit

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/mctp-go/mctp-core/internal/mctpmetrics"
	"github.com/mctp-go/mctp-core/internal/mctppipeline"
)

var bucketName = []byte("actions")

// record is the JSON-serialized shape of one audit row.
type record struct {
	Tag            int       `json:"tag"`
	Dst            uint8     `json:"dst"`
	Src            uint8     `json:"src"`
	TagOwner       bool      `json:"tag_owner"`
	Type           uint8     `json:"type"`
	CompletionCode int       `json:"completion_code"`
	Submitted      time.Time `json:"submitted"`
	Completed      time.Time `json:"completed"`
}

// BoltSink implements mctppipeline.AuditSink over a bbolt file. Record
// never blocks: it does a non-blocking send on a buffered channel drained
// by a dedicated writer goroutine, exactly the "off the hot path" design
// SPEC_FULL.md calls for. A full channel drops the record and reports it
// to obs rather than backing up the completer.
type BoltSink struct {
	db  *bbolt.DB
	obs mctpmetrics.Observer

	ch   chan record
	done chan struct{}

	closeOnce sync.Once
}

// Open creates or opens the bbolt file at path and starts the background
// writer. bufSize bounds how many pending records may queue before
// Record starts dropping; obs may be nil (drops are silently discarded).
func Open(path string, bufSize int, obs mctpmetrics.Observer) (*BoltSink, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{NoFreelistSync: true, Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("mctpaudit: opening bolt file %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("mctpaudit: creating bucket: %w", err)
	}

	if obs == nil {
		obs = mctpmetrics.NoOpObserver{}
	}
	if bufSize <= 0 {
		bufSize = 256
	}

	s := &BoltSink{
		db:   db,
		obs:  obs,
		ch:   make(chan record, bufSize),
		done: make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Record satisfies mctppipeline.AuditSink. It is safe to call from the
// completer's loop: a full buffer drops the record rather than blocking.
func (s *BoltSink) Record(rec mctppipeline.AuditRecord) {
	select {
	case s.ch <- record{
		Tag:            rec.Tag,
		Dst:            rec.Dst,
		Src:            rec.Src,
		TagOwner:       rec.TagOwner,
		Type:           rec.Type,
		CompletionCode: rec.CompletionCode,
		Submitted:      rec.Submitted,
		Completed:      rec.Completed,
	}:
	default:
		s.obs.ObserveAuditDropped()
	}
}

// Close stops the writer goroutine and closes the underlying bbolt file.
// Safe to call more than once.
func (s *BoltSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.ch)
		<-s.done
		err = s.db.Close()
	})
	return err
}

func (s *BoltSink) run() {
	defer close(s.done)
	var seq uint64
	for rec := range s.ch {
		seq++
		if err := s.appendOne(seq, rec); err != nil {
			s.obs.ObserveAuditDropped()
		}
	}
}

func (s *BoltSink) appendOne(seq uint64, rec record) error {
	v, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, v)
	})
}

var _ mctppipeline.AuditSink = (*BoltSink)(nil)
