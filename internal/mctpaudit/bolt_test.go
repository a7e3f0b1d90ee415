package mctpaudit

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"go.etcd.io/bbolt"

	"github.com/mctp-go/mctp-core/internal/mctpmetrics"
	"github.com/mctp-go/mctp-core/internal/mctppipeline"
)

func TestBoltSinkRecordsAndCloses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.bdb")

	sink, err := Open(path, 4, mctpmetrics.NoOpObserver{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	sink.Record(mctppipeline.AuditRecord{
		Tag:            2,
		Dst:            0x10,
		Src:            0x20,
		TagOwner:       true,
		Type:           0x01,
		CompletionCode: mctppipeline.CompletionOK,
		Submitted:      time.Now(),
		Completed:      time.Now(),
	})

	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var count int
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			t.Fatal("expected actions bucket to exist")
		}
		return b.ForEach(func(k, v []byte) error {
			count++
			var r record
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if r.Tag != 2 || r.Dst != 0x10 {
				t.Errorf("unexpected record contents: %+v", r)
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one persisted record, got %d", count)
	}
}

func TestBoltSinkDropsWhenChannelFull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.bdb")
	var dropped int
	obs := countingObserver{onDrop: func() { dropped++ }}

	sink, err := Open(path, 1, obs)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sink.Close()

	rec := mctppipeline.AuditRecord{Tag: 1, CompletionCode: mctppipeline.CompletionOK}
	for i := 0; i < 100; i++ {
		sink.Record(rec)
	}

	if dropped == 0 {
		t.Skip("writer goroutine drained the buffer before it ever filled; not a deterministic failure")
	}
}

type countingObserver struct {
	onDrop func()
}

func (countingObserver) ObserveDrop(mctpmetrics.DropReason)  {}
func (countingObserver) ObserveMessage()                     {}
func (countingObserver) ObserveActionCompleted(uint64, bool) {}
func (countingObserver) ObserveQueueDepth(uint32)            {}
func (o countingObserver) ObserveAuditDropped()              { o.onDrop() }
