// Package audit persists every verification outcome in an append-only
// WAL, so reconciled records and their computation traces can be
// replayed later even if the calling shell discards them.
package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/txrecon/txrecon/internal/domain"
)

const (
	DefaultDir = "./wal/audit"

	segmentThreshold = 1000
	maxSegments      = 100

	entryKeyPrefix = "verify_"
)

// Journal is a WAL-backed verification log.
type Journal struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// EntryRecord pairs a journal entry with its WAL index.
type EntryRecord struct {
	Index uint64
	Entry domain.AuditEntry
}

// NewJournal opens (or creates) the journal in dir.
func NewJournal(dir string) (*Journal, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "audit_",
		SegmentThreshold: segmentThreshold,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init audit WAL")
	}
	return &Journal{wal: wal}, nil
}

// Append writes one verification outcome to the journal.
func (j *Journal) Append(entry domain.AuditEntry) error {
	if j == nil || j.wal == nil {
		return errors.New("audit journal is not initialized")
	}
	if entry.Hash == "" {
		return errors.New("audit entry hash is required")
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "marshal audit entry")
	}

	key := fmt.Sprintf("%s%s_%s", entryKeyPrefix, entry.ChainSymbol, entry.Hash)

	j.mu.Lock()
	defer j.mu.Unlock()

	nextIndex := j.wal.CurrentIndex() + 1
	return j.wal.Write(nextIndex, key, payload)
}

// EntriesAfter returns all entries written after the provided WAL index.
func (j *Journal) EntriesAfter(index uint64) ([]EntryRecord, error) {
	if j == nil || j.wal == nil {
		return nil, errors.New("audit journal is not initialized")
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	current := j.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]EntryRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := j.wal.Get(idx)
		if err != nil {
			continue
		}
		if !strings.HasPrefix(key, entryKeyPrefix) {
			continue
		}

		var entry domain.AuditEntry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return nil, errors.Wrap(err, "decode audit entry")
		}
		records = append(records, EntryRecord{Index: idx, Entry: entry})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (j *Journal) CurrentIndex() uint64 {
	if j == nil || j.wal == nil {
		return 0
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (j *Journal) Close() error {
	if j == nil || j.wal == nil {
		return errors.New("audit journal is not initialized")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Close()
}
