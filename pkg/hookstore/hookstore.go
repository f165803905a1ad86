// Package hookstore is the Hook State Store (spec §4.1): a
// filesystem-backed, per-call-id key/value store that lets the
// pre-tool-hook, post-tool-hook and stop-hook processes — separate OS
// processes invoked by the assistant CLI around every tool call —
// rendezvous without a daemon. Grounded on the advisory per-file
// locking pattern in intelligencedev-manifold's internal/file_editor
// (github.com/gofrs/flock), adapted from a single-file editor lock to
// a directory of small JSON records.
package hookstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/jetgogoing/sage/pkg/model"
)

const (
	lockRetries  = 10
	lockBackoff  = 50 * time.Millisecond
	dirMode      = 0o700
	fileMode     = 0o600
	// listConcurrency bounds the number of hook-record files
	// ListBySession reads in parallel; each read takes its own
	// per-file flock so concurrent reads across files don't contend.
	listConcurrency = 8
)

// Store is the Hook State Store. Zero value is not usable; build with
// New.
type Store struct {
	dir string
}

// New opens (creating if necessary) a hook-state store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("create hook state dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) completePath(callID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("complete_%s.json", callID))
}

func (s *Store) lockPath(callID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("complete_%s.json.lock", callID))
}

// RecordPre creates a new record or, if one exists, overwrites its
// pre_call field. Always returns nil: lock contention and read/write
// I/O failures are logged and the update is dropped, per spec §4.1's
// "fail soft" rule (see withWriteLock).
func (s *Store) RecordPre(callID string, pre model.PreCallEvent) error {
	return s.withWriteLock(callID, func(rec *model.HookRecord) {
		rec.CallID = callID
		rec.PreCall = &pre
	})
}

// RecordPost updates an existing record's post_call, creating the
// record if missing (the post event alone carries enough identity to
// do so).
func (s *Store) RecordPost(callID string, post model.PostCallEvent) error {
	return s.withWriteLock(callID, func(rec *model.HookRecord) {
		rec.CallID = callID
		rec.PostCall = &post
	})
}

// withWriteLock performs a read-modify-write under an exclusive
// advisory lock with bounded retry. On persistent lock contention (or
// a read/write I/O failure) the error is logged and swallowed: the
// call proceeds and the missing enrichment degrades a later
// aggregation rather than crashing it.
func (s *Store) withWriteLock(callID string, mutate func(*model.HookRecord)) error {
	lk := flock.New(s.lockPath(callID))
	locked, err := tryLockRetry(lk)
	if err != nil || !locked {
		slog.Warn("hookstore: failed to acquire write lock, dropping update",
			"call_id", callID, "error", err)
		return nil
	}
	defer lk.Unlock()

	rec, _ := s.readLocked(callID)
	if rec == nil {
		rec = &model.HookRecord{CallID: callID}
	}
	mutate(rec)

	data, err := json.Marshal(rec)
	if err != nil {
		slog.Warn("hookstore: failed to marshal record", "call_id", callID, "error", err)
		return nil
	}
	if err := os.WriteFile(s.completePath(callID), data, fileMode); err != nil {
		slog.Warn("hookstore: failed to write record", "call_id", callID, "error", err)
		return nil
	}
	return nil
}

// Read returns the full record for callID, or (nil, false) if absent
// or unreadable. Partial/corrupt JSON is treated as absent and logged.
func (s *Store) Read(callID string) (*model.HookRecord, bool) {
	lk := flock.New(s.lockPath(callID))
	locked, err := tryRLockRetry(lk)
	if err != nil || !locked {
		slog.Warn("hookstore: failed to acquire read lock", "call_id", callID, "error", err)
		return nil, false
	}
	defer lk.Unlock()

	rec, ok := s.readLocked(callID)
	return rec, ok
}

func (s *Store) readLocked(callID string) (*model.HookRecord, bool) {
	data, err := os.ReadFile(s.completePath(callID))
	if err != nil {
		return nil, false
	}
	var rec model.HookRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		slog.Warn("hookstore: corrupt record treated as absent", "call_id", callID, "error", err)
		return nil, false
	}
	return &rec, true
}

// ListBySession returns all records whose pre_call.session_id matches
// sessionID, ordered by pre_call.timestamp ascending. Records with no
// pre_call are skipped (they cannot be attributed to a session).
func (s *Store) ListBySession(sessionID string) ([]*model.HookRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list hook state dir: %w", err)
	}

	var (
		mu      sync.Mutex
		records []*model.HookRecord
	)
	g := new(errgroup.Group)
	g.SetLimit(listConcurrency)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !isCompleteFile(name) {
			continue
		}
		g.Go(func() error {
			callID := callIDFromCompleteFile(name)
			rec, ok := s.Read(callID)
			if !ok || rec.PreCall == nil || rec.PreCall.SessionID != sessionID {
				return nil
			}
			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
			return nil
		})
	}
	// Every goroutine above returns nil, so Wait has no error to report;
	// it is called only to wait for all reads to finish.
	_ = g.Wait()

	sort.Slice(records, func(i, j int) bool {
		return records[i].PreCall.Timestamp.Before(records[j].PreCall.Timestamp)
	})
	return records, nil
}

// EvictOlderThan removes records whose file mtime is older than age.
func (s *Store) EvictOlderThan(age time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("list hook state dir: %w", err)
	}

	cutoff := time.Now().Add(-age)
	var evicted int
	for _, e := range entries {
		if e.IsDir() || !isCompleteFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			callID := callIDFromCompleteFile(e.Name())
			if s.removeOne(callID) {
				evicted++
			}
		}
	}
	return evicted, nil
}

// DeleteMany best-effort removes records for the given call ids after
// they have been consumed by aggregation.
func (s *Store) DeleteMany(callIDs []string) {
	for _, id := range callIDs {
		s.removeOne(id)
	}
}

func (s *Store) removeOne(callID string) bool {
	err := os.Remove(s.completePath(callID))
	_ = os.Remove(s.lockPath(callID))
	return err == nil
}

func isCompleteFile(name string) bool {
	return len(name) > len("complete_.json") &&
		name[:len("complete_")] == "complete_" &&
		name[len(name)-len(".json"):] == ".json"
}

func callIDFromCompleteFile(name string) string {
	return name[len("complete_") : len(name)-len(".json")]
}

func tryLockRetry(lk *flock.Flock) (bool, error) {
	var lastErr error
	for i := 0; i < lockRetries; i++ {
		ok, err := lk.TryLock()
		if ok {
			return true, nil
		}
		lastErr = err
		time.Sleep(lockBackoff)
	}
	return false, lastErr
}

func tryRLockRetry(lk *flock.Flock) (bool, error) {
	var lastErr error
	for i := 0; i < lockRetries; i++ {
		ok, err := lk.TryRLock()
		if ok {
			return true, nil
		}
		lastErr = err
		time.Sleep(lockBackoff)
	}
	return false, lastErr
}
