// Package store implements the durable artifacts of §3/§6: the per-job
// journal record (<jobid>.pkl), the keyed metadata store (<jobid>.input),
// the keyed result store (<jobid>.output), and the advisory lock file
// (<jobid>.lock) that mediates writer access to the pair, plus the ARCHIVE/
// directory used to retire old completed jobs (§4.6).
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wbia/jobengine/internal/jobengineerr"
	"github.com/wbia/jobengine/internal/jobtypes"
	"github.com/wbia/jobengine/internal/platform/clock"
	"github.com/wbia/jobengine/internal/platform/logger"
)

const archiveDirName = "ARCHIVE"

// Store is the sole owner of on-disk job state. Only the Collector writes
// metadata/result content through it; the journal is written by the Client
// facade (on submit and when recovery bumps attempts) and by the Collector
// (its completion mark), and recovery also archives through it.
type Store struct {
	dir     string
	log     *logger.Logger
	clock   *clock.Clock
	lockWaitDeadline time.Duration
	// PollInterval is the spin interval used while waiting for a lock to
	// clear (§5 default 1s). Exported so tests can shrink it.
	PollInterval time.Duration

	mu       sync.Mutex
	jobLocks map[string]*sync.Mutex
}

// New ensures dir and dir/ARCHIVE exist and returns a Store rooted there.
func New(dir string, log *logger.Logger, clk *clock.Clock, lockWaitDeadline time.Duration) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("store: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir %s: %w", dir, err)
	}
	if err := os.MkdirAll(filepath.Join(dir, archiveDirName), 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir archive: %w", err)
	}
	return &Store{
		dir:              dir,
		log:              log,
		clock:            clk,
		lockWaitDeadline: lockWaitDeadline,
		PollInterval:     1 * time.Second,
		jobLocks:         make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) journalPath(jobid string) string { return filepath.Join(s.dir, jobid+".pkl") }
func (s *Store) inputPath(jobid string) string   { return filepath.Join(s.dir, jobid+".input") }
func (s *Store) outputPath(jobid string) string  { return filepath.Join(s.dir, jobid+".output") }
func (s *Store) lockPath(jobid string) string    { return filepath.Join(s.dir, jobid+".lock") }

// ---------------------------------------------------------------- locking

// jobMutex returns the process-local mutex guarding a jobid's lock file,
// creating it on first use. This is the "process-local mutex" §5 requires
// so two goroutines in this process never race to create the same lock
// file; the file itself is what mediates across processes.
func (s *Store) jobMutex(jobid string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.jobLocks[jobid]
	if !ok {
		m = &sync.Mutex{}
		s.jobLocks[jobid] = m
	}
	return m
}

// AcquireLock implements the §5 acquire protocol: spin until the lock file
// is absent, then under the process-local mutex re-check absence and
// create it. The returned release func deletes the file; call it exactly
// once.
func (s *Store) AcquireLock(ctx context.Context, jobid string) (func() error, error) {
	path := s.lockPath(jobid)
	deadline := time.Now().Add(s.lockWaitDeadline)
	jm := s.jobMutex(jobid)

	for {
		if _, err := os.Stat(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("store: stat lock %s: %w", jobid, err)
		} else if err == nil {
			// lock held by someone; fall through to the wait/poll below.
		} else {
			jm.Lock()
			release, created, createErr := s.createLockFile(path, jm)
			if createErr != nil {
				return nil, createErr
			}
			if created {
				return release, nil
			}
			// lost the race between Stat and create; poll again.
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: jobid=%s", jobengineerr.ErrLockTimeout, jobid)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pollInterval()):
		}
	}
}

// createLockFile assumes jm is locked; it re-checks absence and creates the
// file atomically (O_EXCL). jm guards only that re-check and create and is
// unlocked before returning on every outcome; the lock file alone marks
// the lock as held until release deletes it.
func (s *Store) createLockFile(path string, jm *sync.Mutex) (release func() error, created bool, err error) {
	if _, statErr := os.Stat(path); statErr == nil {
		jm.Unlock()
		return nil, false, nil
	}
	f, createErr := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if createErr != nil {
		jm.Unlock()
		if os.IsExist(createErr) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("store: create lock: %w", createErr)
	}
	_ = f.Close()
	jm.Unlock()
	return func() error {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("store: release lock: %w", rmErr)
		}
		return nil
	}, true, nil
}

// CreateLockMarker creates the jobid's lock file unconditionally (no-op if
// already present). This is the §4.5 notification-handling usage: the
// Collector holds one lock marker per job for its whole received..completed
// lifetime, distinct from AcquireLock's mutual-exclusion wait/spin. The
// WriteJournal/WriteMetadata/WriteResult methods take neither lock; they
// rely on the write-to-.tmp-then-rename in writeJSONAtomic.
func (s *Store) CreateLockMarker(jobid string) error {
	f, err := os.OpenFile(s.lockPath(jobid), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// RemoveLockMarker deletes the jobid's lock file; missing is not an error.
func (s *Store) RemoveLockMarker(jobid string) error {
	err := os.Remove(s.lockPath(jobid))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) pollInterval() time.Duration {
	if s.PollInterval <= 0 {
		return 1 * time.Second
	}
	return s.PollInterval
}

// DeleteLeftoverLocks removes every *.lock file in the store directory.
// Called once at engine startup (§4.1): a held lock cannot survive a
// process restart, so any lock file found is necessarily stale.
func (s *Store) DeleteLeftoverLocks() error {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.lock"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if rmErr := os.Remove(m); rmErr != nil && !os.IsNotExist(rmErr) {
			return rmErr
		}
	}
	return nil
}

// -------------------------------------------------------------- journal

type journalEnvelope struct {
	Request   jobtypes.RequestContext `json:"request"`
	Attempts  int                     `json:"attempts"`
	Completed bool                    `json:"completed"`
}

func (s *Store) WriteJournal(jobid string, rec jobtypes.JournalRecord) error {
	return writeJSONAtomic(s.journalPath(jobid), journalEnvelope(rec))
}

func (s *Store) ReadJournal(jobid string) (*jobtypes.JournalRecord, error) {
	var env journalEnvelope
	if err := readJSON(s.journalPath(jobid), &env); err != nil {
		return nil, err
	}
	rec := jobtypes.JournalRecord(env)
	return &rec, nil
}

func (s *Store) JournalExists(jobid string) bool {
	_, err := os.Stat(s.journalPath(jobid))
	return err == nil
}

// -------------------------------------------------------------- metadata

type metadataEnvelope struct {
	Metadata jobtypes.Metadata `json:"metadata"`
}

func (s *Store) WriteMetadata(jobid string, md jobtypes.Metadata) error {
	return writeJSONAtomic(s.inputPath(jobid), metadataEnvelope{Metadata: md})
}

// ReadMetadata returns (nil, nil) for a nonexistent store per §5 ("reads of
// nonexistent stores return null rather than erroring").
func (s *Store) ReadMetadata(jobid string) (*jobtypes.Metadata, error) {
	var env metadataEnvelope
	ok, err := readJSONOptional(s.inputPath(jobid), &env)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", jobengineerr.ErrStoreUnreadable, err)
	}
	if !ok {
		return nil, nil
	}
	return &env.Metadata, nil
}

// ---------------------------------------------------------------- result

type resultEnvelope struct {
	Result jobtypes.ExecResult `json:"result"`
}

func (s *Store) WriteResult(jobid string, res jobtypes.ExecResult) error {
	return writeJSONAtomic(s.outputPath(jobid), resultEnvelope{Result: res})
}

func (s *Store) ReadResult(jobid string) (*jobtypes.ExecResult, error) {
	var env resultEnvelope
	ok, err := readJSONOptional(s.outputPath(jobid), &env)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", jobengineerr.ErrStoreUnreadable, err)
	}
	if !ok {
		return nil, nil
	}
	return &env.Result, nil
}

// ---------------------------------------------------------------- listing

// ListJobIDs returns every jobid with a journal record in the live store
// (ARCHIVE/ is never scanned), sorted for deterministic iteration.
func (s *Store) ListJobIDs() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.pkl"))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		base := filepath.Base(m)
		out = append(out, strings.TrimSuffix(base, ".pkl"))
	}
	sort.Strings(out)
	return out, nil
}

// --------------------------------------------------------------- archive

// Archive moves every file named <jobid>.* out of the live directory into
// ARCHIVE/, as a unit (§4.6). Missing files are not an error.
func (s *Store) Archive(jobid string) error {
	matches, err := filepath.Glob(filepath.Join(s.dir, jobid+".*"))
	if err != nil {
		return err
	}
	archiveDir := filepath.Join(s.dir, archiveDirName)
	for _, m := range matches {
		dst := filepath.Join(archiveDir, filepath.Base(m))
		if err := os.Rename(m, dst); err != nil {
			return fmt.Errorf("store: archive %s: %w", m, err)
		}
	}
	return nil
}

// PastArchiveHorizon implements the §9 preserved open question: the
// comparison truncates both the completion timestamp and "now" to
// midnight in the configured timezone before differencing, so a job
// completed at 23:59 yesterday and one completed at 00:01 yesterday age
// out together at local midnight, not 24h-on-the-dot later.
func (s *Store) PastArchiveHorizon(completedAt time.Time, horizon time.Duration, now time.Time) bool {
	if completedAt.IsZero() {
		return false
	}
	days := int(horizon / (24 * time.Hour))
	completedDate := s.clock.Midnight(completedAt)
	nowDate := s.clock.Midnight(now)
	return nowDate.Sub(completedDate) > time.Duration(days)*24*time.Hour
}

// ------------------------------------------------------------------ i/o

func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// readJSONOptional returns (false, nil) when the file does not exist, and
// (false, err) when it exists but cannot be read/parsed.
func readJSONOptional(path string, v any) (bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, err
	}
	return true, nil
}
