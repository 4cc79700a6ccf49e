package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"
)

// Status is the fetch state of one key in a Ledger.
type Status string

const (
	// StatusUnknown means the key was never attempted.
	StatusUnknown Status = ""
	// StatusPending means the last attempt failed transiently.
	StatusPending Status = "pending"
	// StatusDone means the source returned data and it is cached.
	StatusDone Status = "done"
	// StatusAbsent means the source confirmed there is no data.
	StatusAbsent Status = "absent"
)

// LedgerEntry records the fetch history of one key.
type LedgerEntry struct {
	Status    Status    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ledger tracks per-key fetch status for a stage and persists it as JSON.
//
// An absent key stays absent until Invalidate is called for it, so a dead
// symbol is not retried on later runs unless new input says otherwise.
type Ledger struct {
	mu      sync.Mutex
	path    string
	entries map[string]*LedgerEntry
	now     func() time.Time
}

// OpenLedger loads the ledger at path, or starts an empty one.
func OpenLedger(path string) (*Ledger, error) {
	l := &Ledger{
		path:    path,
		entries: make(map[string]*LedgerEntry),
		now:     time.Now,
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &l.entries); err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", path, err)
	}
	return l, nil
}

// Status returns the status of key.
func (l *Ledger) Status(key string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok {
		return e.Status
	}
	return StatusUnknown
}

// NeedsFetch reports whether key is unknown or pending.
func (l *Ledger) NeedsFetch(key string) bool {
	switch l.Status(key) {
	case StatusUnknown, StatusPending:
		return true
	}
	return false
}

func (l *Ledger) entry(key string) *LedgerEntry {
	e, ok := l.entries[key]
	if !ok {
		e = &LedgerEntry{}
		l.entries[key] = e
	}
	return e
}

// MarkDone records a successful fetch.
func (l *Ledger) MarkDone(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entry(key)
	e.Status = StatusDone
	e.Attempts++
	e.LastError = ""
	e.UpdatedAt = l.now()
}

// MarkAbsent records a confirmed absence.
func (l *Ledger) MarkAbsent(key, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entry(key)
	e.Status = StatusAbsent
	e.Attempts++
	e.LastError = reason
	e.UpdatedAt = l.now()
}

// MarkPending records a transient failure. It does not touch absent keys.
func (l *Ledger) MarkPending(key string, cause error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entry(key)
	if e.Status == StatusAbsent {
		return
	}
	e.Status = StatusPending
	e.Attempts++
	if cause != nil {
		e.LastError = cause.Error()
	}
	e.UpdatedAt = l.now()
}

// Invalidate resets key to pending so the next run fetches it again.
// This is the only way out of the absent state.
func (l *Ledger) Invalidate(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entry(key)
	e.Status = StatusPending
	e.LastError = ""
	e.UpdatedAt = l.now()
}

// Keys returns the keys with the given status, sorted.
func (l *Ledger) Keys(status Status) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var keys []string
	for k, e := range l.entries {
		if e.Status == status {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Counts returns the number of keys per status.
func (l *Ledger) Counts() map[Status]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[Status]int)
	for _, e := range l.entries {
		out[e.Status]++
	}
	return out
}

// Save writes the ledger to disk.
func (l *Ledger) Save() error {
	l.mu.Lock()
	data, err := json.MarshalIndent(l.entries, "", "  ")
	l.mu.Unlock()
	if err != nil {
		return err
	}
	return WriteFileAtomic(l.path, data)
}
