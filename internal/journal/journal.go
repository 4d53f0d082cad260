// Package journal keeps an append-only, hash-chained JSONL record of
// adaptive regime transitions.
package journal

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/npipolicy/internal/adaptive"
	"github.com/ppiankov/npipolicy/internal/model"
)

// GenesisHash is the prev_hash for the first entry in a new journal.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// TimestampFormat is the layout of entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Entry is one line of the journal. Fields are plain structs so that
// json.Marshal output, and with it the chain hash, is deterministic.
type Entry struct {
	Timestamp  string  `json:"ts"`
	RunID      string  `json:"run_id"`
	Date       string  `json:"date"`
	Group      string  `json:"group"`
	Scope      string  `json:"scope"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	Incidence  float64 `json:"incidence"`
	PolicyHash string  `json:"policy_hash,omitempty"`
	PrevHash   string  `json:"prev_hash"`
}

// Journal appends transitions to a JSONL file. Each entry's prev_hash is
// the hash of the previous line.
type Journal struct {
	path       string
	file       *os.File
	prevHash   string
	runID      string
	policyHash string
	now        func() time.Time
	mu         sync.Mutex
}

// Option configures a Journal.
type Option func(*Journal)

// WithRunID tags entries with id instead of a generated UUID.
func WithRunID(id string) Option {
	return func(j *Journal) { j.runID = id }
}

// WithPolicyHash tags entries with the hash of the policy file in use.
func WithPolicyHash(h string) Option {
	return func(j *Journal) { j.policyHash = h }
}

var _ adaptive.Recorder = (*Journal)(nil)

// Open opens (or creates) a journal for appending. An existing file's last
// line is hashed to continue the chain.
func Open(path string, opts ...Option) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}

	prevHash := GenesisHash
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		last, err := lastLine(path)
		if err != nil {
			return nil, err
		}
		if len(last) > 0 {
			prevHash = HashLine(last)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("journal: open file: %w", err)
	}

	j := &Journal{
		path:     path,
		file:     file,
		prevHash: prevHash,
		runID:    uuid.NewString(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

func lastLine(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("journal: read existing file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var last []byte
	for scanner.Scan() {
		last = append(last[:0], scanner.Bytes()...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("journal: scan existing file: %w", err)
	}
	return last, nil
}

// RunID returns the id written with every entry.
func (j *Journal) RunID() string { return j.runID }

// RecordTransition appends one regime transition.
func (j *Journal) RecordTransition(t adaptive.Transition) error {
	return j.Record(Entry{
		Date:      model.FormatDate(t.Date),
		Group:     t.Group,
		Scope:     t.Scope,
		From:      string(t.From),
		To:        string(t.To),
		Incidence: t.Incidence,
	})
}

// Record appends e, filling in timestamp, run id, policy hash and the chain
// link, and syncs the file.
func (j *Journal) Record(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if e.Timestamp == "" {
		e.Timestamp = j.now().UTC().Format(TimestampFormat)
	}
	if e.RunID == "" {
		e.RunID = j.runID
	}
	if e.PolicyHash == "" {
		e.PolicyHash = j.policyHash
	}
	e.PrevHash = j.prevHash

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("journal: marshal entry: %w", err)
	}
	if _, err := j.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("journal: write entry: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("journal: sync: %w", err)
	}
	j.prevHash = HashLine(line)
	return nil
}

// Close closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// HashLine returns "sha256:<hex>" of line.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}
