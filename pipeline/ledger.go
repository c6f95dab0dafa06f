package pipeline

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Ledger tracks which source identifiers have been seen and the old-to-new
// identifier mapping for the run. The mapping is append-only: once an old
// identifier has been assigned a replacement, the assignment never changes,
// so any two records referencing the same old identifier converge on the
// same new identifier regardless of processing order.
//
// Mutations go through the orchestrator; steps only read, via Resolve.
type Ledger struct {
	mu   sync.Mutex
	seen map[string]struct{}
	uids map[string]string
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		seen: make(map[string]struct{}),
		uids: make(map[string]string),
	}
}

// NewUID mints a fresh identifier in the destination format
// (32 lowercase hex characters).
func NewUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// AssignOrGet returns the replacement identifier for oldUID, minting one on
// first call. Idempotent under duplicate source identifiers.
func (l *Ledger) AssignOrGet(oldUID string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if newUID, ok := l.uids[oldUID]; ok {
		return newUID
	}
	newUID := NewUID()
	l.uids[oldUID] = newUID
	return newUID
}

// Alias records an additional old identifier for an already assigned new
// identifier. Used when a fan-out step mints its own item identity: later
// references to the minted identifier must still resolve. The first
// assignment wins; an existing mapping is never overwritten.
func (l *Ledger) Alias(oldUID, newUID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.uids[oldUID]; !ok {
		l.uids[oldUID] = newUID
	}
}

// Resolve returns the replacement for oldUID, if one has been assigned.
func (l *Ledger) Resolve(oldUID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	newUID, ok := l.uids[oldUID]
	return newUID, ok
}

// MarkSeen records that the source identifier has been processed.
func (l *Ledger) MarkSeen(oldUID string) {
	l.mu.Lock()
	l.seen[oldUID] = struct{}{}
	l.mu.Unlock()
}

// HasSeen reports whether the source identifier was already processed.
// Prevents duplicate work when the same identifier appears twice in the
// source set, or when a checkpoint from a previous run was loaded.
func (l *Ledger) HasSeen(oldUID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[oldUID]
	return ok
}

// Seen returns a copy of the seen set.
func (l *Ledger) Seen() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.seen))
	for uid := range l.seen {
		out = append(out, uid)
	}
	return out
}

// Mappings returns a copy of the old-to-new identifier table.
func (l *Ledger) Mappings() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]string, len(l.uids))
	for k, v := range l.uids {
		out[k] = v
	}
	return out
}

// Restore preloads seen identifiers and mappings from a checkpoint.
// Existing entries are never overwritten.
func (l *Ledger) Restore(seen []string, uids map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, uid := range seen {
		l.seen[uid] = struct{}{}
	}
	for old, repl := range uids {
		if _, ok := l.uids[old]; !ok {
			l.uids[old] = repl
		}
	}
}
