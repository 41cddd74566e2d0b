package memory

import (
	"context"
	"sync"

	"github.com/prasetyadi/statmerge/internal/domain/statline"
)

type StatLineRepository struct {
	mu    sync.RWMutex
	lines map[statline.Key]statline.Line
	audit map[statline.Key][]statline.AuditEntry
}

func NewStatLineRepository() *StatLineRepository {
	return &StatLineRepository{
		lines: make(map[statline.Key]statline.Line),
		audit: make(map[statline.Key][]statline.AuditEntry),
	}
}

func (r *StatLineRepository) Get(_ context.Context, key statline.Key) (statline.Line, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	line, ok := r.lines[key]
	if !ok {
		return statline.Line{}, false, nil
	}
	return cloneLine(line), true, nil
}

func (r *StatLineRepository) ListByPlayer(_ context.Context, playerID string) ([]statline.Line, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]statline.Line, 0)
	for key, line := range r.lines {
		if key.PlayerID == playerID {
			out = append(out, cloneLine(line))
		}
	}
	return out, nil
}

// ApplyBatch validates the whole batch before touching the maps, so a
// bad line never leaves a prefix of the batch behind.
func (r *StatLineRepository) ApplyBatch(_ context.Context, lines []statline.Line, audit []statline.AuditEntry) error {
	for _, line := range lines {
		if err := line.Validate(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, line := range lines {
		r.lines[line.Key()] = cloneLine(line)
	}
	for _, entry := range audit {
		key := statline.Key{PlayerID: entry.PlayerID, MatchID: entry.MatchID}
		r.audit[key] = append(r.audit[key], cloneAuditEntry(entry))
	}
	return nil
}

func (r *StatLineRepository) ListAuditByKey(_ context.Context, key statline.Key) ([]statline.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.audit[key]
	out := make([]statline.AuditEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, cloneAuditEntry(entry))
	}
	return out, nil
}

func cloneLine(line statline.Line) statline.Line {
	out := line
	out.Metrics = line.CloneMetrics()
	return out
}

func cloneAuditEntry(entry statline.AuditEntry) statline.AuditEntry {
	out := entry
	out.OldValue = cloneFloat(entry.OldValue)
	out.NewValue = cloneFloat(entry.NewValue)
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}
