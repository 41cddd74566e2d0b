package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prasetyadi/statmerge/internal/domain/statline"
	"github.com/prasetyadi/statmerge/internal/platform/logging"
)

// UpsertReport summarizes one batch: how many lines were new, how many
// carried revised values, how many were byte-for-byte repeats.
type UpsertReport struct {
	Inserted  int
	Corrected int
	Unchanged int
}

// IncrementalStore applies merged stat lines to the append-only dataset.
// Running the same input twice must leave the store unchanged and report
// zero inserts and corrections the second time.
type IncrementalStore struct {
	lines  statline.Repository
	logger *logging.Logger
	now    func() time.Time
}

func NewIncrementalStore(lines statline.Repository, logger *logging.Logger) *IncrementalStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &IncrementalStore{
		lines:  lines,
		logger: logger,
		now:    time.Now,
	}
}

type upsertAction struct {
	line  statline.Line
	prior *statline.Line
}

// Upsert decides insert / correction / unchanged per line, then applies
// the whole batch through one ApplyBatch call. An interrupted run never
// persists a prefix of the batch.
func (s *IncrementalStore) Upsert(ctx context.Context, lines []statline.Line) (UpsertReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.IncrementalStore.Upsert")
	defer span.End()

	report := UpsertReport{}
	actions := make([]upsertAction, 0, len(lines))
	seen := make(map[statline.Key]struct{}, len(lines))

	for _, line := range lines {
		if err := line.Validate(); err != nil {
			return UpsertReport{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		key := line.Key()
		if _, dup := seen[key]; dup {
			return UpsertReport{}, fmt.Errorf("%w: duplicate stat line key player=%s match=%s",
				ErrInvalidInput, key.PlayerID, key.MatchID)
		}
		seen[key] = struct{}{}

		existing, found, err := s.lines.Get(ctx, key)
		if err != nil {
			return UpsertReport{}, fmt.Errorf("load stored line: %w", err)
		}
		if !found {
			actions = append(actions, upsertAction{line: line})
			report.Inserted++
			continue
		}
		if existing.Equal(line) {
			report.Unchanged++
			continue
		}
		prior := existing
		actions = append(actions, upsertAction{line: line, prior: &prior})
		report.Corrected++
	}

	if err := ctx.Err(); err != nil {
		return UpsertReport{}, err
	}

	applyLines := make([]statline.Line, 0, len(actions))
	auditEntries := make([]statline.AuditEntry, 0)
	for _, action := range actions {
		applyLines = append(applyLines, action.line)
		if action.prior != nil {
			auditEntries = append(auditEntries, s.diffAudit(*action.prior, action.line)...)
		}
	}

	if err := s.lines.ApplyBatch(ctx, applyLines, auditEntries); err != nil {
		return UpsertReport{}, fmt.Errorf("apply stat line batch: %w", err)
	}

	for _, action := range actions {
		if action.prior != nil {
			s.logger.InfoContext(ctx, "stat line corrected",
				"player_id", action.line.PlayerID, "match_id", action.line.MatchID)
		}
	}
	return report, nil
}

// diffAudit records every changed field with its before and after values.
// A metric that disappears keeps a nil NewValue; one that appears keeps a
// nil OldValue, so "revised to zero" and "no longer reported" stay apart.
func (s *IncrementalStore) diffAudit(prior, next statline.Line) []statline.AuditEntry {
	recordedAt := s.now()
	entries := make([]statline.AuditEntry, 0, 4)

	appendEntry := func(field string, oldValue, newValue *float64) {
		entries = append(entries, statline.AuditEntry{
			PlayerID:   next.PlayerID,
			MatchID:    next.MatchID,
			Field:      field,
			OldValue:   oldValue,
			NewValue:   newValue,
			RecordedAt: recordedAt,
		})
	}

	if prior.MinutesPlayed != next.MinutesPlayed {
		appendEntry("minutes_played", floatPtr(float64(prior.MinutesPlayed)), floatPtr(float64(next.MinutesPlayed)))
	}
	if prior.IsHome != next.IsHome {
		appendEntry("is_home", floatPtr(boolToFloat(prior.IsHome)), floatPtr(boolToFloat(next.IsHome)))
	}

	names := make([]string, 0, len(prior.Metrics)+len(next.Metrics))
	for name := range prior.Metrics {
		names = append(names, name)
	}
	for name := range next.Metrics {
		if _, ok := prior.Metrics[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		oldValue, hadOld := prior.Metrics[name]
		newValue, hasNew := next.Metrics[name]
		if hadOld && hasNew && oldValue == newValue {
			continue
		}
		var oldPtr, newPtr *float64
		if hadOld {
			oldPtr = floatPtr(oldValue)
		}
		if hasNew {
			newPtr = floatPtr(newValue)
		}
		appendEntry(name, oldPtr, newPtr)
	}
	return entries
}

func floatPtr(v float64) *float64 {
	return &v
}

func boolToFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
