package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/prasetyadi/statmerge/internal/domain/statline"
	"github.com/prasetyadi/statmerge/internal/infrastructure/repository/memory"
)

func TestUpsertIsIdempotent(t *testing.T) {
	repo := memory.NewStatLineRepository()
	store := NewIncrementalStore(repo, nil)
	ctx := context.Background()

	batch := []statline.Line{
		{
			PlayerID:      "pl_a",
			MatchID:       "Arsenal_Chelsea_20260314",
			MinutesPlayed: 90,
			IsHome:        true,
			Metrics:       map[string]float64{statline.MetricGoals: 1, statline.MetricShots: 3},
		},
		{
			PlayerID:      "pl_b",
			MatchID:       "Arsenal_Chelsea_20260314",
			MinutesPlayed: 74,
			Metrics:       map[string]float64{statline.MetricAssists: 1},
		},
	}

	first, err := store.Upsert(ctx, batch)
	if err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}
	if first.Inserted != 2 || first.Corrected != 0 || first.Unchanged != 0 {
		t.Fatalf("first report = %+v, want 2 inserts", first)
	}

	second, err := store.Upsert(ctx, batch)
	if err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if second.Inserted != 0 || second.Corrected != 0 || second.Unchanged != 2 {
		t.Fatalf("second report = %+v, want 2 unchanged", second)
	}

	audit, err := repo.ListAuditByKey(ctx, statline.Key{PlayerID: "pl_a", MatchID: "Arsenal_Chelsea_20260314"})
	if err != nil {
		t.Fatalf("ListAuditByKey() error = %v", err)
	}
	if len(audit) != 0 {
		t.Fatalf("idempotent re-ingest produced audit entries: %+v", audit)
	}
}

func TestUpsertRecordsCorrectionAudit(t *testing.T) {
	repo := memory.NewStatLineRepository()
	store := NewIncrementalStore(repo, nil)
	ctx := context.Background()
	key := statline.Key{PlayerID: "pl_a", MatchID: "Arsenal_Chelsea_20260314"}

	original := statline.Line{
		PlayerID:      key.PlayerID,
		MatchID:       key.MatchID,
		MinutesPlayed: 90,
		Metrics:       map[string]float64{statline.MetricGoals: 1},
	}
	if _, err := store.Upsert(ctx, []statline.Line{original}); err != nil {
		t.Fatalf("seed Upsert() error = %v", err)
	}

	// The source revised the goal count after review.
	revised := original
	revised.Metrics = map[string]float64{statline.MetricGoals: 2}
	report, err := store.Upsert(ctx, []statline.Line{revised})
	if err != nil {
		t.Fatalf("revision Upsert() error = %v", err)
	}
	if report.Corrected != 1 || report.Inserted != 0 {
		t.Fatalf("report = %+v, want exactly 1 correction", report)
	}

	stored, found, err := repo.Get(ctx, key)
	if err != nil || !found {
		t.Fatalf("Get() = found=%v err=%v", found, err)
	}
	if got, _ := stored.Metric(statline.MetricGoals); got != 2 {
		t.Fatalf("stored goals = %v, want 2", got)
	}

	audit, err := repo.ListAuditByKey(ctx, key)
	if err != nil {
		t.Fatalf("ListAuditByKey() error = %v", err)
	}
	if len(audit) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(audit))
	}
	entry := audit[0]
	if entry.Field != statline.MetricGoals {
		t.Fatalf("audited field = %s, want %s", entry.Field, statline.MetricGoals)
	}
	if entry.OldValue == nil || *entry.OldValue != 1 {
		t.Fatalf("old value = %v, want 1", entry.OldValue)
	}
	if entry.NewValue == nil || *entry.NewValue != 2 {
		t.Fatalf("new value = %v, want 2", entry.NewValue)
	}
}

func TestUpsertAuditsDisappearedMetricWithNilNewValue(t *testing.T) {
	repo := memory.NewStatLineRepository()
	store := NewIncrementalStore(repo, nil)
	ctx := context.Background()
	key := statline.Key{PlayerID: "pl_a", MatchID: "Leeds_Everton_20260321"}

	withXG := statline.Line{
		PlayerID:      key.PlayerID,
		MatchID:       key.MatchID,
		MinutesPlayed: 60,
		Metrics:       map[string]float64{statline.MetricGoals: 0, statline.MetricXG: 0.4},
	}
	if _, err := store.Upsert(ctx, []statline.Line{withXG}); err != nil {
		t.Fatalf("seed Upsert() error = %v", err)
	}

	withoutXG := withXG
	withoutXG.Metrics = map[string]float64{statline.MetricGoals: 0}
	if _, err := store.Upsert(ctx, []statline.Line{withoutXG}); err != nil {
		t.Fatalf("revision Upsert() error = %v", err)
	}

	audit, err := repo.ListAuditByKey(ctx, key)
	if err != nil {
		t.Fatalf("ListAuditByKey() error = %v", err)
	}
	if len(audit) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(audit))
	}
	entry := audit[0]
	if entry.Field != statline.MetricXG {
		t.Fatalf("audited field = %s, want %s", entry.Field, statline.MetricXG)
	}
	if entry.OldValue == nil || *entry.OldValue != 0.4 {
		t.Fatalf("old value = %v, want 0.4", entry.OldValue)
	}
	if entry.NewValue != nil {
		t.Fatalf("new value = %v, want nil for a metric no longer reported", entry.NewValue)
	}
}

func TestUpsertRejectsDuplicateKeysInBatch(t *testing.T) {
	store := NewIncrementalStore(memory.NewStatLineRepository(), nil)

	dup := statline.Line{PlayerID: "pl_a", MatchID: "Arsenal_Chelsea_20260314", MinutesPlayed: 90}
	_, err := store.Upsert(context.Background(), []statline.Line{dup, dup})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Upsert() error = %v, want ErrInvalidInput", err)
	}
}

func TestUpsertCancelledContextWritesNothing(t *testing.T) {
	repo := memory.NewStatLineRepository()
	store := NewIncrementalStore(repo, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	line := statline.Line{PlayerID: "pl_a", MatchID: "Arsenal_Chelsea_20260314", MinutesPlayed: 90}
	if _, err := store.Upsert(ctx, []statline.Line{line}); err == nil {
		t.Fatalf("Upsert() with cancelled context succeeded, want error")
	}

	_, found, err := repo.Get(context.Background(), line.Key())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Fatalf("cancelled batch left a stored line")
	}
}

// trackingStatLines counts batch applies and can abort them the way a
// rolled-back transaction would, persisting nothing.
type trackingStatLines struct {
	*memory.StatLineRepository
	applies    int
	lastLines  int
	lastAudit  int
	abortApply bool
}

func (r *trackingStatLines) ApplyBatch(ctx context.Context, lines []statline.Line, audit []statline.AuditEntry) error {
	r.applies++
	r.lastLines = len(lines)
	r.lastAudit = len(audit)
	if r.abortApply {
		return context.Canceled
	}
	return r.StatLineRepository.ApplyBatch(ctx, lines, audit)
}

func TestUpsertWritesWholeBatchInOneApply(t *testing.T) {
	repo := &trackingStatLines{StatLineRepository: memory.NewStatLineRepository()}
	store := NewIncrementalStore(repo, nil)
	ctx := context.Background()

	seed := statline.Line{
		PlayerID:      "pl_a",
		MatchID:       "Arsenal_Chelsea_20260314",
		MinutesPlayed: 90,
		Metrics:       map[string]float64{statline.MetricGoals: 1},
	}
	if _, err := store.Upsert(ctx, []statline.Line{seed}); err != nil {
		t.Fatalf("seed Upsert() error = %v", err)
	}

	revised := seed
	revised.Metrics = map[string]float64{statline.MetricGoals: 2}
	fresh := statline.Line{
		PlayerID:      "pl_b",
		MatchID:       "Arsenal_Chelsea_20260314",
		MinutesPlayed: 74,
		Metrics:       map[string]float64{statline.MetricAssists: 1},
	}

	repo.applies = 0
	report, err := store.Upsert(ctx, []statline.Line{revised, fresh})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if report.Inserted != 1 || report.Corrected != 1 {
		t.Fatalf("report = %+v, want 1 insert and 1 correction", report)
	}
	if repo.applies != 1 {
		t.Fatalf("ApplyBatch ran %d times, want 1", repo.applies)
	}
	if repo.lastLines != 2 || repo.lastAudit == 0 {
		t.Fatalf("batch carried %d lines and %d audit entries, want both writes together",
			repo.lastLines, repo.lastAudit)
	}
}

func TestUpsertInterruptedApplyPersistsNothing(t *testing.T) {
	repo := &trackingStatLines{StatLineRepository: memory.NewStatLineRepository(), abortApply: true}
	store := NewIncrementalStore(repo, nil)
	ctx := context.Background()

	batch := []statline.Line{
		{
			PlayerID:      "pl_a",
			MatchID:       "Arsenal_Chelsea_20260314",
			MinutesPlayed: 90,
			Metrics:       map[string]float64{statline.MetricGoals: 1},
		},
		{
			PlayerID:      "pl_b",
			MatchID:       "Arsenal_Chelsea_20260314",
			MinutesPlayed: 74,
			Metrics:       map[string]float64{statline.MetricAssists: 1},
		},
	}

	if _, err := store.Upsert(ctx, batch); !errors.Is(err, context.Canceled) {
		t.Fatalf("Upsert() error = %v, want context.Canceled", err)
	}

	for _, line := range batch {
		if _, found, err := repo.Get(ctx, line.Key()); err != nil || found {
			t.Fatalf("line %s persisted from an aborted batch (found=%t, err=%v)",
				line.PlayerID, found, err)
		}
	}
}
