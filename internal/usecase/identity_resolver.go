package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prasetyadi/statmerge/internal/domain/aliascache"
	"github.com/prasetyadi/statmerge/internal/domain/player"
	"github.com/prasetyadi/statmerge/internal/platform/id"
	"github.com/prasetyadi/statmerge/internal/platform/logging"
	"github.com/prasetyadi/statmerge/internal/platform/similarity"
)

// Band classifies how an identity resolution was reached, reported per run
// so threshold tuning has data to work with.
type Band string

const (
	BandExact    Band = "exact"
	BandAccepted Band = "accepted"
	BandCreated  Band = "created"
)

type ResolverConfig struct {
	// AcceptThreshold is the minimum similarity for an automatic merge.
	AcceptThreshold float64
	// MarginThreshold is the minimum lead over the runner-up candidate.
	// Ties at the boundary never auto-merge.
	MarginThreshold float64
	// FloorThreshold separates "ambiguous, ask a human" from "nobody close,
	// create a new player".
	FloorThreshold float64
	// TransferGrace widens the candidate set to players whose team changed
	// recently, since one source can lag a transfer.
	TransferGrace time.Duration
	// Strict makes an unresolvable name an error instead of a new player.
	Strict bool
}

func NormalizeResolverConfig(cfg ResolverConfig) ResolverConfig {
	if cfg.AcceptThreshold <= 0 || cfg.AcceptThreshold > 1 {
		cfg.AcceptThreshold = 0.85
	}
	if cfg.MarginThreshold <= 0 {
		cfg.MarginThreshold = 0.05
	}
	if cfg.FloorThreshold <= 0 || cfg.FloorThreshold >= cfg.AcceptThreshold {
		cfg.FloorThreshold = 0.60
	}
	if cfg.TransferGrace <= 0 {
		cfg.TransferGrace = 28 * 24 * time.Hour
	}
	return cfg
}

// IdentityResolver maps a raw (name, team, source) sighting to a canonical
// player id. The alias cache owns the fast path; fuzzy scoring only runs on
// cache misses, which in steady state are the minority.
type IdentityResolver struct {
	players player.Repository
	aliases aliascache.Repository
	scorer  similarity.Scorer
	idGen   id.Generator
	cfg     ResolverConfig
	logger  *logging.Logger
	now     func() time.Time
}

func NewIdentityResolver(
	players player.Repository,
	aliases aliascache.Repository,
	scorer similarity.Scorer,
	idGen id.Generator,
	cfg ResolverConfig,
	logger *logging.Logger,
) *IdentityResolver {
	if logger == nil {
		logger = logging.Default()
	}
	if scorer == nil {
		scorer = similarity.NewLevenshteinScorer()
	}
	return &IdentityResolver{
		players: players,
		aliases: aliases,
		scorer:  scorer,
		idGen:   idGen,
		cfg:     NormalizeResolverConfig(cfg),
		logger:  logger,
		now:     time.Now,
	}
}

// Candidate is one scored known player, surfaced on ambiguity so the
// manual-review queue has something to show.
type Candidate struct {
	PlayerID      string
	CanonicalName string
	Score         float64
}

// Resolve returns the canonical player id for one raw sighting.
func (r *IdentityResolver) Resolve(ctx context.Context, rawName, rawTeam, source string) (string, Band, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.IdentityResolver.Resolve")
	defer span.End()

	key := aliascache.NewKey(rawName, rawTeam, source)
	if err := key.Validate(); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	cached, ok, err := r.aliases.Get(ctx, key)
	if err != nil {
		return "", "", fmt.Errorf("lookup alias cache: %w", err)
	}
	if ok {
		if _, err := r.players.GetByID(ctx, cached.PlayerID); err != nil {
			if errors.Is(err, player.ErrNotFound) {
				return "", "", fmt.Errorf("%w: alias %q/%q/%q maps to unknown player %s",
					ErrCorruptAliasCache, key.RawName, key.RawTeam, key.Source, cached.PlayerID)
			}
			return "", "", fmt.Errorf("verify cached player: %w", err)
		}
		return cached.PlayerID, BandExact, nil
	}

	normalized := similarity.NormalizeName(rawName)
	candidates, err := r.scoreCandidates(ctx, normalized, key.RawTeam)
	if err != nil {
		return "", "", err
	}

	if len(candidates) > 0 {
		best := candidates[0]
		lead := best.Score
		if len(candidates) > 1 {
			lead = best.Score - candidates[1].Score
		}

		switch {
		case best.Score >= r.cfg.AcceptThreshold && lead >= r.cfg.MarginThreshold:
			if err := r.accept(ctx, key, best); err != nil {
				return "", "", err
			}
			return best.PlayerID, BandAccepted, nil
		case best.Score >= r.cfg.FloorThreshold:
			// Conservative default: near the boundary a reviewable queue
			// beats silent misattribution.
			return "", "", fmt.Errorf("%w: %q on %q scored %s", ErrAmbiguousMatch,
				key.RawName, key.RawTeam, formatCandidates(candidates))
		}
	}

	if r.cfg.Strict {
		return "", "", fmt.Errorf("%w: %q on %q from %s", ErrNoCandidate, key.RawName, key.RawTeam, key.Source)
	}

	created, err := r.create(ctx, key)
	if err != nil {
		return "", "", err
	}
	return created, BandCreated, nil
}

// ResolveManual records a human decision for a sighting, superseding any
// previous mapping as an explicit correction event.
func (r *IdentityResolver) ResolveManual(ctx context.Context, rawName, rawTeam, source, playerID string) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.IdentityResolver.ResolveManual")
	defer span.End()

	key := aliascache.NewKey(rawName, rawTeam, source)
	if err := key.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}

	target, err := r.players.GetByID(ctx, playerID)
	if err != nil {
		return fmt.Errorf("load manual resolution target: %w", err)
	}

	entry := aliascache.Entry{
		Key:        key,
		PlayerID:   playerID,
		Confirmed:  aliascache.ConfirmedManual,
		Score:      1,
		ResolvedAt: r.now(),
	}

	previous, ok, err := r.aliases.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("lookup alias cache: %w", err)
	}
	if ok && previous.PlayerID != playerID {
		entry.CorrectedFrom = previous.PlayerID
		if _, err := r.aliases.Correct(ctx, entry); err != nil {
			return fmt.Errorf("correct alias mapping: %w", err)
		}
		r.logger.InfoContext(ctx, "alias mapping corrected",
			"raw_name", key.RawName, "raw_team", key.RawTeam, "source", key.Source,
			"previous_player_id", previous.PlayerID, "player_id", playerID)
	} else if !ok {
		if err := r.aliases.Put(ctx, entry); err != nil {
			return fmt.Errorf("store manual alias mapping: %w", err)
		}
	}

	if !target.HasAlias(key.RawName) {
		if err := r.players.Update(ctx, target.WithAlias(key.RawName)); err != nil {
			return fmt.Errorf("record manual alias on player: %w", err)
		}
	}
	return nil
}

func (r *IdentityResolver) scoreCandidates(ctx context.Context, normalizedName, rawTeam string) ([]Candidate, error) {
	pool := make(map[string]player.Player)

	if rawTeam != "" {
		byTeam, err := r.players.ListByTeams(ctx, []string{rawTeam})
		if err != nil {
			return nil, fmt.Errorf("list candidates by team: %w", err)
		}
		for _, p := range byTeam {
			pool[p.ID] = p
		}
	}

	moved, err := r.players.ListTeamChangedSince(ctx, r.now().Add(-r.cfg.TransferGrace))
	if err != nil {
		return nil, fmt.Errorf("list recently transferred candidates: %w", err)
	}
	for _, p := range moved {
		pool[p.ID] = p
	}

	candidates := make([]Candidate, 0, len(pool))
	for _, p := range pool {
		best := r.scorer.Score(normalizedName, similarity.NormalizeName(p.CanonicalName))
		for _, alias := range p.KnownAliases {
			if score := r.scorer.Score(normalizedName, similarity.NormalizeName(alias)); score > best {
				best = score
			}
		}
		candidates = append(candidates, Candidate{
			PlayerID:      p.ID,
			CanonicalName: p.CanonicalName,
			Score:         best,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].PlayerID < candidates[j].PlayerID
	})
	return candidates, nil
}

func (r *IdentityResolver) accept(ctx context.Context, key aliascache.Key, best Candidate) error {
	matched, err := r.players.GetByID(ctx, best.PlayerID)
	if err != nil {
		return fmt.Errorf("load accepted player: %w", err)
	}

	updated := matched.WithAlias(key.RawName)
	if key.RawTeam != "" && updated.CurrentTeam != key.RawTeam {
		r.logger.InfoContext(ctx, "player team change observed",
			"player_id", updated.ID, "from", updated.CurrentTeam, "to", key.RawTeam)
		updated.CurrentTeam = key.RawTeam
		updated.TeamChangedAt = r.now()
	}
	if updated.HasAlias(key.RawName) != matched.HasAlias(key.RawName) || updated.CurrentTeam != matched.CurrentTeam {
		if err := r.players.Update(ctx, updated); err != nil {
			return fmt.Errorf("update matched player: %w", err)
		}
	}

	entry := aliascache.Entry{
		Key:        key,
		PlayerID:   best.PlayerID,
		Confirmed:  aliascache.ConfirmedFuzzy,
		Score:      best.Score,
		ResolvedAt: r.now(),
	}
	if err := r.aliases.Put(ctx, entry); err != nil {
		if errors.Is(err, aliascache.ErrMappingConflict) {
			return fmt.Errorf("%w: %v", ErrCorruptAliasCache, err)
		}
		return fmt.Errorf("store alias mapping: %w", err)
	}
	return nil
}

func (r *IdentityResolver) create(ctx context.Context, key aliascache.Key) (string, error) {
	playerID, err := r.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate player id: %w", err)
	}

	now := r.now()
	created := player.Player{
		ID:            playerID,
		CanonicalName: key.RawName,
		KnownAliases:  []string{key.RawName},
		CurrentTeam:   key.RawTeam,
		CreatedAt:     now,
	}
	if err := created.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := r.players.Create(ctx, created); err != nil {
		return "", fmt.Errorf("create player: %w", err)
	}

	entry := aliascache.Entry{
		Key:        key,
		PlayerID:   playerID,
		Confirmed:  aliascache.ConfirmedNew,
		ResolvedAt: now,
	}
	if err := r.aliases.Put(ctx, entry); err != nil {
		if errors.Is(err, aliascache.ErrMappingConflict) {
			return "", fmt.Errorf("%w: %v", ErrCorruptAliasCache, err)
		}
		return "", fmt.Errorf("store alias mapping: %w", err)
	}

	r.logger.InfoContext(ctx, "new player created",
		"player_id", playerID, "name", key.RawName, "team", key.RawTeam, "source", key.Source)
	return playerID, nil
}

func formatCandidates(candidates []Candidate) string {
	limit := len(candidates)
	if limit > 3 {
		limit = 3
	}
	parts := make([]string, 0, limit)
	for _, c := range candidates[:limit] {
		parts = append(parts, fmt.Sprintf("%s=%.3f", c.CanonicalName, c.Score))
	}
	return strings.Join(parts, ", ")
}
