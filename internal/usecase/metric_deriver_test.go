package usecase

import (
	"math"
	"testing"

	"github.com/prasetyadi/statmerge/internal/domain/statline"
)

func TestDeriveShotConversion(t *testing.T) {
	line := statline.Line{
		PlayerID:      "p1",
		MatchID:       "m1",
		MinutesPlayed: 90,
		Metrics: map[string]float64{
			statline.MetricGoals: 1,
			statline.MetricShots: 3,
		},
	}

	got := Derive(line)
	if !got.ShotConversion.Defined {
		t.Fatal("shot conversion must be defined with shots > 0")
	}
	if math.Abs(got.ShotConversion.Value-1.0/3.0) > 1e-9 {
		t.Fatalf("unexpected conversion: got=%f want=0.333", got.ShotConversion.Value)
	}
	if !got.GoalInvolvement.Defined || got.GoalInvolvement.Value != 1 {
		t.Fatalf("absent assists must not break involvement: %+v", got.GoalInvolvement)
	}
}

func TestDeriveUndefinedWithZeroShots(t *testing.T) {
	line := statline.Line{
		PlayerID: "p1",
		MatchID:  "m1",
		Metrics: map[string]float64{
			statline.MetricGoals: 0,
			statline.MetricShots: 0,
		},
	}

	got := Derive(line)
	if got.ShotConversion.Defined {
		t.Fatal("shot conversion with zero shots must be undefined, not zero")
	}
}

func TestDeriveNothingReported(t *testing.T) {
	got := Derive(statline.Line{PlayerID: "p1", MatchID: "m1"})
	if got.GoalInvolvement.Defined || got.XGOverperformance.Defined || got.ShotConversion.Defined {
		t.Fatalf("derivations over absent metrics must be undefined: %+v", got)
	}
}

func TestDeriveXGOverperformance(t *testing.T) {
	line := statline.Line{
		PlayerID: "p1",
		MatchID:  "m1",
		Metrics: map[string]float64{
			statline.MetricGoals: 2,
			statline.MetricXG:    0.7,
		},
	}

	got := Derive(line)
	if !got.XGOverperformance.Defined {
		t.Fatal("xg overperformance must be defined when goals and xg are reported")
	}
	if math.Abs(got.XGOverperformance.Value-1.3) > 1e-9 {
		t.Fatalf("unexpected overperformance: got=%f want=1.3", got.XGOverperformance.Value)
	}
}

func TestPerNinetyZeroMinutes(t *testing.T) {
	got := PerNinety(3, 0)
	if got.Defined {
		t.Fatalf("per-90 with zero minutes must be undefined, got=%f", got.Value)
	}
	if math.IsInf(got.Value, 0) || got.Value != 0 {
		t.Fatalf("undefined value must be the zero value, got=%f", got.Value)
	}
}

func TestPerNinety(t *testing.T) {
	got := PerNinety(2, 45)
	if !got.Defined || got.Value != 4 {
		t.Fatalf("unexpected per-90: %+v", got)
	}
}

func TestDeriveWindowLastN(t *testing.T) {
	lines := []WindowLine{
		{Line: statline.Line{PlayerID: "p1", MatchID: "m1", MinutesPlayed: 90, Metrics: map[string]float64{statline.MetricGoals: 1}}, Gameweek: 1},
		{Line: statline.Line{PlayerID: "p1", MatchID: "m2", MinutesPlayed: 90, Metrics: map[string]float64{statline.MetricGoals: 0}}, Gameweek: 2},
		{Line: statline.Line{PlayerID: "p1", MatchID: "m3", MinutesPlayed: 45, Metrics: map[string]float64{statline.MetricGoals: 2}}, Gameweek: 3},
		{Line: statline.Line{PlayerID: "p1", MatchID: "m4", MinutesPlayed: 90, Metrics: map[string]float64{statline.MetricGoals: 1}}, Gameweek: 4},
	}

	got := DeriveWindow(lines, statline.MetricGoals, 2)
	if got.Matches != 2 {
		t.Fatalf("unexpected window size: got=%d want=2", got.Matches)
	}
	if !got.Total.Defined || got.Total.Value != 3 {
		t.Fatalf("unexpected window total: %+v", got.Total)
	}
	if !got.Mean.Defined || got.Mean.Value != 1.5 {
		t.Fatalf("unexpected window mean: %+v", got.Mean)
	}
	if got.Minutes != 135 {
		t.Fatalf("unexpected window minutes: got=%d want=135", got.Minutes)
	}
	if !got.PerNinety.Defined || got.PerNinety.Value != 2 {
		t.Fatalf("unexpected window per-90: %+v", got.PerNinety)
	}
	if len(got.Cumulative) != 2 || got.Cumulative[0] != 2 || got.Cumulative[1] != 3 {
		t.Fatalf("unexpected cumulative series: %v", got.Cumulative)
	}
}

func TestDeriveWindowMetricNeverReported(t *testing.T) {
	lines := []WindowLine{
		{Line: statline.Line{PlayerID: "p1", MatchID: "m1", MinutesPlayed: 90}, Gameweek: 1},
	}

	got := DeriveWindow(lines, statline.MetricXG, 5)
	if got.Total.Defined || got.Mean.Defined || got.PerNinety.Defined {
		t.Fatalf("window over an unreported metric must stay undefined: %+v", got)
	}
	if got.Matches != 1 {
		t.Fatalf("line still counts as a played match: got=%d", got.Matches)
	}
}
