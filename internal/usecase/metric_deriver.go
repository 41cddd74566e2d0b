package usecase

import (
	"github.com/prasetyadi/statmerge/internal/domain/statline"
)

// OptionalValue is a derived number that may be undefined. Callers must
// branch on Defined instead of reading zero or infinity out of a division
// that never happened.
type OptionalValue struct {
	Value   float64
	Defined bool
}

func definedValue(v float64) OptionalValue {
	return OptionalValue{Value: v, Defined: true}
}

var undefinedValue = OptionalValue{}

// DerivedMetrics are the per-match derivations over one stat line.
type DerivedMetrics struct {
	GoalInvolvement   OptionalValue
	XGOverperformance OptionalValue
	ShotConversion    OptionalValue
}

// Derive computes the per-match derived metrics. A metric missing from the
// line means the source did not report it; derivations that need it are
// undefined rather than zero, with one exception: a sum treats one missing
// operand as zero as long as the other was explicitly reported.
func Derive(line statline.Line) DerivedMetrics {
	goals, hasGoals := line.Metric(statline.MetricGoals)
	assists, hasAssists := line.Metric(statline.MetricAssists)
	shots, hasShots := line.Metric(statline.MetricShots)
	xg, hasXG := line.Metric(statline.MetricXG)

	out := DerivedMetrics{}

	if hasGoals || hasAssists {
		out.GoalInvolvement = definedValue(goals + assists)
	}
	if hasGoals && hasXG {
		out.XGOverperformance = definedValue(goals - xg)
	}
	if hasShots && shots > 0 {
		out.ShotConversion = definedValue(goals / shots)
	}

	return out
}

// PerNinety normalizes a raw total to a 90-minute-equivalent rate.
// Undefined when no minutes were played.
func PerNinety(total float64, minutesPlayed int) OptionalValue {
	if minutesPlayed <= 0 {
		return undefinedValue
	}
	return definedValue(total * 90 / float64(minutesPlayed))
}

// WindowLine is one stored line annotated with its gameweek, the ordering
// key for windowed views.
type WindowLine struct {
	statline.Line
	Gameweek int
}

// WindowAggregate summarizes one metric over a gameweek window for one
// player. Cumulative carries the running total per included line, in input
// order, for comparison charts.
type WindowAggregate struct {
	Matches    int
	Minutes    int
	Total      OptionalValue
	Mean       OptionalValue
	PerNinety  OptionalValue
	Cumulative []float64
}

// DeriveWindow aggregates metric over the last n gameweeks of the ordered
// per-match lines of a single player. Lines that do not report the metric
// are excluded from the mean but still count toward minutes. No state is
// carried between calls.
func DeriveWindow(lines []WindowLine, metric string, lastN int) WindowAggregate {
	out := WindowAggregate{}
	if len(lines) == 0 || lastN <= 0 {
		return out
	}

	maxGameweek := lines[0].Gameweek
	for _, line := range lines[1:] {
		if line.Gameweek > maxGameweek {
			maxGameweek = line.Gameweek
		}
	}
	cutoff := maxGameweek - lastN

	var total float64
	reported := 0
	for _, line := range lines {
		if line.Gameweek <= cutoff {
			continue
		}
		out.Matches++
		out.Minutes += line.MinutesPlayed

		value, ok := line.Metric(metric)
		if !ok {
			continue
		}
		reported++
		total += value
		out.Cumulative = append(out.Cumulative, total)
	}

	if reported == 0 {
		return out
	}
	out.Total = definedValue(total)
	out.Mean = definedValue(total / float64(reported))
	out.PerNinety = PerNinety(total, out.Minutes)
	return out
}
