package fbref

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	crerr "github.com/cockroachdb/errors"

	"github.com/prasetyadi/statmerge/internal/domain/rawstat"
)

var matchweekRegex = regexp.MustCompile(`\d+`)

// identityStats are cell attributes that describe the player rather than
// the performance. Every other numeric cell is captured as a metric, so
// columns the site adds or drops flow through without a code change.
var identityStats = map[string]struct{}{
	"player":      {},
	"team":        {},
	"minutes":     {},
	"position":    {},
	"age":         {},
	"nation":      {},
	"shirtnumber": {},
}

// tableSuffix returns the id suffix the site uses for a category's stats
// tables. Most categories match their own name; a few are abbreviated.
func tableSuffix(category rawstat.Category) string {
	switch category {
	case rawstat.CategoryDefensive:
		return "defense"
	case rawstat.CategoryMiscellaneous:
		return "misc"
	case rawstat.CategoryGoalkeeper:
		return "keeper"
	default:
		return string(category)
	}
}

// parseFixtureList extracts the played fixtures from the schedule page.
// Rows without a match report link have not been played yet and are skipped.
func parseFixtureList(raw []byte, baseURL string) ([]rawstat.FixtureRef, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, crerr.Wrap(err, "parse schedule document")
	}

	fixtures := make([]rawstat.FixtureRef, 0, 64)
	var parseErr error
	doc.Find("table.stats_table tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if row.HasClass("spacer") || row.HasClass("thead") {
			return true
		}

		reportLink, ok := row.Find("td[data-stat=match_report] a").Attr("href")
		if !ok || strings.TrimSpace(reportLink) == "" {
			return true
		}

		home := cellText(row, "home_team")
		away := cellText(row, "away_team")
		dateText := cellText(row, "date")
		if home == "" || away == "" || dateText == "" {
			return true
		}

		date, err := time.Parse("2006-01-02", dateText)
		if err != nil {
			parseErr = crerr.Wrapf(err, "parse fixture date %q", dateText)
			return false
		}

		fixtures = append(fixtures, rawstat.FixtureRef{
			HomeTeam: home,
			AwayTeam: away,
			Date:     date,
			URL:      strings.TrimRight(baseURL, "/") + reportLink,
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return fixtures, nil
}

// parseCategoryRows reads one category's tables from a match report page.
// Each match page carries one table per category per team; the table id
// embeds the category name, e.g. stats_abc123_summary.
func parseCategoryRows(raw []byte, category rawstat.Category, fixture rawstat.FixtureRef) ([]rawstat.StatRow, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, crerr.Wrap(err, "parse match report document")
	}

	suffix := "_" + tableSuffix(category)
	tables := doc.Find("table").FilterFunction(func(_ int, table *goquery.Selection) bool {
		id, ok := table.Attr("id")
		return ok && strings.HasPrefix(id, "stats_") && strings.HasSuffix(id, suffix)
	})
	if tables.Length() == 0 {
		return nil, crerr.Newf("category table %q missing from match report %s", category, fixture.URL)
	}

	gameweek := parseMatchweek(doc)

	rows := make([]rawstat.StatRow, 0, 32)
	tables.Each(func(_ int, table *goquery.Selection) {
		team := teamForTable(table, fixture)
		table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
			name := strings.TrimSpace(tr.Find("th[data-stat=player]").Text())
			if name == "" {
				return
			}

			row := rawstat.StatRow{
				RawPlayerName: name,
				RawTeamName:   team,
				MatchDate:     fixture.Date,
				IsHome:        team == fixture.HomeTeam,
				Gameweek:      gameweek,
				Metrics:       make(map[string]float64, 16),
			}
			if row.IsHome {
				row.Opponent = fixture.AwayTeam
			} else {
				row.Opponent = fixture.HomeTeam
			}

			tr.Find("td[data-stat]").Each(func(_ int, td *goquery.Selection) {
				stat, _ := td.Attr("data-stat")
				text := strings.TrimSpace(td.Text())
				if text == "" {
					return
				}
				if stat == "minutes" {
					if minutes, err := strconv.Atoi(text); err == nil {
						row.MinutesPlayed = minutes
					}
					return
				}
				if _, skip := identityStats[stat]; skip {
					return
				}
				if value, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64); err == nil {
					row.Metrics[stat] = value
				}
			})

			rows = append(rows, row)
		})
	})
	return rows, nil
}

// teamForTable resolves which side a stats table belongs to from its
// caption, falling back to the home team when the caption is unreadable.
func teamForTable(table *goquery.Selection, fixture rawstat.FixtureRef) string {
	caption := strings.TrimSpace(table.Find("caption").Text())
	if strings.Contains(caption, fixture.AwayTeam) {
		return fixture.AwayTeam
	}
	if strings.Contains(caption, fixture.HomeTeam) {
		return fixture.HomeTeam
	}
	if id, ok := table.Attr("id"); ok && strings.Contains(id, "_away_") {
		return fixture.AwayTeam
	}
	return fixture.HomeTeam
}

func parseMatchweek(doc *goquery.Document) *int {
	text := doc.Find("div.scorebox_meta").Text()
	idx := strings.Index(strings.ToLower(text), "matchweek")
	if idx < 0 {
		return nil
	}
	digits := matchweekRegex.FindString(text[idx:])
	if digits == "" {
		return nil
	}
	week, err := strconv.Atoi(digits)
	if err != nil || week <= 0 {
		return nil
	}
	return &week
}

func cellText(row *goquery.Selection, stat string) string {
	cell := row.Find(fmt.Sprintf("td[data-stat=%s]", stat))
	if cell.Length() == 0 {
		cell = row.Find(fmt.Sprintf("th[data-stat=%s]", stat))
	}
	return strings.TrimSpace(cell.Text())
}
