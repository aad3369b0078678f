// Package notifier renders scan results into briefings and delivers
// them to the console and an optional webhook.
package notifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vadiminshakov/surge/internal/domain"
)

const (
	maxBriefingAlerts = 10
	maxRankMovers     = 5
	// rankMoverMinJump minimum 24h trade-value rank improvement worth
	// reporting.
	rankMoverMinJump = 10
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	bullStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}).
			Bold(true)

	bearStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D94F4F", Dark: "#F57373"}).
			Bold(true)

	contextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#909090", Dark: "#6C6C6C"})
)

// RankMove a market that climbed the 24h trade-value ranking since the
// previous scan.
type RankMove struct {
	Market   string
	From, To int
}

// RankMovers diffs two ranking snapshots and returns the biggest
// climbers, best jump first. The previous snapshot may be empty on the
// first scan.
func RankMovers(previous, current map[string]int) []RankMove {
	var moves []RankMove
	for market, rank := range current {
		prev, ok := previous[market]
		if !ok {
			continue
		}
		if prev-rank >= rankMoverMinJump {
			moves = append(moves, RankMove{Market: market, From: prev, To: rank})
		}
	}
	sort.Slice(moves, func(i, j int) bool {
		ji, jj := moves[i].From-moves[i].To, moves[j].From-moves[j].To
		if ji != jj {
			return ji > jj
		}
		return moves[i].Market < moves[j].Market
	})
	if len(moves) > maxRankMovers {
		moves = moves[:maxRankMovers]
	}
	return moves
}

// Briefing renders the plain-text scan summary sent to the webhook.
func Briefing(alerts []domain.Alert, movers []RankMove) string {
	if len(alerts) == 0 && len(movers) == 0 {
		return ""
	}

	var b strings.Builder
	if len(alerts) > 0 {
		b.WriteString("Market scan alerts\n")
		for i, alert := range alerts {
			if i == maxBriefingAlerts {
				b.WriteString(fmt.Sprintf("...and %d more\n", len(alerts)-maxBriefingAlerts))
				break
			}
			b.WriteString(formatAlertLine(alert))
			for _, ctx := range alert.Candidate.Contexts {
				b.WriteString("    " + ctx + "\n")
			}
		}
	}

	if len(movers) > 0 {
		b.WriteString("Volume rank movers (24h)\n")
		for _, m := range movers {
			b.WriteString(fmt.Sprintf("  %s #%d -> #%d\n", m.Market, m.From, m.To))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// RenderConsole renders the styled briefing printed to the terminal.
func RenderConsole(alerts []domain.Alert, movers []RankMove) string {
	if len(alerts) == 0 && len(movers) == 0 {
		return ""
	}

	var b strings.Builder
	if len(alerts) > 0 {
		b.WriteString(titleStyle.Render("Market scan alerts") + "\n")
		for i, alert := range alerts {
			if i == maxBriefingAlerts {
				b.WriteString(contextStyle.Render(fmt.Sprintf("...and %d more", len(alerts)-maxBriefingAlerts)) + "\n")
				break
			}
			line := formatAlertLine(alert)
			if alert.Type.Bearish() {
				b.WriteString(bearStyle.Render(strings.TrimRight(line, "\n")) + "\n")
			} else {
				b.WriteString(bullStyle.Render(strings.TrimRight(line, "\n")) + "\n")
			}
			for _, ctx := range alert.Candidate.Contexts {
				b.WriteString(contextStyle.Render("    "+ctx) + "\n")
			}
		}
	}

	if len(movers) > 0 {
		b.WriteString(titleStyle.Render("Volume rank movers (24h)") + "\n")
		for _, m := range movers {
			b.WriteString(fmt.Sprintf("  %s #%d -> #%d\n", m.Market, m.From, m.To))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func formatAlertLine(alert domain.Alert) string {
	c := alert.Candidate
	return fmt.Sprintf("  [P%d] %s %s %+.2f%% (RVOL %.1fx, confidence %.0f%%)\n",
		alert.Priority, c.Market, alert.Type, c.PriceChange, c.RVOL, c.Confidence*100)
}
