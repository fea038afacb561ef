// Package report renders cycle results as markdown for archival and operator
// review.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/alanyoungcy/edgescan/internal/domain"
	"github.com/alanyoungcy/edgescan/internal/engine"
)

// maxListedOpportunities bounds the opportunity table; ranking puts the best
// candidates first so the tail adds little.
const maxListedOpportunities = 10

// Cycle renders one cycle result plus the current open book as a markdown
// document. Output is deterministic for a given input.
func Cycle(result engine.CycleResult, open []domain.Position) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "# Scan Report — %s\n\n", result.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Status: **%s**", result.Status)
	if result.Err != nil {
		fmt.Fprintf(&b, " (%v)", result.Err)
	}
	b.WriteString("\n\n")

	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Opportunities | %d |\n", len(result.Opportunities))
	fmt.Fprintf(&b, "| Opened | %d |\n", len(result.Opened))
	fmt.Fprintf(&b, "| Closed | %d |\n", len(result.Closed))
	fmt.Fprintf(&b, "| Flagged for review | %d |\n", len(result.Flagged))
	fmt.Fprintf(&b, "| Screened out | %d |\n", len(result.Skipped))
	fmt.Fprintf(&b, "| Open positions | %d |\n", len(open))
	fmt.Fprintf(&b, "| Duration | %s |\n\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))

	if len(result.Opportunities) > 0 {
		b.WriteString("## Top Opportunities\n\n")
		b.WriteString("| Market | Outcome | Price | Est. Prob | Exp. Return | Confidence |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for i, opp := range result.Opportunities {
			if i >= maxListedOpportunities {
				fmt.Fprintf(&b, "\n_%d more not shown._\n", len(result.Opportunities)-maxListedOpportunities)
				break
			}
			fmt.Fprintf(&b, "| %s | %s | %.3f | %.3f | %.1f%% | %.0f |\n",
				truncate(opp.Question, 60), opp.OutcomeName, opp.MarketPrice,
				opp.EstimatedProbability, opp.ExpectedReturn*100, opp.Confidence)
		}
		b.WriteString("\n")
	}

	if len(result.Opened) > 0 {
		b.WriteString("## Opened This Cycle\n\n")
		b.WriteString("| Market | Outcome | Entry | Size | Target | Stop |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, p := range result.Opened {
			fmt.Fprintf(&b, "| %s | %s | %.3f | %.2f | %.2f | %.2f |\n",
				truncate(p.Question, 60), p.Outcome, p.EntryPrice, p.Size,
				p.TargetExitPrice, p.StopLossPrice)
		}
		b.WriteString("\n")
	}

	if len(result.Closed) > 0 {
		b.WriteString("## Closed This Cycle\n\n")
		b.WriteString("| Market | Reason | Entry | Exit | Size |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, p := range result.Closed {
			exit := 0.0
			if p.ExitPrice != nil {
				exit = *p.ExitPrice
			}
			fmt.Fprintf(&b, "| %s | %s | %.3f | %.3f | %.2f |\n",
				truncate(p.Question, 60), p.CloseReason, p.EntryPrice, exit, p.Size)
		}
		b.WriteString("\n")
	}

	if len(result.Flagged) > 0 {
		b.WriteString("## Needs Review\n\n")
		for _, f := range result.Flagged {
			fmt.Fprintf(&b, "- **%s**: %s\n", truncate(f.Question, 60), f.Reason)
		}
		b.WriteString("\n")
	}

	if len(result.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	if len(open) > 0 {
		b.WriteString("## Open Positions\n\n")
		b.WriteString("| Market | Outcome | Entry | Size | Opened |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, p := range open {
			fmt.Fprintf(&b, "| %s | %s | %.3f | %.2f | %s |\n",
				truncate(p.Question, 60), p.Outcome, p.EntryPrice, p.Size,
				p.EntryTime.Format("2006-01-02"))
		}
		b.WriteString("\n")
	}

	return b.Bytes()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
