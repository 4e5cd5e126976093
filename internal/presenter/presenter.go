// Package presenter turns session snapshots into display rows, an HTML page
// and a terminal bar chart.
package presenter

import (
	"strings"

	"github.com/Brownie44l1/fer-demo/internal/model"
	"github.com/Brownie44l1/fer-demo/internal/session"
)

var severityColors = map[session.Severity]string{
	session.SeverityInfo:    "#fbbf24",
	session.SeveritySuccess: "#4ade80",
	session.SeverityError:   "#f87171",
}

// StatusColor maps a severity to its text colour. Unknown severities render
// as info.
func StatusColor(sev session.Severity) string {
	if c, ok := severityColors[sev]; ok {
		return c
	}
	return severityColors[session.SeverityInfo]
}

type Row struct {
	Label     string  `json:"label"`
	Score     float64 `json:"score"`
	Width     string  `json:"width"`
	Percent   string  `json:"percent"`
	Highlight bool    `json:"highlight"`
}

// Rows rebuilds the result list in ranking order. Every row whose score
// equals the maximum is highlighted.
func Rows(r *model.Ranking) []Row {
	if r == nil || len(r.Entries) == 0 {
		return nil
	}
	hi := r.MaxScore()
	rows := make([]Row, 0, len(r.Entries))
	for _, e := range r.Entries {
		pct := e.Percent()
		rows = append(rows, Row{
			Label:     strings.ToUpper(e.Label),
			Score:     e.Score,
			Width:     pct,
			Percent:   pct,
			Highlight: e.Score == hi,
		})
	}
	return rows
}

// View is everything the page template needs.
type View struct {
	Snapshot    session.Snapshot
	StatusColor string
	Rows        []Row
	Labels      []string
}

func NewView(snap session.Snapshot, labels model.Labels) View {
	return View{
		Snapshot:    snap,
		StatusColor: StatusColor(snap.Status.Severity),
		Rows:        Rows(snap.Ranking),
		Labels:      labels,
	}
}
