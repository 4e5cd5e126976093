package presenter

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/Brownie44l1/fer-demo/internal/session"
)

const barWidth = 30

func WriteStatus(w io.Writer, st session.Status) error {
	_, err := fmt.Fprintf(w, "[%s] %s\n", strings.ToUpper(string(st.Severity)), st.Message)
	return err
}

// WriteChart prints up to top rows as a horizontal bar chart. The
// highlighted rows are marked with an asterisk. top <= 0 prints all rows.
func WriteChart(w io.Writer, rows []Row, top int) error {
	if top <= 0 || top > len(rows) {
		top = len(rows)
	}
	labelWidth := 0
	for _, r := range rows[:top] {
		labelWidth = max(labelWidth, len(r.Label))
	}
	for _, r := range rows[:top] {
		filled := int(math.Round(r.Score * barWidth))
		filled = min(max(filled, 0), barWidth)
		mark := " "
		if r.Highlight {
			mark = "*"
		}
		bar := strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)
		if _, err := fmt.Fprintf(w, "%s %-*s |%s| %6s\n", mark, labelWidth, r.Label, bar, r.Percent); err != nil {
			return err
		}
	}
	return nil
}
