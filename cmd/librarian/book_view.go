package main

import (
	"io"
	"strconv"
	"strings"

	"librarian/internal/profile"
	"librarian/internal/queue"
)

// profileTable lists the resolved fields of p, skipping empty ones.
func profileTable(w io.Writer, p *profile.BookProfile) string {
	rows := make([][]string, 0, len(profile.AllFields))
	for _, f := range profile.AllFields {
		fv := p.Field(f)
		if fv == nil || fv.Value == "" {
			continue
		}
		sources := make([]string, 0, len(fv.Sources))
		for _, s := range fv.Sources {
			sources = append(sources, string(s))
		}
		locked := ""
		if fv.Locked {
			locked = "locked"
		}
		rows = append(rows, []string{
			string(f),
			fv.Value,
			strconv.Itoa(fv.Confidence),
			strings.Join(sources, ", "),
			locked,
		})
	}
	if len(rows) == 0 {
		return "No fields identified\n"
	}
	return renderTable(w,
		[]string{"Field", "Value", "Confidence", "Sources", ""},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

func historyTable(w io.Writer, entries []*queue.HistoryEntry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			strconv.FormatInt(e.BookID, 10),
			string(e.Status),
			e.Reason,
			e.OldAuthor + " / " + e.OldTitle,
			e.NewAuthor + " / " + e.NewTitle,
			formatWhen(e.CreatedAt),
		})
	}
	return renderTable(w,
		[]string{"Fix", "Book", "Status", "Reason", "From", "To", "When"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}
