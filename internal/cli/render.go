package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/okian/vauva/internal/catalog"
	"github.com/okian/vauva/internal/domain/heart"
	"github.com/okian/vauva/internal/voting"
)

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func hearts(score int) string {
	return strings.Repeat("♥", score)
}

func printRating(w io.Writer, rater, name string, rating heart.Rating) {
	switch v := rating.(type) {
	case heart.Extended:
		rounds := make([]string, 0, len(v.Rounds))
		for _, rs := range v.Rounds {
			rounds = append(rounds, strconv.Itoa(rs.Round))
		}
		_, _ = fmt.Fprintf(w, "%s: %s %s (rounds %s)\n", rater, name, hearts(v.Score), strings.Join(rounds, ","))
	case heart.BaseRated:
		_, _ = fmt.Fprintf(w, "%s: %s %s\n", rater, name, hearts(v.Score))
	default:
		_, _ = fmt.Fprintf(w, "%s: %s not rated\n", rater, name)
	}
}

func printGroups(w io.Writer, groups []voting.RaterGroup) {
	if len(groups) == 0 {
		_, _ = fmt.Fprintln(w, "no hearts yet")
		return
	}
	tw := table(w)
	for _, g := range groups {
		_, _ = fmt.Fprintf(tw, "%s\n", g.Username)
		for _, h := range g.Hearts {
			_, _ = fmt.Fprintf(tw, "  %s\t%s\n", h.Name, hearts(h.Score))
		}
	}
	_ = tw.Flush()
}

func printMatrix(w io.Writer, m voting.Matrix) {
	tw := table(w)
	_, _ = fmt.Fprintf(tw, "round %d\t%s\ttotal\n", m.Round, strings.Join(m.Raters, "\t"))
	for _, row := range m.Rows {
		cells := make([]string, len(row.Scores))
		for i, s := range row.Scores {
			cells[i] = "-"
			if s > 0 {
				cells[i] = strconv.Itoa(s)
			}
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\n", row.Name, strings.Join(cells, "\t"), row.Total)
	}
	_ = tw.Flush()
}

func printStanding(w io.Writer, standing []voting.Standing) {
	tw := table(w)
	for i, s := range standing {
		mark := ""
		if s.Pinned {
			mark = "*"
		}
		_, _ = fmt.Fprintf(tw, "%d.\t%s%s\t%d\n", i+1, s.Name, mark, s.Aggregate)
	}
	_ = tw.Flush()
}

func printNames(w io.Writer, page catalog.Page) {
	tw := table(w)
	for _, n := range page.Names {
		_, _ = fmt.Fprintf(tw, "%s\t%d\n", n.Name, n.Count)
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(w, "%s/%s page %d of %d (%d names)\n", page.View, page.Order, page.Page+1, page.PageCount, page.Total)
}
