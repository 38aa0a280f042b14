package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/FranksOps/keyrank/internal/model"
)

// WriteMarkdown writes the report as GitHub-flavored Markdown.
func WriteMarkdown(w io.Writer, r *model.Report) error {
	sum := r.Summarize()
	md := markdown.NewMarkdown(w)

	md.H1("keyrank report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"URL", "`" + r.SourceURL + "`"},
			{"Domain", "`" + r.Domain + "`"},
			{"Analyzed", r.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", r.Duration.Round(time.Millisecond).String()},
		},
	})
	md.PlainText("")

	md.H2("Page Metadata")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Field", "Content"},
		Rows: [][]string{
			{"Title", orDash(r.Metadata.Title)},
			{"Description", orDash(r.Metadata.Description)},
			{"Meta keywords", orDash(r.Metadata.RawKeywords)},
		},
	})
	md.PlainText("")
	for _, d := range r.Degraded {
		md.Note(d)
		md.PlainText("")
	}

	writeMarkdownRankings(md, r, sum)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report %s generated by keyrank*", r.ID)

	if err := md.Build(); err != nil {
		return fmt.Errorf("report: render markdown: %w", err)
	}
	return nil
}

func writeMarkdownRankings(md *markdown.Markdown, r *model.Report, sum model.Summary) {
	md.H2("Keyword Rankings")
	md.PlainText("")

	if len(r.Rankings) == 0 {
		md.PlainText("No keywords found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(r.Rankings))
	for i, res := range r.Rankings {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			res.Keyword,
			statusText(res.Status),
			positionText(res.Position),
			res.Error,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Keyword", "Status", "Position", "Note"},
		Rows:   rows,
	})
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Lookup Outcomes"),
		piechart.WithShowData(true),
	)
	if sum.Found > 0 {
		chart.LabelAndIntValue("Found", uint64(sum.Found))
	}
	if sum.NotFound > 0 {
		chart.LabelAndIntValue("Not found", uint64(sum.NotFound))
	}
	if sum.LookupFailed > 0 {
		chart.LabelAndIntValue("Lookup failed", uint64(sum.LookupFailed))
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")

	switch {
	case sum.LookupFailed > 0:
		md.Warningf("%d of %d keyword lookups failed; their rank is unknown.", sum.LookupFailed, len(r.Rankings))
	case sum.Found == 0:
		md.Note("The domain was not found in the results for any keyword.")
	default:
		md.Tip(fmt.Sprintf("Best position: #%d for %q.", sum.BestPosition, sum.BestKeyword))
	}
	md.PlainText("")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
