package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/keyrank/internal/model"
)

// Summary aggregates a set of archived reports.
type Summary struct {
	TotalAnalyses int            `json:"total_analyses"`
	TotalKeywords int            `json:"total_keywords"`
	Found         int            `json:"found"`
	NotFound      int            `json:"not_found"`
	LookupFailed  int            `json:"lookup_failed"`
	Degraded      int            `json:"degraded"`
	Domains       map[string]int `json:"domains"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       time.Time      `json:"end_time"`
	Duration      time.Duration  `json:"duration"`
}

// GenerateSummary processes archived reports into aggregate counts.
func GenerateSummary(reports []*model.Report) Summary {
	s := Summary{
		Domains: make(map[string]int),
	}

	if len(reports) == 0 {
		return s
	}

	s.StartTime = reports[0].StartedAt
	s.EndTime = reports[0].StartedAt

	for _, r := range reports {
		sum := r.Summarize()
		s.TotalAnalyses++
		s.TotalKeywords += len(r.Rankings)
		s.Found += sum.Found
		s.NotFound += sum.NotFound
		s.LookupFailed += sum.LookupFailed
		if len(r.Degraded) > 0 {
			s.Degraded++
		}
		s.Domains[r.Domain]++

		if r.StartedAt.Before(s.StartTime) {
			s.StartTime = r.StartedAt
		}
		if r.StartedAt.After(s.EndTime) {
			s.EndTime = r.StartedAt
		}
	}

	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

type historyView struct {
	Reports []historyRow
	Summary Summary
}

type historyRow struct {
	*model.Report
	Sum model.Summary
}

const historyTmpl = `{{- range .Reports}}
{{.StartedAt.Format "2006-01-02 15:04"}}  {{printf "%-36s" .ID}}  {{printf "%-30s" .Domain}}  kw={{len .Rankings}} found={{.Sum.Found}} failed={{.Sum.LookupFailed}}{{if .Sum.BestPosition}} best=#{{.Sum.BestPosition}}{{end}}
{{- else}}
No archived reports.
{{- end}}
{{- if .Summary.TotalAnalyses}}

Analyses:  {{.Summary.TotalAnalyses}} across {{len .Summary.Domains}} domain(s)
Period:    {{.Summary.StartTime.Format "2006-01-02 15:04:05"}} - {{.Summary.EndTime.Format "2006-01-02 15:04:05"}}
Keywords:  {{.Summary.TotalKeywords}} (found {{.Summary.Found}}, not found {{.Summary.NotFound}}, failed {{.Summary.LookupFailed}})
Degraded:  {{.Summary.Degraded}}
{{- end}}
`

var historyTemplate = template.Must(template.New("history").Parse(historyTmpl))

// WriteHistoryText lists reports one per line followed by their summary.
func WriteHistoryText(w io.Writer, reports []*model.Report) error {
	v := historyView{Summary: GenerateSummary(reports)}
	for _, r := range reports {
		v.Reports = append(v.Reports, historyRow{Report: r, Sum: r.Summarize()})
	}
	if err := historyTemplate.Execute(w, v); err != nil {
		return fmt.Errorf("report: render history: %w", err)
	}
	return nil
}

// WriteHistoryJSON writes the reports and their summary as indented JSON.
func WriteHistoryJSON(w io.Writer, reports []*model.Report) error {
	if reports == nil {
		reports = []*model.Report{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	err := enc.Encode(struct {
		Summary Summary         `json:"summary"`
		Reports []*model.Report `json:"reports"`
	}{GenerateSummary(reports), reports})
	if err != nil {
		return fmt.Errorf("report: encode history: %w", err)
	}
	return nil
}
