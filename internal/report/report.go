// Package report renders analysis reports and archive summaries.
package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/FranksOps/keyrank/internal/model"
)

// Format selects an output renderer.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// ParseFormat parses a format name. The empty string selects text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "html":
		return FormatHTML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("report: unknown format %q", s)
}

// Write renders r in the given format.
func Write(w io.Writer, format Format, r *model.Report) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatHTML:
		return WriteHTML(w, r)
	case FormatMarkdown:
		return WriteMarkdown(w, r)
	case FormatText, "":
		return WriteText(w, r)
	}
	return fmt.Errorf("report: unknown format %q", format)
}

// jsonReport adds the computed summary to the serialized report.
type jsonReport struct {
	*model.Report
	Summary model.Summary `json:"summary"`
}

// WriteJSON writes the report and its summary as indented JSON.
func WriteJSON(w io.Writer, r *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonReport{Report: r, Summary: r.Summarize()}); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

// funcs are shared by the text and HTML templates.
var funcs = map[string]any{
	"position": positionText,
	"status":   statusText,
	"inc":      func(i int) int { return i + 1 },
	"ms":       func(d time.Duration) string { return d.Round(time.Millisecond).String() },
}

func positionText(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}

func statusText(s model.RankStatus) string {
	switch s {
	case model.StatusFound:
		return "found"
	case model.StatusNotFound:
		return "not found"
	case model.StatusLookupFailed:
		return "lookup failed"
	}
	return string(s)
}

type view struct {
	*model.Report
	Summary model.Summary
}

const textTmpl = `keyrank report
--------------
URL:           {{.SourceURL}}
Domain:        {{.Domain}}
Analyzed:      {{.StartedAt.Format "2006-01-02 15:04:05"}} ({{ms .Duration}})

Title:         {{.Metadata.Title}}
Description:   {{.Metadata.Description}}
Meta keywords: {{.Metadata.RawKeywords}}
{{- range .Degraded}}
Note:          {{.}}
{{- end}}

Rankings:
{{- range $i, $r := .Rankings}}
  {{printf "%2d" (inc $i)}}. {{printf "%-40s" $r.Keyword}} {{printf "%-14s" (status $r.Status)}} {{position $r.Position}}{{if $r.Error}}  ({{$r.Error}}){{end}}
{{- else}}
  None
{{- end}}

Found: {{.Summary.Found}}  Not found: {{.Summary.NotFound}}  Failed: {{.Summary.LookupFailed}}
{{- if .Summary.BestPosition}}
Best:  #{{.Summary.BestPosition}} for "{{.Summary.BestKeyword}}"
{{- end}}
`

var textTemplate = template.Must(template.New("textReport").Funcs(funcs).Parse(textTmpl))

// WriteText writes a human-readable report.
func WriteText(w io.Writer, r *model.Report) error {
	if err := textTemplate.Execute(w, view{Report: r, Summary: r.Summarize()}); err != nil {
		return fmt.Errorf("report: render text: %w", err)
	}
	return nil
}

// Page is the data behind the HTML page. With ShowForm set the page starts
// with a URL submission form; Report and Error are both optional.
type Page struct {
	ShowForm bool
	URL      string
	Error    string
	Report   *model.Report
	Summary  model.Summary
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>keyrank{{if .Report}} - {{.Report.Domain}}{{end}}</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  form input[type=text] { width: 420px; padding: 6px; }
  .error { color: #b00; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
  .found { color: green; }
  .lookup_failed { color: #b00; }
</style>
</head>
<body>
  <h1>keyrank</h1>
  {{- if .ShowForm}}
  <form method="post" action="/">
    <input type="text" name="url" placeholder="https://www.example.com/" value="{{.URL}}">
    <button type="submit">Analyze</button>
  </form>
  {{- end}}
  {{- if .Error}}
  <p class="error">{{.Error}}</p>
  {{- end}}
  {{- with .Report}}
  <p><strong>URL:</strong> {{.SourceURL}} ({{.Domain}})<br>
     <strong>Analyzed:</strong> {{.StartedAt.Format "2006-01-02 15:04:05"}} in {{ms .Duration}}</p>

  <h3>Page Metadata</h3>
  <table>
    <tr><th>Title</th><td>{{.Metadata.Title}}</td></tr>
    <tr><th>Description</th><td>{{.Metadata.Description}}</td></tr>
    <tr><th>Meta keywords</th><td>{{.Metadata.RawKeywords}}</td></tr>
  </table>
  {{- range .Degraded}}
  <p><em>{{.}}</em></p>
  {{- end}}
  {{- end}}
  {{- if .Report}}

  <div class="stat-card">
    <div>Found</div>
    <div class="stat-val">{{.Summary.Found}}</div>
  </div>
  <div class="stat-card">
    <div>Not Found</div>
    <div class="stat-val">{{.Summary.NotFound}}</div>
  </div>
  <div class="stat-card">
    <div>Lookup Failed</div>
    <div class="stat-val" style="color: {{if gt .Summary.LookupFailed 0}}red{{else}}green{{end}};">{{.Summary.LookupFailed}}</div>
  </div>

  <h3>Keyword Rankings</h3>
  <table>
    <tr><th>#</th><th>Keyword</th><th>Status</th><th>Position</th><th>Note</th></tr>
    {{- range $i, $r := .Report.Rankings}}
    <tr><td>{{inc $i}}</td><td>{{$r.Keyword}}</td><td class="{{$r.Status}}">{{status $r.Status}}</td><td>{{position $r.Position}}</td><td>{{$r.Error}}</td></tr>
    {{- else}}
    <tr><td colspan="5">No keywords found</td></tr>
    {{- end}}
  </table>
  {{- end}}
</body>
</html>
`

var htmlTemplate = htmltemplate.Must(htmltemplate.New("htmlReport").Funcs(funcs).Parse(htmlTmpl))

// WriteHTML writes a standalone HTML report.
func WriteHTML(w io.Writer, r *model.Report) error {
	return WriteHTMLPage(w, Page{Report: r})
}

// WriteHTMLPage renders p. Page content is escaped.
func WriteHTMLPage(w io.Writer, p Page) error {
	if p.Report != nil {
		p.Summary = p.Report.Summarize()
	}
	if err := htmlTemplate.Execute(w, p); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}
