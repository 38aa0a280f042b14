// Package model holds the records that flow through an analysis: page
// metadata, keyword candidates, rank results and the finished report.
package model

import "time"

// PageMetadata holds the raw on-page SEO fields of a fetched page.
type PageMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	RawKeywords string `json:"raw_keywords"`
}

// Candidate is a keyword or phrase considered for rank lookup. Key is the
// canonical comparison form of Display and is used for deduplication.
type Candidate struct {
	Display string `json:"display"`
	Key     string `json:"key"`
}

// RankStatus is the outcome of a single rank lookup.
type RankStatus string

const (
	StatusFound        RankStatus = "found"
	StatusNotFound     RankStatus = "not_found"
	StatusLookupFailed RankStatus = "lookup_failed"
)

// RankResult is the search position of one keyword for the target domain.
// Position is nil unless Status is StatusFound.
type RankResult struct {
	Keyword    string     `json:"keyword"`
	Position   *int       `json:"position,omitempty"`
	Status     RankStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	RawMatches []string   `json:"raw_matches,omitempty"`
}

// Report is the outcome of analyzing one page. Rankings follow the order of
// Candidates.
type Report struct {
	ID         string        `json:"id"`
	SourceURL  string        `json:"source_url"`
	Domain     string        `json:"domain"`
	Metadata   PageMetadata  `json:"metadata"`
	Candidates []Candidate   `json:"candidates"`
	Rankings   []RankResult  `json:"rankings"`
	Degraded   []string      `json:"degraded,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// Summary counts the ranking outcomes of a report.
type Summary struct {
	Found        int `json:"found"`
	NotFound     int `json:"not_found"`
	LookupFailed int `json:"lookup_failed"`
	// BestPosition is 0 when no keyword was found.
	BestPosition int    `json:"best_position"`
	BestKeyword  string `json:"best_keyword,omitempty"`
}

// Summarize tallies the rankings of the report.
func (r *Report) Summarize() Summary {
	var s Summary
	for _, rr := range r.Rankings {
		switch rr.Status {
		case StatusFound:
			s.Found++
			if rr.Position != nil && (s.BestPosition == 0 || *rr.Position < s.BestPosition) {
				s.BestPosition = *rr.Position
				s.BestKeyword = rr.Keyword
			}
		case StatusNotFound:
			s.NotFound++
		case StatusLookupFailed:
			s.LookupFailed++
		}
	}
	return s
}

// Found builds a RankResult for a keyword located at the given 1-based position.
func Found(keyword string, position int, matches []string) RankResult {
	p := position
	return RankResult{Keyword: keyword, Position: &p, Status: StatusFound, RawMatches: matches}
}

// NotFound builds a RankResult for a keyword absent from the inspected window.
func NotFound(keyword string, matches []string) RankResult {
	return RankResult{Keyword: keyword, Status: StatusNotFound, RawMatches: matches}
}

// LookupFailed builds a RankResult for a keyword whose lookup could not complete.
func LookupFailed(keyword, reason string) RankResult {
	return RankResult{Keyword: keyword, Status: StatusLookupFailed, Error: reason}
}
