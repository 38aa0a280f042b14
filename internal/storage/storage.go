// Package storage archives analysis reports so past runs can be listed and
// compared.
package storage

import (
	"context"
	"strings"
	"time"

	"github.com/FranksOps/keyrank/internal/model"
)

// Filter selects archived reports. Zero fields match everything.
type Filter struct {
	// URL matches the analyzed URL exactly.
	URL string
	// Domain matches the extracted domain, case-insensitively.
	Domain string
	Since  *time.Time
	Limit  int
	Offset int
}

// Backend stores and queries reports. Query results are ordered newest first.
type Backend interface {
	SaveReport(ctx context.Context, report *model.Report) error
	QueryReports(ctx context.Context, filter Filter) ([]*model.Report, error)
	Close() error
}

// Matches reports whether r passes the URL, Domain and Since conditions.
func (f Filter) Matches(r *model.Report) bool {
	if f.URL != "" && r.SourceURL != f.URL {
		return false
	}
	if f.Domain != "" && !strings.EqualFold(r.Domain, f.Domain) {
		return false
	}
	if f.Since != nil && r.StartedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Page applies Offset and Limit to an already ordered slice.
func (f Filter) Page(reports []*model.Report) []*model.Report {
	if f.Offset > 0 {
		if f.Offset >= len(reports) {
			return []*model.Report{}
		}
		reports = reports[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(reports) {
		reports = reports[:f.Limit]
	}
	return reports
}

// Reverse turns append order into newest-first order in place.
func Reverse(reports []*model.Report) {
	for i, j := 0, len(reports)-1; i < j; i, j = i+1, j-1 {
		reports[i], reports[j] = reports[j], reports[i]
	}
}
