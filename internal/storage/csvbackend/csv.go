package csvbackend

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/keyrank/internal/model"
	"github.com/FranksOps/keyrank/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order. The summary columns are for
// spreadsheet use; report_json is the source of truth when reading back.
var headers = []string{
	"id",
	"source_url",
	"domain",
	"title",
	"candidates",
	"found",
	"not_found",
	"lookup_failed",
	"best_position",
	"best_keyword",
	"started_at",
	"duration_ms",
	"report_json",
}

const reportColumn = 12

// New creates a new CSV-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csv: stat: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
	}

	return &csvBackend{
		file: f,
	}, nil
}

func (b *csvBackend) SaveReport(ctx context.Context, report *model.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("csv: encode report: %w", err)
	}
	sum := report.Summarize()

	record := []string{
		report.ID,
		report.SourceURL,
		report.Domain,
		report.Metadata.Title,
		strconv.Itoa(len(report.Candidates)),
		strconv.Itoa(sum.Found),
		strconv.Itoa(sum.NotFound),
		strconv.Itoa(sum.LookupFailed),
		strconv.Itoa(sum.BestPosition),
		sum.BestKeyword,
		report.StartedAt.UTC().Format(time.RFC3339Nano),
		strconv.FormatInt(report.Duration.Milliseconds(), 10),
		string(payload),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("csv: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(record); err != nil {
		return fmt.Errorf("csv: write report: %w", err)
	}
	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: write report: %w", err)
	}

	return nil
}

func (b *csvBackend) QueryReports(ctx context.Context, filter storage.Filter) ([]*model.Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)

	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return []*model.Report{}, nil
		}
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	var matched []*model.Report

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read row: %w", err)
		}

		if len(record) != len(headers) {
			continue // skip malformed rows
		}

		var rep model.Report
		if err := json.Unmarshal([]byte(record[reportColumn]), &rep); err != nil {
			continue
		}

		if filter.Matches(&rep) {
			matched = append(matched, &rep)
		}
	}

	storage.Reverse(matched)
	return filter.Page(matched), nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
