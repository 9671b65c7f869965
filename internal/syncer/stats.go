package syncer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Status is the outcome of processing one asset.
type Status string

const (
	StatusUpdated      Status = "updated"
	StatusSimulated    Status = "simulated"
	StatusSkipped      Status = "skipped"
	StatusFileNotFound Status = "file_not_found"
	StatusPathMismatch Status = "path_segment_mismatch"
	StatusError        Status = "errors"
)

// Statuses lists every status in report order.
var Statuses = []Status{
	StatusUpdated,
	StatusSimulated,
	StatusSkipped,
	StatusFileNotFound,
	StatusPathMismatch,
	StatusError,
}

// maxFailures caps the failures kept in Stats.
const maxFailures = 100

// Failure describes one asset that ended in an error status.
type Failure struct {
	AssetID string `json:"asset_id"`
	Path    string `json:"path,omitempty"`
	Status  Status `json:"status"`
	Error   string `json:"error"`
}

// Stats summarizes a sync run.
type Stats struct {
	RunID           string         `json:"run_id"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
	DryRun          bool           `json:"dry_run"`
	Categories      []string       `json:"categories"`
	Total           int            `json:"total"`
	Resumed         int            `json:"resumed"`
	Updated         int            `json:"updated"`
	Simulated       int            `json:"simulated"`
	Skipped         int            `json:"skipped"`
	FileNotFound    int            `json:"file_not_found"`
	PathMismatch    int            `json:"path_segment_mismatch"`
	Errors          int            `json:"errors"`
	ReadFailed      int            `json:"read_failed"`
	DetailFetches   int            `json:"detail_fetches"`
	CategoryChanges map[string]int `json:"category_changes"`
	Failures        []Failure      `json:"failures,omitempty"`
}

// Processed returns the number of assets that reached a status.
func (s *Stats) Processed() int {
	return s.Updated + s.Simulated + s.Skipped + s.FileNotFound + s.PathMismatch + s.Errors
}

// Count returns the counter of one status.
func (s *Stats) Count(status Status) int {
	switch status {
	case StatusUpdated:
		return s.Updated
	case StatusSimulated:
		return s.Simulated
	case StatusSkipped:
		return s.Skipped
	case StatusFileNotFound:
		return s.FileNotFound
	case StatusPathMismatch:
		return s.PathMismatch
	case StatusError:
		return s.Errors
	}
	return 0
}

// Counts flattens the counters for storage with the run record.
func (s *Stats) Counts() map[string]int {
	counts := map[string]int{
		"total":          s.Total,
		"resumed":        s.Resumed,
		"read_failed":    s.ReadFailed,
		"detail_fetches": s.DetailFetches,
	}
	for _, st := range Statuses {
		counts[string(st)] = s.Count(st)
	}
	for c, n := range s.CategoryChanges {
		counts["category:"+c] = n
	}
	return counts
}

// recorder collects per-asset outcomes from concurrent workers.
type recorder struct {
	statuses      [6]atomic.Int64
	readFailed    atomic.Int64
	detailFetches atomic.Int64

	mu       sync.Mutex
	changes  map[string]int
	failures []Failure
}

func newRecorder() *recorder {
	return &recorder{changes: make(map[string]int)}
}

func statusIndex(s Status) int {
	for i, st := range Statuses {
		if st == s {
			return i
		}
	}
	return len(Statuses) - 1
}

func (r *recorder) record(o outcome) {
	r.statuses[statusIndex(o.Status)].Add(1)
	if o.ReadFailed {
		r.readFailed.Add(1)
	}
	if o.DetailFetched {
		r.detailFetches.Add(1)
	}
	if len(o.Changed) == 0 && o.Err == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range o.Changed {
		r.changes[string(c)]++
	}
	if o.Err != nil && len(r.failures) < maxFailures {
		r.failures = append(r.failures, Failure{
			AssetID: o.AssetID,
			Path:    o.Path,
			Status:  o.Status,
			Error:   o.Err.Error(),
		})
	}
}

func (r *recorder) fill(s *Stats) {
	s.Updated = int(r.statuses[0].Load())
	s.Simulated = int(r.statuses[1].Load())
	s.Skipped = int(r.statuses[2].Load())
	s.FileNotFound = int(r.statuses[3].Load())
	s.PathMismatch = int(r.statuses[4].Load())
	s.Errors = int(r.statuses[5].Load())
	s.ReadFailed = int(r.readFailed.Load())
	s.DetailFetches = int(r.detailFetches.Load())

	r.mu.Lock()
	defer r.mu.Unlock()
	s.CategoryChanges = make(map[string]int, len(r.changes))
	for c, n := range r.changes {
		s.CategoryChanges[c] = n
	}
	s.Failures = append([]Failure(nil), r.failures...)
}

// MountHints inspects the outcome counters for signs of a wrong photo
// directory mount or path segment count.
func MountHints(s *Stats, photoDir string, segments int) []string {
	if s == nil || s.Total == 0 {
		return nil
	}
	var hints []string
	notFound := float64(s.FileNotFound) / float64(s.Total) * 100
	mismatch := float64(s.PathMismatch) / float64(s.Total) * 100

	switch {
	case notFound > 90:
		hints = append(hints,
			fmt.Sprintf("%.1f%% of assets (%d/%d) were not found on disk", notFound, s.FileNotFound, s.Total),
			fmt.Sprintf("the library is probably not mounted at IMMICH_PHOTO_DIR (%s)", photoDir),
			"if running in Docker, mount the Immich library so that IMMICH_PHOTO_DIR points at it",
		)
	case notFound > 50:
		hints = append(hints,
			fmt.Sprintf("%.1f%% of assets (%d/%d) were not found on disk", notFound, s.FileNotFound, s.Total),
			"check IMMICH_PHOTO_DIR and the volume mount",
		)
	}
	if mismatch > 50 {
		hints = append(hints,
			fmt.Sprintf("%.1f%% of assets (%d/%d) have fewer path segments than IMMICH_PATH_SEGMENTS=%d", mismatch, s.PathMismatch, s.Total, segments),
			"set IMMICH_PATH_SEGMENTS to the number of originalPath components below the mount point",
		)
	}
	return hints
}

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// StatsFileName returns the default export file name for a format.
func StatsFileName(format string, at time.Time) string {
	return fmt.Sprintf("immich_sync_stats_%s.%s", at.Format("20060102_150405"), format)
}

// ExportStats writes the stats to path as json or csv.
func ExportStats(s *Stats, path, format string) error {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return fmt.Errorf("could not encode stats: %w", err)
		}
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("could not write stats file: %w", err)
		}
		return nil
	case FormatCSV:
		return exportCSV(s, path)
	default:
		return fmt.Errorf("unknown stats format %q (use json or csv)", format)
	}
}

func exportCSV(s *Stats, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create stats file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("could not close stats file: %w", cerr)
		}
	}()

	counts := s.Counts()
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ts := s.FinishedAt.Format(time.RFC3339)
	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "run_id", "metric", "value"}); err != nil {
		return fmt.Errorf("could not write stats: %w", err)
	}
	for _, k := range keys {
		if err := w.Write([]string{ts, s.RunID, k, strconv.Itoa(counts[k])}); err != nil {
			return fmt.Errorf("could not write stats: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("could not write stats: %w", err)
	}
	return nil
}
