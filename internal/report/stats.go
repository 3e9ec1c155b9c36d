package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/tiersync/tiersync/internal/ledger"
	"github.com/tiersync/tiersync/pkg/color"
	"github.com/tiersync/tiersync/pkg/config"
	"github.com/tiersync/tiersync/pkg/model"
)

// CacheStats aggregates all ledger rows for one cache name.
type CacheStats struct {
	Name                string `json:"name"`
	Operations          int    `json:"operations"`
	TotalBytes          int64  `json:"total_bytes"`
	LiteralBytes        int64  `json:"literal_bytes"`
	MatchedBytes        int64  `json:"matched_bytes"`
	FileCount           int64  `json:"file_count"`
	TotalDurationMS     int64  `json:"total_duration_ms"`
	EstimatedWriteBytes int64  `json:"estimated_write_bytes"`
}

// StatsReport is the aggregated metrics view of one scope's ledger.
type StatsReport struct {
	Scope            model.Scope  `json:"scope"`
	Caches           []CacheStats `json:"caches"`
	Totals           CacheStats   `json:"totals"`
	CompressionRatio float64      `json:"compression_ratio"`
}

// Empty reports whether the ledger held no usable rows.
func (r *StatsReport) Empty() bool {
	return len(r.Caches) == 0
}

// StatsReporter aggregates a scope's metrics ledger.
type StatsReporter struct {
	cfg *config.Config
}

// NewStats creates a stats reporter.
func NewStats(cfg *config.Config) *StatsReporter {
	return &StatsReporter{cfg: cfg}
}

// Gather reads the scope's ledger and aggregates it per cache name. Groups
// come from the rows themselves, so caches renamed or removed from the
// configuration still report their history. A non-empty filter restricts the
// report to that one cache name.
func (r *StatsReporter) Gather(scope model.Scope, filter string) (*StatsReport, error) {
	rows, err := ledger.New(r.cfg.LedgerPath(scope)).Rows()
	if err != nil {
		return nil, fmt.Errorf("read metrics ledger: %w", err)
	}

	ratio := r.cfg.CompressionRatio
	report := &StatsReport{Scope: scope, CompressionRatio: ratio}

	byName := make(map[string]*CacheStats)
	for _, row := range rows {
		if filter != "" && row.CacheName != filter {
			continue
		}
		cs, ok := byName[row.CacheName]
		if !ok {
			cs = &CacheStats{Name: row.CacheName}
			byName[row.CacheName] = cs
		}
		cs.accumulate(row)
		report.Totals.accumulate(row)
	}

	for _, cs := range byName {
		cs.EstimatedWriteBytes = estimateWrite(cs.LiteralBytes, ratio)
		report.Caches = append(report.Caches, *cs)
	}
	sort.Slice(report.Caches, func(i, j int) bool {
		return report.Caches[i].Name < report.Caches[j].Name
	})
	report.Totals.EstimatedWriteBytes = estimateWrite(report.Totals.LiteralBytes, ratio)
	return report, nil
}

func (cs *CacheStats) accumulate(row model.MetricsRow) {
	cs.Operations++
	cs.TotalBytes += row.TotalBytes
	cs.LiteralBytes += row.LiteralBytes
	cs.MatchedBytes += row.MatchedBytes
	cs.FileCount += row.FileCount
	cs.TotalDurationMS += row.DurationMS
}

// estimateWrite approximates bytes actually written to the backing store.
// Literal bytes are what crossed the wire; transparent compression on the
// persistent filesystem shrinks them by the configured ratio.
func estimateWrite(literal int64, ratio float64) int64 {
	return int64(float64(literal) * ratio)
}

// Render writes the human-readable stats view.
func (r *StatsReporter) Render(w io.Writer, report *StatsReport) {
	if report.Empty() {
		fmt.Fprintf(w, "no metrics data for %s scope\n", report.Scope)
		return
	}

	fmt.Fprintln(w, color.Header(fmt.Sprintf("%s scope transfer stats", report.Scope)))
	for _, cs := range report.Caches {
		avg := time.Duration(cs.TotalDurationMS/int64(cs.Operations)) * time.Millisecond
		fmt.Fprintf(w, "  %s: %d ops, %d files, %s transferred (%s literal, %s matched), ~%s written, %s avg\n",
			color.CacheName(cs.Name),
			cs.Operations,
			cs.FileCount,
			HumanBytes(cs.TotalBytes),
			HumanBytes(cs.LiteralBytes),
			HumanBytes(cs.MatchedBytes),
			HumanBytes(cs.EstimatedWriteBytes),
			avg)
	}
	if len(report.Caches) > 1 {
		t := report.Totals
		fmt.Fprintf(w, "  %s: %d ops, %s transferred, ~%s written\n",
			color.Header("total"), t.Operations, HumanBytes(t.TotalBytes), HumanBytes(t.EstimatedWriteBytes))
	}
	fmt.Fprintf(w, "  %s\n", color.Dim(fmt.Sprintf("write estimate assumes %.2fx on-disk compression", report.CompressionRatio)))
}
