// Package export renders pipeline results as tabular records: a sentence
// sheet (one row per output sentence), a processing log (one row per
// non-direct unit), and a run summary. It performs no network I/O; callers
// supply the destination writer.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/alban-g/go-phraser/internal/pipeline"
)

// utf8BOM makes the CSV open cleanly in spreadsheet applications that guess
// the encoding of accented text.
const utf8BOM = "\uFEFF"

// Row is one line of the sentence sheet.
type Row struct {
	Num       int
	Sentence  string
	Original  string
	Method    string
	WordCount int
}

// Rows flattens results into sheet rows, numbering output sentences from 1.
// When showOriginal is set, non-direct rows carry the source unit and the
// method tag; direct rows stay blank so the sheet reads as plain text.
func Rows(results []pipeline.Result, showOriginal bool) []Row {
	var rows []Row
	num := 1

	for _, r := range results {
		for _, sentence := range r.Output {
			row := Row{
				Num:       num,
				Sentence:  sentence,
				WordCount: len(strings.Fields(sentence)),
			}
			if r.Method != pipeline.MethodDirect {
				row.Method = r.Method.String()
				if showOriginal {
					row.Original = r.Original
				}
			}
			rows = append(rows, row)
			num++
		}
	}
	return rows
}

// WriteCSV writes the sentence sheet. The Original and Method columns are
// included only when showOriginal is set.
func WriteCSV(w io.Writer, rows []Row, showOriginal bool) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	cw := csv.NewWriter(w)

	header := []string{"Row", "Sentence"}
	if showOriginal {
		header = append(header, "Original", "Method")
	}
	header = append(header, "Word_Count")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, row := range rows {
		record := []string{strconv.Itoa(row.Num), row.Sentence}
		if showOriginal {
			record = append(record, row.Original, row.Method)
		}
		record = append(record, strconv.Itoa(row.WordCount))
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row.Num, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// LogEntry is one line of the processing log: a unit that did not pass
// through directly, with its outcome and reason.
type LogEntry struct {
	UnitNumber int
	Original   string
	WordCount  int
	Method     string
	Output     string
	Success    bool
	Reason     string
}

// Log collects the non-direct units in result order. Unit numbers refer to
// positions in the full result list, so log lines can be traced back.
func Log(results []pipeline.Result) []LogEntry {
	var entries []LogEntry
	for i, r := range results {
		if r.Method == pipeline.MethodDirect {
			continue
		}
		entries = append(entries, LogEntry{
			UnitNumber: i + 1,
			Original:   r.Original,
			WordCount:  r.WordCount,
			Method:     r.Method.String(),
			Output:     strings.Join(r.Output, " | "),
			Success:    r.Success,
			Reason:     r.Reason,
		})
	}
	return entries
}

// WriteLogCSV writes the processing log.
func WriteLogCSV(w io.Writer, entries []LogEntry) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	cw := csv.NewWriter(w)

	header := []string{
		"Sentence_Number", "Original", "Original_Word_Count",
		"Method", "Output_Sentences", "Success", "Error",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, e := range entries {
		record := []string{
			strconv.Itoa(e.UnitNumber),
			e.Original,
			strconv.Itoa(e.WordCount),
			e.Method,
			e.Output,
			strconv.FormatBool(e.Success),
			e.Reason,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write log entry %d: %w", e.UnitNumber, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Summary aggregates one run for the closing report.
type Summary struct {
	TotalUnits      int
	OutputSentences int

	Direct           int
	ServiceRewritten int
	ServiceRepaired  int
	Mechanical       int
	Failures         int

	ServiceCalls int
	CacheHits    int

	Elapsed time.Duration
}

// Summarize derives the run summary from the result list and counters.
func Summarize(results []pipeline.Result, stats pipeline.Statistics, elapsed time.Duration) Summary {
	s := Summary{
		TotalUnits:       len(results),
		Direct:           stats.Direct,
		ServiceRewritten: stats.ServiceRewritten,
		ServiceRepaired:  stats.ServiceRepaired,
		Mechanical:       stats.Mechanical,
		Failures:         stats.Failures,
		ServiceCalls:     stats.ServiceCalls,
		CacheHits:        stats.CacheHits,
		Elapsed:          elapsed,
	}
	for _, r := range results {
		s.OutputSentences += len(r.Output)
	}
	return s
}
