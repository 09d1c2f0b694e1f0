package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// Format selects the export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat maps a flag value or file extension to a Format.
func ParseFormat(raw string) (Format, error) {
	switch raw {
	case "json", ".json":
		return FormatJSON, nil
	case "xlsx", ".xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", raw)
}

// ResultsExport is the top-level JSON structure for a results export.
type ResultsExport struct {
	QuizID      string             `json:"quiz_id,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
	Count       int                `json:"count"`
	Results     []domain.Result    `json:"results"`
	Stats       []domain.QuizStats `json:"stats"`
}

// Build assembles an export document. An empty quizID means every quiz.
func Build(quizID string, results []domain.Result, now time.Time) ResultsExport {
	return ResultsExport{
		QuizID:      quizID,
		GeneratedAt: now.UTC(),
		Count:       len(results),
		Results:     results,
		Stats:       statsByQuiz(results),
	}
}

// Write encodes doc in the requested format.
func Write(w io.Writer, format Format, doc ResultsExport) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, doc)
	case FormatXLSX:
		return WriteXLSX(w, doc)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

// WriteJSON writes doc as indented JSON with a trailing newline.
func WriteJSON(w io.Writer, doc ResultsExport) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

var resultHeader = []interface{}{
	"Attempt", "Quiz", "Quiz Name", "Name", "Registration ID",
	"Score", "Correct", "Total", "Submitted At", "Forced",
}

var summaryHeader = []interface{}{
	"Quiz", "Attempts", "Mean Score", "Max Score", "Min Score",
}

// WriteXLSX writes a workbook with a Results sheet (one row per ledger entry)
// and a Summary sheet (one row per quiz).
func WriteXLSX(w io.Writer, doc ResultsExport) error {
	f := excelize.NewFile()
	defer f.Close()

	const results, summary = "Results", "Summary"
	if err := f.SetSheetName("Sheet1", results); err != nil {
		return err
	}
	if _, err := f.NewSheet(summary); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := f.SetSheetRow(results, "A1", &resultHeader); err != nil {
		return err
	}
	for i, r := range doc.Results {
		row := []interface{}{
			r.AttemptID, r.QuizID, r.QuizName, r.Identity.Name, r.Identity.RegistrationID,
			r.Score, r.Correct, r.TotalQuestions, r.SubmittedAt.UTC().Format(time.RFC3339), r.Forced,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(results, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(results, "A1", "J1", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(results, "A", "J", 18); err != nil {
		return err
	}

	if err := f.SetSheetRow(summary, "A1", &summaryHeader); err != nil {
		return err
	}
	for i, s := range doc.Stats {
		row := []interface{}{s.QuizID, s.Attempts, s.MeanScore, s.MaxScore, s.MinScore}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(summary, "A1", "E1", bold); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func statsByQuiz(results []domain.Result) []domain.QuizStats {
	grouped := map[string][]domain.Result{}
	for _, r := range results {
		grouped[r.QuizID] = append(grouped[r.QuizID], r)
	}
	ids := make([]string, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	stats := make([]domain.QuizStats, 0, len(ids))
	for _, id := range ids {
		stats = append(stats, app.ComputeStats(id, grouped[id]))
	}
	return stats
}
