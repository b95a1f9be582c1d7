package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// StatementRow is one ledger line in a rendered score statement.
type StatementRow struct {
	Timestamp   time.Time
	EventType   string
	Lesson      string
	BasePoints  int
	BonusPoints int
	PointsAdded int
	ScoreAfter  int
}

// Statement is a student's ledger prepared for export.
type Statement struct {
	StudentID   string
	StudentName string
	FinalScore  int
	GeneratedAt time.Time
	Rows        []StatementRow
}

var statementHeaders = []string{"Date", "Event", "Lesson", "Base", "Bonus", "Applied", "Score"}

// RenderCSV encodes the statement as CSV.
func RenderCSV(st Statement) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(statementHeaders); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range st.Rows {
		if err := writer.Write(recordFor(row)); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderPDF renders the statement as a tabular PDF document.
func RenderPDF(st Statement) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	title := st.StudentName
	if title == "" {
		title = st.StudentID
	}
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, strings.ToUpper("Score Statement - "+title), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 7, fmt.Sprintf("Current score: %d    Generated: %s", st.FinalScore, st.GeneratedAt.Format("2006-01-02 15:04")), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	colWidth := 190.0 / float64(len(statementHeaders))
	for _, header := range statementHeaders {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range st.Rows {
		for _, cell := range recordFor(row) {
			pdf.CellFormat(colWidth, 7, cell, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func recordFor(row StatementRow) []string {
	return []string{
		row.Timestamp.Format("2006-01-02 15:04"),
		row.EventType,
		row.Lesson,
		strconv.Itoa(row.BasePoints),
		strconv.Itoa(row.BonusPoints),
		strconv.Itoa(row.PointsAdded),
		strconv.Itoa(row.ScoreAfter),
	}
}
