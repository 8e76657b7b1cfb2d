// Package report renders spreadsheet summaries of recent requests for staff.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/edgard/intakebot/internal/database"
)

// ErrInvalidPeriod indicates a report period outside the supported set.
var ErrInvalidPeriod = errors.New("invalid report period")

// Period selects the trailing window a report covers.
type Period string

const (
	PeriodDay  Period = "day"
	PeriodWeek Period = "week"
)

const sheetName = "Report"

var headers = []string{"Request ID", "Client ID", "Branch", "Content kind", "Content", "Created at"}

// Generator renders xlsx reports from the request store.
type Generator struct {
	store  database.Store
	dir    string
	logger *slog.Logger
}

// NewGenerator creates a Generator writing files into dir.
func NewGenerator(store database.Store, dir string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Generator{
		store:  store,
		dir:    dir,
		logger: logger.With("component", "report"),
	}
}

// Generate renders all requests created within the trailing period into a
// tabular xlsx file, one row per content item, and returns the file path.
func (g *Generator) Generate(ctx context.Context, period Period) (string, error) {
	now := time.Now()

	var since time.Time
	switch period {
	case PeriodDay:
		since = now.AddDate(0, 0, -1)
	case PeriodWeek:
		since = now.AddDate(0, 0, -7)
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}

	requests, err := g.store.ListRequestsSince(ctx, since)
	if err != nil {
		return "", fmt.Errorf("failed to load requests for report: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			g.logger.WarnContext(ctx, "Error closing report workbook", "error", closeErr)
		}
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return "", fmt.Errorf("failed to set report sheet name: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return "", fmt.Errorf("failed to write report header: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", "F1", headerStyle); err != nil {
		return "", fmt.Errorf("failed to apply header style: %w", err)
	}

	row := 2
	for _, req := range requests {
		branch := ""
		if req.Branch.Valid {
			branch = req.Branch.String
		}

		if len(req.Items) == 0 {
			if err := writeRow(f, row, req.ID, req.RequesterID, branch, "", "", req.CreatedAt); err != nil {
				return "", err
			}
			row++
			continue
		}
		for _, item := range req.Items {
			if err := writeRow(f, row, req.ID, req.RequesterID, branch, string(item.Kind), item.Content, item.CreatedAt); err != nil {
				return "", err
			}
			row++
		}
	}

	if err := f.SetColWidth(sheetName, "A", "F", 24); err != nil {
		return "", fmt.Errorf("failed to set report column widths: %w", err)
	}

	filePath := filepath.Join(g.dir, fmt.Sprintf("report_%s_%s.xlsx", period, now.Format("20060102")))
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("failed to save report file: %w", err)
	}

	g.logger.InfoContext(ctx, "Report generated",
		"period", period, "path", filePath, "request_count", len(requests))
	return filePath, nil
}

func writeRow(f *excelize.File, row int, requestID string, requesterID int64, branch, kind, content string, createdAt time.Time) error {
	values := []any{
		requestID,
		requesterID,
		branch,
		kind,
		content,
		createdAt.Format("2006-01-02 15:04:05"),
	}
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("failed to compute report cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, value); err != nil {
			return fmt.Errorf("failed to write report row %d: %w", row, err)
		}
	}
	return nil
}
