package export

import (
	"fmt"
	"time"

	"github.com/fpfinfo/sosfu/internal/domain/entity"
	"github.com/fpfinfo/sosfu/internal/domain/workflow"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Requests"

var headers = []string{
	"ID", "Requester", "Status", "Category", "Cost Center", "Jurisdiction",
	"Amount", "Period Start", "Period End", "Submitted At", "Declared Total",
}

// ListingWorkbook renders the filtered request listing as a spreadsheet.
// The caller owns the returned file and must Close it.
func ListingWorkbook(requests []*entity.Request) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to style header: %w", err)
		}
	}

	for i, req := range requests {
		row := i + 2
		values := []interface{}{
			req.ID,
			req.RequesterID,
			describeStatus(req.Status),
			req.Category,
			req.CostCenter,
			req.Jurisdiction,
			req.Amount,
			formatDate(req.PeriodStart),
			formatDate(req.PeriodEnd),
			formatOptional(req.SubmittedAt),
			declaredTotal(req),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, fmt.Errorf("failed to compute cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
	}

	if err := f.SetColWidth(sheetName, "A", "A", 38); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(sheetName, "B", "K", 18); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	return f, nil
}

func describeStatus(s workflow.State) string {
	if desc := workflow.KindRequest.Describe(s); desc != "" {
		return desc
	}
	return s.String()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

func declaredTotal(req *entity.Request) interface{} {
	if req.Report == nil {
		return ""
	}
	return req.Report.DeclaredTotal
}
