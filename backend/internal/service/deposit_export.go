package service

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"scsc-homepage/backend/internal/dto"
)

var ErrDepositExportFailed = errors.New("生成核对结果 Excel 失败")

const (
	depositResultSheet  = "核对结果"
	depositSummarySheet = "汇总"
)

var depositResultHeaders = []string{"行号", "结果码", "说明", "入金人", "金额", "入金时间 (UTC)", "候选用户"}

// ────────────────────── ExportResults ──────────────────────

// ExportResults 每条结果一行，另附一张汇总表
func (s *depositService) ExportResults(batch *dto.BatchDepositResponse, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, _ := f.NewSheet(depositResultSheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	failStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "#C00000"},
	})

	f.SetColWidth(depositResultSheet, "A", "B", 8)
	f.SetColWidth(depositResultSheet, "C", "C", 36)
	f.SetColWidth(depositResultSheet, "D", "D", 18)
	f.SetColWidth(depositResultSheet, "E", "E", 12)
	f.SetColWidth(depositResultSheet, "F", "F", 22)
	f.SetColWidth(depositResultSheet, "G", "G", 40)

	if err := f.SetSheetRow(depositResultSheet, "A1", &depositResultHeaders); err != nil {
		return s.exportFailed(err)
	}
	last, _ := excelize.CoordinatesToCellName(len(depositResultHeaders), 1)
	f.SetCellStyle(depositResultSheet, "A1", last, headerStyle)

	for i, res := range batch.Results {
		row := i + 2
		values := []interface{}{
			res.Row,
			res.ResultCode,
			res.ResultMsg,
			res.Record.DepositName,
			res.Record.Amount,
			formatDepositTime(res.Record.DepositTime),
			candidateNames(res.Users),
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(depositResultSheet, start, &values); err != nil {
			return s.exportFailed(err)
		}
		if res.ResultCode != DepositOK {
			end, _ := excelize.CoordinatesToCellName(len(values), row)
			f.SetCellStyle(depositResultSheet, start, end, failStyle)
		}
	}

	f.NewSheet(depositSummarySheet)
	f.SetCellValue(depositSummarySheet, "A1", "成功")
	f.SetCellValue(depositSummarySheet, "B1", batch.Success)
	f.SetCellValue(depositSummarySheet, "A2", "失败")
	f.SetCellValue(depositSummarySheet, "B2", batch.Failure)
	f.SetCellStyle(depositSummarySheet, "A1", "A2", headerStyle)

	if err := f.Write(w); err != nil {
		return s.exportFailed(err)
	}
	return nil
}

func (s *depositService) exportFailed(err error) error {
	s.logger.Error("写入 Excel 失败", zap.Error(err))
	return fmt.Errorf("%w: %v", ErrDepositExportFailed, err)
}

func formatDepositTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func candidateNames(users []dto.DepositUser) string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, fmt.Sprintf("%s (%s)", u.Name, u.Status))
	}
	return strings.Join(names, ", ")
}
