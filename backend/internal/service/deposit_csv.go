package service

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"

	"scsc-homepage/backend/internal/dto"
)

// 银行导出文件上限
const (
	MaxBankCSVBytes = 5 << 20
	MaxBankCSVRows  = 20000
)

// ── 银行 CSV 解析错误 ──

var (
	ErrCSVTooLarge       = errors.New("CSV 文件超过 5MB")
	ErrCSVTooManyRows    = errors.New("CSV 行数超过上限")
	ErrCSVMissingColumns = errors.New("CSV 缺少必需的列")
	ErrCSVMalformed      = errors.New("CSV 格式无效")
)

// 银行导出的列名
const (
	columnAmount = "입금액"
	columnTime   = "거래일시"
)

var nameColumns = []string{"보낸분/받는분", "보낸분·받는분"}

var bankTimeLayouts = []string{"2006.01.02 15:04:05", "2006-01-02 15:04:05", "2006.01.02 15:04", "2006-01-02 15:04"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type csvOptions struct {
	headerLines  int
	trailerLines int
	location     *time.Location
}

// csvRow 一条入金行；line 为文件中的行号（从 1 开始）
type csvRow struct {
	line   int
	record dto.DepositRecord
	err    error
}

type csvColumns struct {
	amount, time, name int
}

// parseBankCSV 跳过固定行数的页眉页脚，之后第一条记录为列名
// 带引号的字段可以跨行；行号始终是记录在文件中的起始物理行
// 入金额为空或为 0 的行（出金）被忽略
func parseBankCSV(r io.Reader, opts csvOptions) ([]csvRow, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxBankCSVBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCSVMalformed, err)
	}
	if len(raw) > MaxBankCSVBytes {
		return nil, ErrCSVTooLarge
	}

	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		raw, err = korean.EUCKR.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: 无法识别的编码: %v", ErrCSVMalformed, err)
		}
	}

	text := strings.TrimRight(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	cr := csv.NewReader(strings.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	lines, err := readCSVLines(cr)
	if err != nil {
		return nil, err
	}
	if len(lines) <= opts.headerLines+opts.trailerLines {
		return nil, fmt.Errorf("%w: 文件没有数据", ErrCSVMissingColumns)
	}
	body := lines[opts.headerLines : len(lines)-opts.trailerLines]
	for len(body) > 0 && body[0].fields == nil {
		body = body[1:]
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: 文件没有数据", ErrCSVMissingColumns)
	}

	cols, err := locateColumns(body[0].fields)
	if err != nil {
		return nil, err
	}

	var rows []csvRow
	for _, l := range body[1:] {
		if l.fields == nil {
			continue
		}
		row, keep := parseBankRow(l.fields, cols, opts.location)
		if !keep {
			continue
		}
		row.line = l.line
		rows = append(rows, row)
		if len(rows) > MaxBankCSVRows {
			return nil, ErrCSVTooManyRows
		}
	}
	return rows, nil
}

// csvLine 页眉页脚按逻辑行计数：一条记录（可跨多个物理行）或一个空行
// 空行的 fields 为 nil
type csvLine struct {
	line   int
	fields []string
}

// readCSVLines encoding/csv 会吞掉空行，这里按记录的行号把空行补回来
func readCSVLines(cr *csv.Reader) ([]csvLine, error) {
	var (
		lines   []csvLine
		prevEnd int
	)
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCSVMalformed, err)
		}

		start, _ := cr.FieldPos(0)
		for blank := prevEnd + 1; blank < start; blank++ {
			lines = append(lines, csvLine{line: blank})
		}
		last := len(fields) - 1
		lastLine, _ := cr.FieldPos(last)
		prevEnd = lastLine + strings.Count(fields[last], "\n")

		lines = append(lines, csvLine{line: start, fields: fields})
	}
}

func locateColumns(header []string) (csvColumns, error) {
	cols := csvColumns{amount: -1, time: -1, name: -1}
	for i, h := range header {
		h = strings.TrimSpace(h)
		switch {
		case h == columnAmount:
			cols.amount = i
		case h == columnTime:
			cols.time = i
		case slices.Contains(nameColumns, h):
			cols.name = i
		}
	}
	if cols.amount < 0 || cols.time < 0 || cols.name < 0 {
		return cols, fmt.Errorf("%w: 需要 %s、%s、%s", ErrCSVMissingColumns, columnAmount, columnTime, nameColumns[0])
	}
	return cols, nil
}

func parseBankRow(fields []string, cols csvColumns, loc *time.Location) (csvRow, bool) {
	amountRaw := strings.ReplaceAll(fieldAt(fields, cols.amount), ",", "")
	if amountRaw == "" || amountRaw == "0" {
		return csvRow{}, false
	}

	row := csvRow{record: dto.DepositRecord{DepositName: fieldAt(fields, cols.name)}}

	amount, err := strconv.ParseInt(amountRaw, 10, 64)
	if err != nil {
		row.err = fmt.Errorf("入金额 %q 无效", amountRaw)
		return row, true
	}
	if amount == 0 {
		return csvRow{}, false
	}
	row.record.Amount = amount

	at, err := parseBankTime(fieldAt(fields, cols.time), loc)
	if err != nil {
		row.err = err
		return row, true
	}
	row.record.DepositTime = at
	return row, true
}

// parseBankTime 按银行所在时区解析后转为 UTC
func parseBankTime(raw string, loc *time.Location) (time.Time, error) {
	for _, layout := range bankTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("交易时间 %q 无效", raw)
}

func fieldAt(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}
