package service

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/attendance-api/internal/models"
)

var errMissingNameColumn = errors.New("header row must contain a name column")

var rosterColumns = map[string]string{
	"name":         "name",
	"fullname":     "name",
	"full_name":    "name",
	"age":          "age",
	"gender":       "gender",
	"sex":          "gender",
	"phonenumber":  "phoneNumber",
	"phone_number": "phoneNumber",
	"phone":        "phoneNumber",
}

// ParseRoster reads roster rows from CSV or XLSX content. The format is chosen by file extension,
// falling back to sniffing the zip signature of XLSX workbooks.
func ParseRoster(filename string, data []byte) ([]models.ImportRow, error) {
	var records [][]string
	var err error
	switch ext := strings.ToLower(filepath.Ext(filename)); {
	case ext == ".xlsx" || (ext != ".csv" && bytes.HasPrefix(data, []byte("PK\x03\x04"))):
		records, err = readXLSX(data)
	default:
		records, err = readCSV(data)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("file is empty")
	}

	index, err := headerIndex(records[0])
	if err != nil {
		return nil, err
	}

	rows := make([]models.ImportRow, 0, len(records)-1)
	for i, record := range records[1:] {
		if blank(record) {
			continue
		}
		rows = append(rows, models.ImportRow{
			Row:         i + 1,
			Name:        cell(record, index, "name"),
			Age:         cell(record, index, "age"),
			Gender:      cell(record, index, "gender"),
			PhoneNumber: cell(record, index, "phoneNumber"),
		})
	}
	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	var records [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		records = append(records, record)
	}
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	return rows, nil
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.ReplaceAll(key, " ", "_")
		if col, ok := rosterColumns[key]; ok {
			if _, dup := index[col]; !dup {
				index[col] = i
			}
		}
	}
	if _, ok := index["name"]; !ok {
		return nil, errMissingNameColumn
	}
	return index, nil
}

func cell(record []string, index map[string]int, column string) string {
	i, ok := index[column]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
