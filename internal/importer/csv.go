package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/dvloznov/merchant-categorizer/internal/domain"
	"github.com/dvloznov/merchant-categorizer/internal/similarity"
)

// ErrMissingColumn is returned when a CSV header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

var (
	dateHeaders        = []string{"DATE", "DATA", "DATA LANCAMENTO", "DATA MOVIMENTO"}
	descriptionHeaders = []string{"DESCRIPTION", "DESCRICAO", "HISTORICO", "LANCAMENTO"}
	amountHeaders      = []string{"AMOUNT", "VALOR", "VALOR (R$)"}
	balanceHeaders     = []string{"BALANCE", "SALDO", "SALDO (R$)"}
	accountHeaders     = []string{"ACCOUNT", "ACCOUNT_REF", "CONTA"}
)

type columns struct {
	date, description, amount, balance, account int
}

// DecodeCSV reads a headered CSV export. The delimiter is ';' or ',' as found
// in the header line; input that is not valid UTF-8 is read as Windows-1252.
func DecodeCSV(data []byte) ([]domain.RawRecord, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var r io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		r = transform.NewReader(r, charmap.Windows1252.NewDecoder())
	}

	reader := csv.NewReader(r)
	reader.Comma = detectDelimiter(data)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("DecodeCSV: reading header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, fmt.Errorf("DecodeCSV: %w", err)
	}

	var records []domain.RawRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("DecodeCSV: reading line %d: %w", len(records)+2, err)
		}
		if blankRow(row) {
			continue
		}
		records = append(records, cols.record(row))
	}
	return records, nil
}

func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func mapColumns(header []string) (columns, error) {
	cols := columns{date: -1, description: -1, amount: -1, balance: -1, account: -1}
	for i, h := range header {
		key := similarity.Fold(h)
		switch {
		case cols.date < 0 && slices.Contains(dateHeaders, key):
			cols.date = i
		case cols.description < 0 && slices.Contains(descriptionHeaders, key):
			cols.description = i
		case cols.amount < 0 && slices.Contains(amountHeaders, key):
			cols.amount = i
		case cols.balance < 0 && slices.Contains(balanceHeaders, key):
			cols.balance = i
		case cols.account < 0 && slices.Contains(accountHeaders, key):
			cols.account = i
		}
	}
	if cols.description < 0 {
		return cols, fmt.Errorf("%w: description", ErrMissingColumn)
	}
	if cols.amount < 0 {
		return cols, fmt.Errorf("%w: amount", ErrMissingColumn)
	}
	return cols, nil
}

func (c columns) record(row []string) domain.RawRecord {
	rec := domain.RawRecord{
		Date:        NormalizeDate(cell(row, c.date)),
		Description: cell(row, c.description),
		AccountRef:  cell(row, c.account),
	}
	rec.Amount, _ = ParseAmountString(cell(row, c.amount))
	if b, ok := ParseAmountString(cell(row, c.balance)); ok {
		rec.Balance = &b
	}
	return rec
}

// cell returns "" for absent columns and short rows.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blankRow(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02/01/06",
	"02-01-2006",
	time.RFC3339,
}

// NormalizeDate rewrites recognised layouts as YYYY-MM-DD. Anything else is
// returned trimmed but otherwise unchanged.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}
