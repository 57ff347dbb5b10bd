// Package importer decodes bank-statement payloads into raw records. Damaged
// records are kept: a missing description becomes empty and an unparseable
// amount becomes zero, so the categorizer can still emit a default record.
package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/merchant-categorizer/internal/domain"
)

// Format is an input encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ErrUnsupportedFormat is returned for formats other than json and csv.
var ErrUnsupportedFormat = errors.New("unsupported input format")

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "jsonl":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// FormatFromName guesses the format from a file name or URI extension.
func FormatFromName(name string) Format {
	if strings.EqualFold(path.Ext(name), ".csv") {
		return FormatCSV
	}
	return FormatJSON
}

// Decode decodes data in the given format.
func Decode(data []byte, format Format) ([]domain.RawRecord, error) {
	switch format {
	case FormatJSON:
		return DecodeJSON(data)
	case FormatCSV:
		return DecodeCSV(data)
	default:
		return nil, fmt.Errorf("Decode: %w: %q", ErrUnsupportedFormat, format)
	}
}

// DecodeJSON accepts an array of records, an object wrapping one under
// "records" or "transactions", or newline-delimited objects.
func DecodeJSON(data []byte) ([]domain.RawRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	items, err := decodeItems(data)
	if err != nil {
		return nil, fmt.Errorf("DecodeJSON: %w", err)
	}

	records := make([]domain.RawRecord, 0, len(items))
	for _, item := range items {
		records = append(records, recordFromItem(item))
	}
	return records, nil
}

func decodeItems(data []byte) ([]interface{}, error) {
	switch data[0] {
	case '[':
		var items []interface{}
		if err := unmarshalNumbers(data, &items); err != nil {
			return nil, fmt.Errorf("decoding array: %w", err)
		}
		return items, nil
	case '{':
		var obj map[string]interface{}
		if err := unmarshalNumbers(data, &obj); err == nil {
			for _, key := range []string{"records", "transactions"} {
				if list, ok := obj[key].([]interface{}); ok {
					return list, nil
				}
			}
			return []interface{}{obj}, nil
		}
		return decodeLines(data)
	default:
		return nil, fmt.Errorf("expected JSON array or object, got %q", data[0])
	}
}

// decodeLines reads newline-delimited JSON objects.
func decodeLines(data []byte) ([]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var items []interface{}
	for dec.More() {
		var item interface{}
		if err := dec.Decode(&item); err != nil {
			return nil, fmt.Errorf("decoding line %d: %w", len(items)+1, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func unmarshalNumbers(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON value")
	}
	return nil
}

// recordFromItem never fails; fields of the wrong type are treated as absent.
func recordFromItem(item interface{}) domain.RawRecord {
	m, ok := item.(map[string]interface{})
	if !ok {
		return domain.RawRecord{}
	}

	rec := domain.RawRecord{
		Date:        NormalizeDate(getStringField(m, "date", "data")),
		Description: getStringField(m, "description", "descricao", "historico"),
		AccountRef:  getStringField(m, "account_ref", "account", "conta"),
	}
	rec.Amount, _ = ParseAmount(getField(m, "amount", "valor"))
	if v := getField(m, "balance", "saldo"); v != nil {
		if b, ok := ParseAmount(v); ok {
			rec.Balance = &b
		}
	}
	return rec
}

func getField(m map[string]interface{}, keys ...string) interface{} {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func getStringField(m map[string]interface{}, keys ...string) string {
	switch val := getField(m, keys...).(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return ""
	}
}

// ParseAmount converts a JSON value to a decimal. It accepts numbers,
// "-150.00", "1.234,56", "R$ 1.234,56" and "150,00-". The boolean is false
// when the value could not be parsed; the amount is then zero.
func ParseAmount(v interface{}) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case string:
		return ParseAmountString(val)
	default:
		return decimal.Zero, false
	}
}

// ParseAmountString parses a formatted amount. When both '.' and ',' occur the
// last one is the decimal separator; a lone ',' is a decimal comma. The sign
// may lead, trail, or come as parentheses.
func ParseAmountString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if s == "" {
		return decimal.Zero, false
	}

	negative := false
	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"):
		negative = true
		s = s[1 : len(s)-1]
	case strings.HasSuffix(s, "-"):
		negative = true
		s = strings.TrimSuffix(s, "-")
	}
	// The symbol may follow the sign: "-R$ 150,00".
	s = strings.TrimPrefix(s, "R$")
	if s == "" || s[0] == '-' || s[0] == '+' {
		return decimal.Zero, false
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastDot > lastComma && lastComma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}
