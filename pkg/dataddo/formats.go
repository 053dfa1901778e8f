package dataddo

import (
	"fmt"
	"strings"
)

// Format selects the response encoding requested from the API.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// JSONFormat selects the shape of the data field for JSON responses.
type JSONFormat string

const (
	JSONFormatArray  JSONFormat = "2d_array"
	JSONFormatObject JSONFormat = "object_list"
)

// CSVDelimiter selects the field separator for CSV responses.
type CSVDelimiter string

const (
	CSVDelimiterSemicolon CSVDelimiter = ";"
	CSVDelimiterComma     CSVDelimiter = ","
	CSVDelimiterTab       CSVDelimiter = "\t"
)

// ColumnType is the per-column type tag reported by the API.
type ColumnType string

const (
	ColumnString  ColumnType = "string"
	ColumnInteger ColumnType = "integer"
	ColumnFloat   ColumnType = "float"
	ColumnDate    ColumnType = "date"
)

// Valid reports whether f is csv or json.
func (f Format) Valid() bool {
	return f == FormatCSV || f == FormatJSON
}

// Valid reports whether f is 2d_array or object_list.
func (f JSONFormat) Valid() bool {
	return f == JSONFormatArray || f == JSONFormatObject
}

// Valid reports whether d is a semicolon, comma or tab.
func (d CSVDelimiter) Valid() bool {
	switch d {
	case CSVDelimiterSemicolon, CSVDelimiterComma, CSVDelimiterTab:
		return true
	}
	return false
}

// Valid reports whether t is one of the documented column types.
func (t ColumnType) Valid() bool {
	switch t {
	case ColumnString, ColumnInteger, ColumnFloat, ColumnDate:
		return true
	}
	return false
}

// Name returns the config-file spelling of the delimiter.
func (d CSVDelimiter) Name() string {
	switch d {
	case CSVDelimiterSemicolon:
		return "semicolon"
	case CSVDelimiterComma:
		return "comma"
	case CSVDelimiterTab:
		return "tab"
	}
	return string(d)
}

// ParseFormat accepts "csv" or "json"; an empty string yields FormatJSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); {
	case f == "":
		return FormatJSON, nil
	case f.Valid():
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (expected csv or json)", s)
}

// ParseJSONFormat accepts "2d_array"/"array" or "object_list"/"object"; an empty string yields JSONFormatArray.
func ParseJSONFormat(s string) (JSONFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "2d_array", "array":
		return JSONFormatArray, nil
	case "object_list", "object":
		return JSONFormatObject, nil
	}
	return "", fmt.Errorf("unknown json_format %q (expected 2d_array or object_list)", s)
}

// ParseCSVDelimiter accepts a delimiter name or its literal character; an empty string yields a comma.
func ParseCSVDelimiter(s string) (CSVDelimiter, error) {
	if d := CSVDelimiter(s); d.Valid() {
		return d, nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "comma":
		return CSVDelimiterComma, nil
	case "semicolon":
		return CSVDelimiterSemicolon, nil
	case "tab", `\t`:
		return CSVDelimiterTab, nil
	}
	return "", fmt.Errorf("unknown csv_delimiter %q (expected semicolon, comma or tab)", s)
}
