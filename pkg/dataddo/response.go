package dataddo

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Matrix holds table rows. Numbers are kept as json.Number so integer columns
// survive without float rounding; strings, booleans and nil pass through.
type Matrix [][]any

// Shape returns the number of rows and the width of the first row.
func (m Matrix) Shape() (rows, cols int) {
	if len(m) == 0 {
		return 0, 0
	}
	return len(m), len(m[0])
}

func (m Matrix) clone() Matrix {
	if m == nil {
		return nil
	}
	out := make(Matrix, len(m))
	for i, row := range m {
		out[i] = append([]any(nil), row...)
	}
	return out
}

// DataResponse is the table returned by a successful data call. It has no
// mutating methods; accessors return copies.
type DataResponse struct {
	header    []string
	data      Matrix
	types     []ColumnType
	columnIDs []string
	totalRows int
}

func (r *DataResponse) Header() []string        { return append([]string(nil), r.header...) }
func (r *DataResponse) Data() Matrix            { return r.data.clone() }
func (r *DataResponse) Types() []ColumnType     { return append([]ColumnType(nil), r.types...) }
func (r *DataResponse) ColumnIDs() []string     { return append([]string(nil), r.columnIDs...) }
func (r *DataResponse) TotalRows() int          { return r.totalRows }
func (r *DataResponse) Shape() (rows, cols int) { return len(r.data), len(r.header) }

// Cell returns the value at row, col or nil when out of range.
func (r *DataResponse) Cell(row, col int) any {
	if row < 0 || row >= len(r.data) || col < 0 || col >= len(r.data[row]) {
		return nil
	}
	return r.data[row][col]
}

// Truncated reports whether the server holds more rows than were returned.
func (r *DataResponse) Truncated() bool {
	return r.totalRows > len(r.data)
}

type wireResponse struct {
	Header    []string     `json:"header"`
	Data      Matrix       `json:"data"`
	Type      []ColumnType `json:"type"`
	ColumnID  []string     `json:"columnID"`
	TotalRows int          `json:"totalRows"`
}

// MarshalJSON encodes the response in the API's 2-D array wire shape.
func (r *DataResponse) MarshalJSON() ([]byte, error) {
	data := r.data
	if data == nil {
		data = Matrix{}
	}
	return json.Marshal(wireResponse{
		Header:    r.header,
		Data:      data,
		Type:      r.types,
		ColumnID:  r.columnIDs,
		TotalRows: r.totalRows,
	})
}

// ParseDataResponse decodes an API response body. Every one of header, data,
// type, columnID and totalRows must be present; the header, type and columnID
// lists must agree in length with each other and with every data row.
func ParseDataResponse(body []byte) (*DataResponse, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &MalformedResponseError{Cause: err}
	}

	resp := &DataResponse{}
	if err := decodeField(raw, "header", &resp.header); err != nil {
		return nil, err
	}
	if err := decodeField(raw, "type", &resp.types); err != nil {
		return nil, err
	}
	if err := decodeField(raw, "columnID", &resp.columnIDs); err != nil {
		return nil, err
	}

	var total json.Number
	if err := decodeField(raw, "totalRows", &total); err != nil {
		return nil, err
	}
	n, err := total.Int64()
	if err != nil {
		return nil, &MalformedResponseError{Field: "totalRows", Cause: err}
	}
	if n < 0 {
		return nil, &MalformedResponseError{Field: "totalRows", Cause: fmt.Errorf("negative count %d", n)}
	}
	resp.totalRows = int(n)

	var rows []json.RawMessage
	if err := decodeField(raw, "data", &rows); err != nil {
		return nil, err
	}

	cols := len(resp.header)
	if len(resp.types) != cols {
		return nil, &MalformedResponseError{Field: "type", Cause: fmt.Errorf("%d types for %d columns", len(resp.types), cols)}
	}
	if len(resp.columnIDs) != cols {
		return nil, &MalformedResponseError{Field: "columnID", Cause: fmt.Errorf("%d column ids for %d columns", len(resp.columnIDs), cols)}
	}

	resp.data = make(Matrix, 0, len(rows))
	for i, rawRow := range rows {
		row, err := resp.decodeRow(rawRow)
		if err != nil {
			return nil, &MalformedResponseError{Field: fmt.Sprintf("data[%d]", i), Cause: err}
		}
		resp.data = append(resp.data, row)
	}
	return resp, nil
}

func decodeField(raw map[string]json.RawMessage, name string, dst any) error {
	v, ok := raw[name]
	if !ok || len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return &MalformedResponseError{Field: name, Cause: fmt.Errorf("missing")}
	}
	if err := unmarshalNumbers(v, dst); err != nil {
		return &MalformedResponseError{Field: name, Cause: err}
	}
	return nil
}

// decodeRow accepts a positional array or, for object_list responses, an object
// keyed by header name or column id.
func (r *DataResponse) decodeRow(raw json.RawMessage) ([]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty row")
	}

	switch trimmed[0] {
	case '[':
		var row []any
		if err := unmarshalNumbers(trimmed, &row); err != nil {
			return nil, err
		}
		if len(row) != len(r.header) {
			return nil, fmt.Errorf("%d values for %d columns", len(row), len(r.header))
		}
		return row, nil
	case '{':
		var obj map[string]any
		if err := unmarshalNumbers(trimmed, &obj); err != nil {
			return nil, err
		}
		row := make([]any, len(r.header))
		for i, name := range r.header {
			if v, ok := obj[name]; ok {
				row[i] = v
			} else if v, ok := obj[r.columnIDs[i]]; ok {
				row[i] = v
			}
		}
		return row, nil
	default:
		return nil, fmt.Errorf("row is neither an array nor an object")
	}
}

func unmarshalNumbers(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(dst)
}
