package dataddo

import (
	"encoding/json"
	"errors"
	"testing"
)

const wellFormedBody = `{"header":["a","b"],"data":[[1,2]],"type":["integer","integer"],"columnID":["c1","c2"],"totalRows":1}`

func TestParseDataResponseWellFormed(t *testing.T) {
	resp, err := ParseDataResponse([]byte(wellFormedBody))
	if err != nil {
		t.Fatalf("ParseDataResponse: %v", err)
	}
	if h := resp.Header(); len(h) != 2 || h[0] != "a" || h[1] != "b" {
		t.Fatalf("header = %v", h)
	}
	if rows, cols := resp.Data().Shape(); rows != 1 || cols != 2 {
		t.Fatalf("shape = (%d,%d)", rows, cols)
	}
	if resp.TotalRows() != 1 {
		t.Fatalf("total rows = %d", resp.TotalRows())
	}
	if types := resp.Types(); types[0] != ColumnInteger || types[1] != ColumnInteger {
		t.Fatalf("types = %v", types)
	}
	if ids := resp.ColumnIDs(); ids[0] != "c1" || ids[1] != "c2" {
		t.Fatalf("column ids = %v", ids)
	}
	if n, ok := resp.Cell(0, 1).(json.Number); !ok || n.String() != "2" {
		t.Fatalf("cell(0,1) = %#v", resp.Cell(0, 1))
	}
	if resp.Truncated() {
		t.Fatalf("response should not be truncated")
	}
}

func TestParseDataResponseMissingFields(t *testing.T) {
	bodies := map[string]string{
		"header":    `{"data":[],"type":[],"columnID":[],"totalRows":0}`,
		"data":      `{"header":[],"type":[],"columnID":[],"totalRows":0}`,
		"type":      `{"header":[],"data":[],"columnID":[],"totalRows":0}`,
		"columnID":  `{"header":["a","b"],"data":[[1,2]],"type":["integer","integer"],"totalRows":1}`,
		"totalRows": `{"header":[],"data":[],"type":[],"columnID":[]}`,
	}
	for field, body := range bodies {
		t.Run(field, func(t *testing.T) {
			_, err := ParseDataResponse([]byte(body))
			var malformed *MalformedResponseError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedResponseError, got %v", err)
			}
			if malformed.Field != field {
				t.Fatalf("field = %q, want %q", malformed.Field, field)
			}
		})
	}
}

func TestParseDataResponseRejectsInconsistentShapes(t *testing.T) {
	bodies := []string{
		`{"header":["a","b"],"data":[[1]],"type":["integer","integer"],"columnID":["c1","c2"],"totalRows":1}`,
		`{"header":["a","b"],"data":[],"type":["integer"],"columnID":["c1","c2"],"totalRows":0}`,
		`{"header":["a"],"data":[],"type":["string"],"columnID":[],"totalRows":0}`,
		`{"header":["a"],"data":[7],"type":["string"],"columnID":["c1"],"totalRows":1}`,
		`{"header":null,"data":[],"type":[],"columnID":[],"totalRows":0}`,
		`{"header":[],"data":[],"type":[],"columnID":[],"totalRows":"many"}`,
		`not json`,
	}
	for _, body := range bodies {
		_, err := ParseDataResponse([]byte(body))
		var malformed *MalformedResponseError
		if !errors.As(err, &malformed) {
			t.Fatalf("body %s: expected MalformedResponseError, got %v", body, err)
		}
	}
}

func TestParseDataResponseRejectsNegativeTotalRows(t *testing.T) {
	_, err := ParseDataResponse([]byte(`{"header":[],"data":[],"type":[],"columnID":[],"totalRows":-5}`))
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) || malformed.Field != "totalRows" {
		t.Fatalf("expected totalRows MalformedResponseError, got %v", err)
	}
}

func TestParseDataResponseObjectList(t *testing.T) {
	body := `{"header":["name","qty"],"data":[{"name":"x","qty":3},{"c2":4,"name":"y"}],"type":["string","integer"],"columnID":["c1","c2"],"totalRows":10}`
	resp, err := ParseDataResponse([]byte(body))
	if err != nil {
		t.Fatalf("ParseDataResponse: %v", err)
	}
	if resp.Cell(0, 0) != "x" || resp.Cell(1, 0) != "y" {
		t.Fatalf("names = %v, %v", resp.Cell(0, 0), resp.Cell(1, 0))
	}
	if n, ok := resp.Cell(1, 1).(json.Number); !ok || n.String() != "4" {
		t.Fatalf("qty by column id = %#v", resp.Cell(1, 1))
	}
	if !resp.Truncated() {
		t.Fatalf("totalRows 10 with 2 rows should be truncated")
	}
}

func TestDataResponseAccessorsReturnCopies(t *testing.T) {
	resp, err := ParseDataResponse([]byte(wellFormedBody))
	if err != nil {
		t.Fatalf("ParseDataResponse: %v", err)
	}
	h := resp.Header()
	h[0] = "changed"
	d := resp.Data()
	d[0][0] = "changed"
	if resp.Header()[0] != "a" || resp.Cell(0, 0) == "changed" {
		t.Fatalf("accessors exposed internal state")
	}
}

func TestDataResponseMarshalJSONRoundTrip(t *testing.T) {
	resp, err := ParseDataResponse([]byte(wellFormedBody))
	if err != nil {
		t.Fatalf("ParseDataResponse: %v", err)
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(raw) != wellFormedBody {
		t.Fatalf("marshal = %s", raw)
	}
}
