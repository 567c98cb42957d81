package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Kind identifies one of the gpsd report classes the recorder keeps.
type Kind uint8

const (
	KindDevice Kind = iota + 1
	KindTPV
	KindSKY
	KindPPS
	KindGST
)

// AllKinds lists every Kind in slot order.
var AllKinds = []Kind{KindDevice, KindTPV, KindSKY, KindPPS, KindGST}

// ParseKind maps a gpsd "class" value onto a Kind. Control classes such as
// VERSION or WATCH are not reports and return false.
func ParseKind(class string) (Kind, bool) {
	switch class {
	case "DEVICE":
		return KindDevice, true
	case "TPV":
		return KindTPV, true
	case "SKY":
		return KindSKY, true
	case "PPS":
		return KindPPS, true
	case "GST":
		return KindGST, true
	default:
		return 0, false
	}
}

// Class returns the gpsd class name for k.
func (k Kind) Class() string {
	switch k {
	case KindDevice:
		return "DEVICE"
	case KindTPV:
		return "TPV"
	case KindSKY:
		return "SKY"
	case KindPPS:
		return "PPS"
	case KindGST:
		return "GST"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

func (k Kind) String() string { return k.Class() }

// Report is one typed message from the positioning daemon. Body holds the
// daemon's JSON object verbatim; its fields are not interpreted here.
type Report struct {
	Kind Kind
	Body json.RawMessage
}

// NewReport classifies a raw gpsd JSON object by its class field.
func NewReport(body []byte) (Report, error) {
	if !gjson.ValidBytes(body) {
		return Report{}, fmt.Errorf("report body is not valid json")
	}
	class := gjson.GetBytes(body, "class").String()
	kind, ok := ParseKind(class)
	if !ok {
		return Report{}, fmt.Errorf("unsupported report class %q", class)
	}
	return Report{Kind: kind, Body: bytes.Clone(body)}, nil
}

// Field returns a single value from the report body, e.g. "lat" or "mode".
func (r Report) Field(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

func (r Report) MarshalJSON() ([]byte, error) {
	if len(r.Body) == 0 {
		return []byte("null"), nil
	}
	return r.Body, nil
}

func (r *Report) UnmarshalJSON(data []byte) error {
	parsed, err := NewReport(data)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
