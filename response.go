package woopsa

import (
	"strconv"

	"github.com/woopsa-protocol/woopsa/wbuf"
	"github.com/woopsa-protocol/woopsa/wcatalog"
)

// numericBufferWidth is the width of the scratch numeric buffer used
// to render an Integer or Real value before copying it into the
// response. The original embedded implementation used 10 bytes, one
// byte short of INT32_MIN's 11-character representation ("-2147483648");
// this is bug-to-fix (b), corrected here to 12.
const numericBufferWidth = 12

const (
	jsonValueValue = `{"Value":`
	jsonValueType  = `,"Type":"`
	jsonValueEnd   = `"}`

	jsonMetaHead    = `{"Name":"Root","Properties":`
	jsonMetaMethods = `,"Methods":`
	jsonMetaEnd     = `,"Items":[]}`

	jsonPropertyName     = `{"Name":"`
	jsonPropertyType     = `","Type":"`
	jsonPropertyReadOnly = `","ReadOnly":`
	jsonPropertyEnd      = `}`

	jsonMethodName       = `{"Name":"`
	jsonMethodReturnType = `","ReturnType":"`
	jsonMethodEnd        = `","ArgumentInfos":[]}`

	jsonArrayStart     = `[`
	jsonArrayEnd       = `]`
	jsonArrayDelimiter = `,`

	jsonTrue  = `true`
	jsonFalse = `false`
)

// renderMeta appends the catalog manifest to out starting at n,
// bounded by limit. Array elements appear in declaration order with
// commas between elements only, never trailing.
func renderMeta(out []byte, n int, limit int, catalog *wcatalog.Catalog) int {
	n, _ = wbuf.AppendString(out, n, limit, jsonMetaHead)
	n, _ = wbuf.AppendString(out, n, limit, jsonArrayStart)
	first := true
	for _, e := range catalog.Entries() {
		if e.Kind != wcatalog.KindProperty {
			continue
		}
		if !first {
			n, _ = wbuf.AppendString(out, n, limit, jsonArrayDelimiter)
		}
		first = false
		n, _ = wbuf.AppendString(out, n, limit, jsonPropertyName)
		n, _ = wbuf.AppendString(out, n, limit, e.Name)
		n, _ = wbuf.AppendString(out, n, limit, jsonPropertyType)
		typeName, _ := wcatalog.TypeOf(e.Type)
		n, _ = wbuf.AppendString(out, n, limit, typeName)
		n, _ = wbuf.AppendString(out, n, limit, jsonPropertyReadOnly)
		if e.ReadOnly {
			n, _ = wbuf.AppendString(out, n, limit, jsonTrue)
		} else {
			n, _ = wbuf.AppendString(out, n, limit, jsonFalse)
		}
		n, _ = wbuf.AppendString(out, n, limit, jsonPropertyEnd)
	}
	n, _ = wbuf.AppendString(out, n, limit, jsonArrayEnd)
	n, _ = wbuf.AppendString(out, n, limit, jsonMetaMethods)
	n, _ = wbuf.AppendString(out, n, limit, jsonArrayStart)
	first = true
	for _, e := range catalog.Entries() {
		if e.Kind != wcatalog.KindMethod {
			continue
		}
		if !first {
			n, _ = wbuf.AppendString(out, n, limit, jsonArrayDelimiter)
		}
		first = false
		n, _ = wbuf.AppendString(out, n, limit, jsonMethodName)
		n, _ = wbuf.AppendString(out, n, limit, e.Name)
		n, _ = wbuf.AppendString(out, n, limit, jsonMethodReturnType)
		typeName, _ := wcatalog.TypeOf(e.Type)
		n, _ = wbuf.AppendString(out, n, limit, typeName)
		n, _ = wbuf.AppendString(out, n, limit, jsonMethodEnd)
	}
	n, _ = wbuf.AppendString(out, n, limit, jsonArrayEnd)
	n, _ = wbuf.AppendString(out, n, limit, jsonMetaEnd)
	return n
}

// renderValue appends {"Value":<v>,"Type":"<tag>"} to out, where <v>
// is rendered according to t. For TypeNull (void method return) it
// appends nothing at all: the entire response body is empty.
func renderValue(out []byte, n int, limit int, t wcatalog.Type, value any) (int, error) {
	if t == wcatalog.TypeNull {
		return n, nil
	}
	typeName, ok := wcatalog.TypeOf(t)
	if !ok {
		return n, &InternalError{Reason: "unknown type tag in catalog entry"}
	}

	n, _ = wbuf.AppendString(out, n, limit, jsonValueValue)
	switch t {
	case wcatalog.TypeLogical:
		b, _ := value.(bool)
		if b {
			n, _ = wbuf.AppendString(out, n, limit, jsonTrue)
		} else {
			n, _ = wbuf.AppendString(out, n, limit, jsonFalse)
		}
	case wcatalog.TypeInteger:
		v, _ := value.(int32)
		var scratch [numericBufferWidth]byte
		text := strconv.AppendInt(scratch[:0], int64(v), 10)
		if len(text) > numericBufferWidth {
			return n, &InternalError{Reason: "integer value exceeds numeric scratch buffer"}
		}
		n, _ = wbuf.Append(out, n, limit, text)
	case wcatalog.TypeReal, wcatalog.TypeTimeSpan:
		v, _ := value.(float32)
		var scratch [numericBufferWidth]byte
		text := strconv.AppendFloat(scratch[:0], float64(v), 'f', -1, 32)
		if len(text) > numericBufferWidth {
			return n, &InternalError{Reason: "real value exceeds numeric scratch buffer"}
		}
		n, _ = wbuf.Append(out, n, limit, text)
	case wcatalog.TypeText, wcatalog.TypeLink, wcatalog.TypeResourceURL, wcatalog.TypeDateTime:
		s, _ := value.(string)
		n, _ = wbuf.AppendString(out, n, limit, `"`)
		n, _ = wbuf.AppendEscape(out, n, limit, s, '"', '\\')
		n, _ = wbuf.AppendString(out, n, limit, `"`)
	default:
		return n, &InternalError{Reason: "unhandled type tag in value rendering"}
	}
	n, _ = wbuf.AppendString(out, n, limit, jsonValueType)
	n, _ = wbuf.AppendString(out, n, limit, typeName)
	n, _ = wbuf.AppendString(out, n, limit, jsonValueEnd)
	return n, nil
}
