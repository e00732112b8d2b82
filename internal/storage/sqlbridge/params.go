package sqlbridge

import "time"

// Kind identifies the variant held by a Param.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindInt
	KindTimestamp
	KindBool
	KindBytes
)

// Param is a positional statement parameter. The zero value binds SQL NULL.
type Param struct {
	kind Kind
	text string
	num  int64
	flag bool
	raw  []byte
}

// Text binds a string.
func Text(s string) Param { return Param{kind: KindText, text: s} }

// Int binds a 64-bit integer.
func Int(n int64) Param { return Param{kind: KindInt, num: n} }

// Timestamp binds t as milliseconds since the Unix epoch.
func Timestamp(t time.Time) Param { return Param{kind: KindTimestamp, num: t.UnixMilli()} }

// Bool binds a boolean.
func Bool(b bool) Param { return Param{kind: KindBool, flag: b} }

// Bytes binds a raw byte slice.
func Bytes(b []byte) Param { return Param{kind: KindBytes, raw: b} }

// Null binds SQL NULL.
func Null() Param { return Param{} }

// Kind reports which variant p holds.
func (p Param) Kind() Kind { return p.kind }

// Value returns the driver-level value for p.
func (p Param) Value() any {
	switch p.kind {
	case KindText:
		return p.text
	case KindInt, KindTimestamp:
		return p.num
	case KindBool:
		return p.flag
	case KindBytes:
		return p.raw
	default:
		return nil
	}
}

// bind flattens params in order so the Nth param lands on the Nth placeholder.
func bind(params []Param) []any {
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = p.Value()
	}
	return args
}
