package firestore

import (
	"encoding/json"
	"strconv"
	"time"
)

// Kind enumerates the value kinds the document store can carry.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTime
	KindMap
	KindArray
)

// Value is a tagged union over every kind the store's typed-value
// envelopes can represent. The zero Value is Null.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Time  time.Time
	Map   map[string]Value
	Arr   []Value
}

func Null() Value                  { return Value{Kind: KindNull} }
func Bool(b bool) Value            { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value            { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value        { return Value{Kind: KindFloat, Float: f} }
func String(s string) Value        { return Value{Kind: KindString, Str: s} }
func Timestamp(t time.Time) Value  { return Value{Kind: KindTime, Time: t.UTC()} }
func Map(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }
func Array(vals ...Value) Value    { return Value{Kind: KindArray, Arr: vals} }

// AsString returns the string form of the value: the string itself,
// or a timestamp formatted as ISO-8601 with a Z suffix. Other kinds
// yield "".
func (v Value) AsString() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindTime:
		return FormatTimestamp(v.Time)
	}
	return ""
}

// AsInt returns the integer form of the value; floats are truncated,
// other kinds yield 0.
func (v Value) AsInt() int64 {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return int64(v.Float)
	}
	return 0
}

// AsFloat returns the floating-point form of the value; integers are
// widened, other kinds yield 0.
func (v Value) AsFloat() float64 {
	switch v.Kind {
	case KindFloat:
		return v.Float
	case KindInt:
		return float64(v.Int)
	}
	return 0
}

// AsBool returns the boolean form of the value; non-booleans yield false.
func (v Value) AsBool() bool {
	return v.Kind == KindBool && v.Bool
}

// FormatTimestamp renders t the way the store expects timestamps on the
// wire: ISO-8601 UTC with a literal Z suffix.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.999999Z")
}

// wireValue is the store's typed-value envelope. Exactly one tag is set
// on a well-formed envelope.
type wireValue struct {
	NullValue      json.RawMessage `json:"nullValue,omitempty"`
	BooleanValue   *bool           `json:"booleanValue,omitempty"`
	IntegerValue   *string         `json:"integerValue,omitempty"`
	DoubleValue    *float64        `json:"doubleValue,omitempty"`
	StringValue    *string         `json:"stringValue,omitempty"`
	TimestampValue *string         `json:"timestampValue,omitempty"`
	MapValue       *wireMap        `json:"mapValue,omitempty"`
	ArrayValue     *wireArray      `json:"arrayValue,omitempty"`
}

type wireMap struct {
	Fields map[string]Value `json:"fields,omitempty"`
}

type wireArray struct {
	Values []Value `json:"values,omitempty"`
}

// MarshalJSON encodes the value as its wire envelope.
func (v Value) MarshalJSON() ([]byte, error) {
	var w wireValue
	switch v.Kind {
	case KindBool:
		w.BooleanValue = &v.Bool
	case KindInt:
		s := strconv.FormatInt(v.Int, 10)
		w.IntegerValue = &s
	case KindFloat:
		w.DoubleValue = &v.Float
	case KindString:
		w.StringValue = &v.Str
	case KindTime:
		s := FormatTimestamp(v.Time)
		w.TimestampValue = &s
	case KindMap:
		w.MapValue = &wireMap{Fields: v.Map}
	case KindArray:
		w.ArrayValue = &wireArray{Values: v.Arr}
	default:
		w.NullValue = json.RawMessage(`"NULL_VALUE"`)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a wire envelope. Decoding is total: an envelope
// carrying no recognized tag becomes Null, never an error.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.BooleanValue != nil:
		*v = Bool(*w.BooleanValue)
	case w.IntegerValue != nil:
		// integerValue is string-encoded on the wire
		n, _ := strconv.ParseInt(*w.IntegerValue, 10, 64)
		*v = Int(n)
	case w.DoubleValue != nil:
		*v = Float(*w.DoubleValue)
	case w.StringValue != nil:
		*v = String(*w.StringValue)
	case w.TimestampValue != nil:
		t, err := time.Parse(time.RFC3339Nano, *w.TimestampValue)
		if err != nil {
			*v = String(*w.TimestampValue)
			return nil
		}
		*v = Timestamp(t)
	case w.MapValue != nil:
		fields := w.MapValue.Fields
		if fields == nil {
			fields = map[string]Value{}
		}
		*v = Map(fields)
	case w.ArrayValue != nil:
		*v = Value{Kind: KindArray, Arr: w.ArrayValue.Values}
	default:
		*v = Null()
	}
	return nil
}
