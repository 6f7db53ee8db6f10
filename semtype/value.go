package semtype

// Value is a tagged runtime value whose shape is described by its Type.
// Exactly one of the payload fields is meaningful, selected by Type.Kind.
type Value struct {
	Type SemType

	Str  string
	Int  int64
	Flt  float64
	Bool bool

	// List holds KList elements.
	List []Value

	// MapEntries holds KMap entries in insertion order; a slice of pairs
	// rather than a Go map so non-string keys and deterministic wire
	// encoding are both preserved (see the wire package).
	MapEntries []MapEntry

	// Record holds KRecord field values, same order as Type.Fields.
	Record []Value

	// Union holds the selected variant tag and its payload.
	UnionTag string
	Union    *Value

	// Optional holds the wrapped value, or nil for None.
	Optional *Value
}

// MapEntry is one key/value pair of a Map value.
type MapEntry struct {
	Key Value
	Val Value
}

func Str(s string) Value  { return Value{Type: String(), Str: s} }
func IntV(i int64) Value  { return Value{Type: Int(), Int: i} }
func FltV(f float64) Value { return Value{Type: Float(), Flt: f} }
func BoolV(b bool) Value  { return Value{Type: Boolean(), Bool: b} }
func UnitV() Value        { return Value{Type: Unit()} }

func ListV(elem SemType, items ...Value) Value {
	return Value{Type: List(elem), List: items}
}

func RecordV(typ SemType, fields ...Value) Value {
	return Value{Type: typ, Record: fields}
}

func Some(inner SemType, v Value) Value {
	return Value{Type: Optional(inner), Optional: &v}
}

func None(inner SemType) Value {
	return Value{Type: Optional(inner)}
}

// IsNone reports whether an Optional value carries no payload.
func (v Value) IsNone() bool {
	return v.Type.Kind == KOptional && v.Optional == nil
}

// FieldByName looks up a record value's field by name using the type's
// declared field order. Returns ok=false if typ is not a record or the field
// is absent.
func (v Value) FieldByName(typ SemType, name string) (Value, bool) {
	if typ.Kind != KRecord {
		return Value{}, false
	}
	for i, f := range typ.Fields {
		if f.Name == name && i < len(v.Record) {
			return v.Record[i], true
		}
	}
	return Value{}, false
}
