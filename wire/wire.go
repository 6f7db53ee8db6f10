// Package wire implements the §6 JSON wire format for SemType and Value:
// every type and every value carries an explicit "tag" discriminator, and
// Map is encoded as an array of {key,value} pairs rather than a JSON
// object so non-string keys and insertion order both survive a round
// trip. Grounded on the teacher's emit.Event, which already treats JSON
// tagging of heterogeneous payloads (Meta map[string]interface{}) as the
// house style for this codebase's wire boundaries.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/constellation-run/constellation/semtype"
)

// typeEnvelope mirrors a SemType on the wire: every type is {tag, ...}.
type typeEnvelope struct {
	Tag         string         `json:"tag"`
	Elem        *typeEnvelope  `json:"elem,omitempty"`
	Key         *typeEnvelope  `json:"key,omitempty"`
	Val         *typeEnvelope  `json:"val,omitempty"`
	Fields      []fieldWire    `json:"fields,omitempty"`
	Variants    []fieldWire    `json:"variants,omitempty"`
	Inner       *typeEnvelope  `json:"inner,omitempty"`
}

type fieldWire struct {
	Name string       `json:"name"`
	Type typeEnvelope `json:"type"`
}

func tagOf(k semtype.Kind) string {
	switch k {
	case semtype.KString:
		return "String"
	case semtype.KInt:
		return "Int"
	case semtype.KFloat:
		return "Float"
	case semtype.KBoolean:
		return "Boolean"
	case semtype.KUnit:
		return "Unit"
	case semtype.KList:
		return "List"
	case semtype.KMap:
		return "Map"
	case semtype.KRecord:
		return "Record"
	case semtype.KUnion:
		return "Union"
	case semtype.KOptional:
		return "Optional"
	default:
		return "Unknown"
	}
}

func kindOf(tag string) (semtype.Kind, error) {
	switch tag {
	case "String":
		return semtype.KString, nil
	case "Int":
		return semtype.KInt, nil
	case "Float":
		return semtype.KFloat, nil
	case "Boolean":
		return semtype.KBoolean, nil
	case "Unit":
		return semtype.KUnit, nil
	case "List":
		return semtype.KList, nil
	case "Map":
		return semtype.KMap, nil
	case "Record":
		return semtype.KRecord, nil
	case "Union":
		return semtype.KUnion, nil
	case "Optional":
		return semtype.KOptional, nil
	default:
		return 0, fmt.Errorf("wire: unknown type tag %q", tag)
	}
}

func encodeType(t semtype.SemType) typeEnvelope {
	env := typeEnvelope{Tag: tagOf(t.Kind)}
	switch t.Kind {
	case semtype.KList:
		e := encodeType(*t.Elem)
		env.Elem = &e
	case semtype.KMap:
		k := encodeType(*t.Key)
		v := encodeType(*t.Val)
		env.Key, env.Val = &k, &v
	case semtype.KRecord:
		env.Fields = encodeFields(t.Fields)
	case semtype.KUnion:
		env.Variants = encodeFields(t.Variants)
	case semtype.KOptional:
		in := encodeType(*t.Inner)
		env.Inner = &in
	}
	return env
}

func encodeFields(fields []semtype.Field) []fieldWire {
	out := make([]fieldWire, len(fields))
	for i, f := range fields {
		out[i] = fieldWire{Name: f.Name, Type: encodeType(f.Type)}
	}
	return out
}

func decodeType(env typeEnvelope) (semtype.SemType, error) {
	k, err := kindOf(env.Tag)
	if err != nil {
		return semtype.SemType{}, err
	}
	t := semtype.SemType{Kind: k}
	switch k {
	case semtype.KList:
		if env.Elem == nil {
			return semtype.SemType{}, fmt.Errorf("wire: List type missing elem")
		}
		elem, err := decodeType(*env.Elem)
		if err != nil {
			return semtype.SemType{}, err
		}
		t.Elem = &elem
	case semtype.KMap:
		if env.Key == nil || env.Val == nil {
			return semtype.SemType{}, fmt.Errorf("wire: Map type missing key/val")
		}
		key, err := decodeType(*env.Key)
		if err != nil {
			return semtype.SemType{}, err
		}
		val, err := decodeType(*env.Val)
		if err != nil {
			return semtype.SemType{}, err
		}
		t.Key, t.Val = &key, &val
	case semtype.KRecord:
		fields, err := decodeFields(env.Fields)
		if err != nil {
			return semtype.SemType{}, err
		}
		t.Fields = fields
	case semtype.KUnion:
		variants, err := decodeFields(env.Variants)
		if err != nil {
			return semtype.SemType{}, err
		}
		t.Variants = variants
	case semtype.KOptional:
		if env.Inner == nil {
			return semtype.SemType{}, fmt.Errorf("wire: Optional type missing inner")
		}
		inner, err := decodeType(*env.Inner)
		if err != nil {
			return semtype.SemType{}, err
		}
		t.Inner = &inner
	}
	return t, nil
}

func decodeFields(fields []fieldWire) ([]semtype.Field, error) {
	out := make([]semtype.Field, len(fields))
	for i, f := range fields {
		ft, err := decodeType(f.Type)
		if err != nil {
			return nil, err
		}
		out[i] = semtype.Field{Name: f.Name, Type: ft}
	}
	return out, nil
}

// EncodeType renders a SemType to its §6 JSON wire form.
func EncodeType(t semtype.SemType) ([]byte, error) {
	return json.Marshal(encodeType(t))
}

// DecodeType parses a §6 JSON type envelope back into a SemType.
func DecodeType(data []byte) (semtype.SemType, error) {
	var env typeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return semtype.SemType{}, err
	}
	return decodeType(env)
}

// valueEnvelope mirrors a Value on the wire. Which fields are meaningful
// is determined by Tag, matching the type envelope's discriminator.
type valueEnvelope struct {
	Tag         string          `json:"tag"`
	Value       json.RawMessage `json:"value,omitempty"`
	Subtype     *typeEnvelope   `json:"subtype,omitempty"`
	KeysType    *typeEnvelope   `json:"keysType,omitempty"`
	ValuesType  *typeEnvelope   `json:"valuesType,omitempty"`
	Structure   *typeEnvelope   `json:"structure,omitempty"`
	InnerType   *typeEnvelope   `json:"innerType,omitempty"`
}

type mapPairWire struct {
	Key   valueEnvelope `json:"key"`
	Value valueEnvelope `json:"value"`
}

// EncodeValue renders a Value to its §6 JSON wire form.
func EncodeValue(v semtype.Value) ([]byte, error) {
	env, err := encodeValue(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func encodeValue(v semtype.Value) (valueEnvelope, error) {
	switch v.Type.Kind {
	case semtype.KString:
		raw, _ := json.Marshal(v.Str)
		return valueEnvelope{Tag: "String", Value: raw}, nil
	case semtype.KInt:
		raw, _ := json.Marshal(v.Int)
		return valueEnvelope{Tag: "Int", Value: raw}, nil
	case semtype.KFloat:
		raw, _ := json.Marshal(v.Flt)
		return valueEnvelope{Tag: "Float", Value: raw}, nil
	case semtype.KBoolean:
		raw, _ := json.Marshal(v.Bool)
		return valueEnvelope{Tag: "Boolean", Value: raw}, nil
	case semtype.KUnit:
		return valueEnvelope{Tag: "Unit"}, nil

	case semtype.KList:
		items := make([]valueEnvelope, len(v.List))
		for i, it := range v.List {
			env, err := encodeValue(it)
			if err != nil {
				return valueEnvelope{}, err
			}
			items[i] = env
		}
		raw, err := json.Marshal(items)
		if err != nil {
			return valueEnvelope{}, err
		}
		sub := encodeType(*v.Type.Elem)
		return valueEnvelope{Tag: "List", Value: raw, Subtype: &sub}, nil

	case semtype.KMap:
		pairs := make([]mapPairWire, len(v.MapEntries))
		for i, e := range v.MapEntries {
			k, err := encodeValue(e.Key)
			if err != nil {
				return valueEnvelope{}, err
			}
			val, err := encodeValue(e.Val)
			if err != nil {
				return valueEnvelope{}, err
			}
			pairs[i] = mapPairWire{Key: k, Value: val}
		}
		raw, err := json.Marshal(pairs)
		if err != nil {
			return valueEnvelope{}, err
		}
		kt, vt := encodeType(*v.Type.Key), encodeType(*v.Type.Val)
		return valueEnvelope{Tag: "Map", Value: raw, KeysType: &kt, ValuesType: &vt}, nil

	case semtype.KRecord:
		obj := make(map[string]valueEnvelope, len(v.Type.Fields))
		for i, f := range v.Type.Fields {
			if i >= len(v.Record) {
				break
			}
			env, err := encodeValue(v.Record[i])
			if err != nil {
				return valueEnvelope{}, err
			}
			obj[f.Name] = env
		}
		raw, err := json.Marshal(obj)
		if err != nil {
			return valueEnvelope{}, err
		}
		st := encodeType(v.Type)
		return valueEnvelope{Tag: "Record", Value: raw, Structure: &st}, nil

	case semtype.KOptional:
		inner := encodeType(*v.Type.Inner)
		if v.IsNone() {
			return valueEnvelope{Tag: "None", InnerType: &inner}, nil
		}
		payload, err := encodeValue(*v.Optional)
		if err != nil {
			return valueEnvelope{}, err
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return valueEnvelope{}, err
		}
		return valueEnvelope{Tag: "Some", Value: raw, InnerType: &inner}, nil

	case semtype.KUnion:
		var payload *valueEnvelope
		if v.Union != nil {
			env, err := encodeValue(*v.Union)
			if err != nil {
				return valueEnvelope{}, err
			}
			payload = &env
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return valueEnvelope{}, err
		}
		st := encodeType(v.Type)
		return valueEnvelope{Tag: v.UnionTag, Value: raw, Structure: &st}, nil

	default:
		return valueEnvelope{}, fmt.Errorf("wire: unsupported value kind %v", v.Type.Kind)
	}
}

// DecodeValue parses a §6 JSON value envelope back into a Value.
func DecodeValue(data []byte) (semtype.Value, error) {
	var env valueEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return semtype.Value{}, err
	}
	return decodeValue(env)
}

func decodeValue(env valueEnvelope) (semtype.Value, error) {
	switch env.Tag {
	case "String":
		var s string
		if err := json.Unmarshal(env.Value, &s); err != nil {
			return semtype.Value{}, err
		}
		return semtype.Str(s), nil
	case "Int":
		var i int64
		if err := json.Unmarshal(env.Value, &i); err != nil {
			return semtype.Value{}, err
		}
		return semtype.IntV(i), nil
	case "Float":
		var f float64
		if err := json.Unmarshal(env.Value, &f); err != nil {
			return semtype.Value{}, err
		}
		return semtype.FltV(f), nil
	case "Boolean":
		var b bool
		if err := json.Unmarshal(env.Value, &b); err != nil {
			return semtype.Value{}, err
		}
		return semtype.BoolV(b), nil
	case "Unit":
		return semtype.UnitV(), nil

	case "List":
		if env.Subtype == nil {
			return semtype.Value{}, fmt.Errorf("wire: List value missing subtype")
		}
		elemType, err := decodeType(*env.Subtype)
		if err != nil {
			return semtype.Value{}, err
		}
		var rawItems []json.RawMessage
		if err := json.Unmarshal(env.Value, &rawItems); err != nil {
			return semtype.Value{}, err
		}
		items := make([]semtype.Value, len(rawItems))
		for i, raw := range rawItems {
			v, err := DecodeValue(raw)
			if err != nil {
				return semtype.Value{}, err
			}
			items[i] = v
		}
		return semtype.Value{Type: semtype.List(elemType), List: items}, nil

	case "Map":
		if env.KeysType == nil || env.ValuesType == nil {
			return semtype.Value{}, fmt.Errorf("wire: Map value missing keysType/valuesType")
		}
		kt, err := decodeType(*env.KeysType)
		if err != nil {
			return semtype.Value{}, err
		}
		vt, err := decodeType(*env.ValuesType)
		if err != nil {
			return semtype.Value{}, err
		}
		var rawPairs []struct {
			Key   valueEnvelope `json:"key"`
			Value valueEnvelope `json:"value"`
		}
		if err := json.Unmarshal(env.Value, &rawPairs); err != nil {
			return semtype.Value{}, err
		}
		entries := make([]semtype.MapEntry, len(rawPairs))
		for i, p := range rawPairs {
			k, err := decodeValue(p.Key)
			if err != nil {
				return semtype.Value{}, err
			}
			val, err := decodeValue(p.Value)
			if err != nil {
				return semtype.Value{}, err
			}
			entries[i] = semtype.MapEntry{Key: k, Val: val}
		}
		return semtype.Value{Type: semtype.Map(kt, vt), MapEntries: entries}, nil

	case "Record":
		if env.Structure == nil {
			return semtype.Value{}, fmt.Errorf("wire: Record value missing structure")
		}
		structType, err := decodeType(*env.Structure)
		if err != nil {
			return semtype.Value{}, err
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(env.Value, &obj); err != nil {
			return semtype.Value{}, err
		}
		fields := make([]semtype.Value, len(structType.Fields))
		for i, f := range structType.Fields {
			raw, ok := obj[f.Name]
			if !ok {
				return semtype.Value{}, fmt.Errorf("wire: record value missing field %q", f.Name)
			}
			v, err := DecodeValue(raw)
			if err != nil {
				return semtype.Value{}, err
			}
			fields[i] = v
		}
		return semtype.Value{Type: structType, Record: fields}, nil

	case "Some", "None":
		if env.InnerType == nil {
			return semtype.Value{}, fmt.Errorf("wire: Optional value missing innerType")
		}
		inner, err := decodeType(*env.InnerType)
		if err != nil {
			return semtype.Value{}, err
		}
		if env.Tag == "None" {
			return semtype.None(inner), nil
		}
		var payloadEnv valueEnvelope
		if err := json.Unmarshal(env.Value, &payloadEnv); err != nil {
			return semtype.Value{}, err
		}
		payload, err := decodeValue(payloadEnv)
		if err != nil {
			return semtype.Value{}, err
		}
		return semtype.Some(inner, payload), nil

	default: // union variant tag
		if env.Structure == nil {
			return semtype.Value{}, fmt.Errorf("wire: union value missing structure")
		}
		unionType, err := decodeType(*env.Structure)
		if err != nil {
			return semtype.Value{}, err
		}
		var payloadEnv *valueEnvelope
		if err := json.Unmarshal(env.Value, &payloadEnv); err != nil {
			return semtype.Value{}, err
		}
		var payload *semtype.Value
		if payloadEnv != nil {
			v, err := decodeValue(*payloadEnv)
			if err != nil {
				return semtype.Value{}, err
			}
			payload = &v
		}
		return semtype.Value{Type: unionType, UnionTag: env.Tag, Union: payload}, nil
	}
}
