package semtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEquivalentRecordFieldOrderInsensitive(t *testing.T) {
	a := Record(Field{"x", Int()}, Field{"y", String()})
	b := Record(Field{"y", String()}, Field{"x", Int()})
	assert.True(t, Equivalent(a, b))
}

func TestEquivalentRecordArityMismatch(t *testing.T) {
	a := Record(Field{"x", Int()})
	b := Record(Field{"x", Int()}, Field{"y", String()})
	assert.False(t, Equivalent(a, b))
}

func TestWidenRecordsDisjointUnion(t *testing.T) {
	a := Record(Field{"x", Int()})
	b := Record(Field{"y", String()})
	merged, err := WidenRecords(a, b)
	require.NoError(t, err)
	assert.True(t, Equivalent(merged, Record(Field{"x", Int()}, Field{"y", String()})))
}

func TestWidenRecordsConflict(t *testing.T) {
	a := Record(Field{"x", Int()})
	b := Record(Field{"x", String()})
	_, err := WidenRecords(a, b)
	require.Error(t, err)
	var te *TypeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, Mismatch, te.Kind)
}

func TestWidenRecordsSameFieldSameTypeAllowed(t *testing.T) {
	a := Record(Field{"x", Int()})
	b := Record(Field{"x", Int()}, Field{"y", Boolean()})
	merged, err := WidenRecords(a, b)
	require.NoError(t, err)
	assert.Len(t, merged.Fields, 2)
}

func TestProject(t *testing.T) {
	rec := Record(Field{"a", Int()}, Field{"b", String()}, Field{"c", Boolean()})
	out, err := Project(rec, []string{"c", "a"})
	require.NoError(t, err)
	require.Len(t, out.Fields, 2)
	assert.Equal(t, "c", out.Fields[0].Name)
	assert.Equal(t, "a", out.Fields[1].Name)
}

func TestProjectUnknownField(t *testing.T) {
	rec := Record(Field{"a", Int()})
	_, err := Project(rec, []string{"missing"})
	require.Error(t, err)
	var te *TypeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, FieldNotFound, te.Kind)
}

func TestFieldTypeNotARecord(t *testing.T) {
	_, err := FieldType(Int(), "x")
	require.Error(t, err)
	var te *TypeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, NotARecord, te.Kind)
}

func TestValueOptionalRoundTrip(t *testing.T) {
	v := Some(Int(), IntV(5))
	assert.False(t, v.IsNone())
	n := None(Int())
	assert.True(t, n.IsNone())
}
