package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/constellation-run/constellation/semtype"
)

func roundTripValue(t *testing.T, v semtype.Value) semtype.Value {
	t.Helper()
	data, err := EncodeValue(v)
	require.NoError(t, err)
	got, err := DecodeValue(data)
	require.NoError(t, err)
	return got
}

func TestRoundTripPrimitives(t *testing.T) {
	assert.Equal(t, semtype.Str("hi").Str, roundTripValue(t, semtype.Str("hi")).Str)
	assert.Equal(t, semtype.IntV(42).Int, roundTripValue(t, semtype.IntV(42)).Int)
	assert.Equal(t, semtype.FltV(3.5).Flt, roundTripValue(t, semtype.FltV(3.5)).Flt)
	assert.Equal(t, semtype.BoolV(true).Bool, roundTripValue(t, semtype.BoolV(true)).Bool)
}

func TestRoundTripList(t *testing.T) {
	v := semtype.ListV(semtype.Int(), semtype.IntV(1), semtype.IntV(2), semtype.IntV(3))
	got := roundTripValue(t, v)
	require.Len(t, got.List, 3)
	assert.Equal(t, int64(2), got.List[1].Int)
}

func TestRoundTripMapPreservesOrderAndNonStringKeys(t *testing.T) {
	v := semtype.Value{
		Type: semtype.Map(semtype.Int(), semtype.String()),
		MapEntries: []semtype.MapEntry{
			{Key: semtype.IntV(2), Val: semtype.Str("two")},
			{Key: semtype.IntV(1), Val: semtype.Str("one")},
		},
	}
	got := roundTripValue(t, v)
	require.Len(t, got.MapEntries, 2)
	assert.Equal(t, int64(2), got.MapEntries[0].Key.Int)
	assert.Equal(t, "one", got.MapEntries[1].Val.Str)
}

func TestRoundTripRecord(t *testing.T) {
	typ := semtype.Record(
		semtype.Field{Name: "a", Type: semtype.Int()},
		semtype.Field{Name: "b", Type: semtype.String()},
	)
	v := semtype.RecordV(typ, semtype.IntV(1), semtype.Str("x"))
	got := roundTripValue(t, v)
	fv, ok := got.FieldByName(got.Type, "b")
	require.True(t, ok)
	assert.Equal(t, "x", fv.Str)
}

func TestRoundTripOptionalSomeAndNone(t *testing.T) {
	some := semtype.Some(semtype.Int(), semtype.IntV(9))
	got := roundTripValue(t, some)
	require.False(t, got.IsNone())
	assert.Equal(t, int64(9), got.Optional.Int)

	none := semtype.None(semtype.Int())
	gotNone := roundTripValue(t, none)
	assert.True(t, gotNone.IsNone())
}

func TestRoundTripUnion(t *testing.T) {
	typ := semtype.Union(
		semtype.Field{Name: "Ok", Type: semtype.Int()},
		semtype.Field{Name: "Error", Type: semtype.String()},
	)
	payload := semtype.Str("boom")
	v := semtype.Value{Type: typ, UnionTag: "Error", Union: &payload}
	got := roundTripValue(t, v)
	assert.Equal(t, "Error", got.UnionTag)
	assert.Equal(t, "boom", got.Union.Str)
}

func TestTypeRoundTrip(t *testing.T) {
	typ := semtype.Optional(semtype.List(semtype.Record(
		semtype.Field{Name: "id", Type: semtype.Int()},
	)))
	data, err := EncodeType(typ)
	require.NoError(t, err)
	got, err := DecodeType(data)
	require.NoError(t, err)
	assert.True(t, semtype.Equivalent(typ, got))
}
