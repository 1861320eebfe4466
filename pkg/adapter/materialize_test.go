package adapter

import (
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/orcbridge/pkg/bridgeerrors"
	"github.com/ajitpratap0/orcbridge/pkg/orc"
)

// Batch literals cannot name the embedded row header from outside pkg/orc,
// so these helpers fill it through the promoted fields.

func longBatch(vals []int64, nulls []bool) *orc.LongBatch {
	b := &orc.LongBatch{Values: vals}
	b.Rows, b.Nulls = len(vals), nulls
	return b
}

func doubleBatch(vals []float64, nulls []bool) *orc.DoubleBatch {
	b := &orc.DoubleBatch{Values: vals}
	b.Rows, b.Nulls = len(vals), nulls
	return b
}

func bytesBatch(vals [][]byte, nulls []bool) *orc.BytesBatch {
	b := &orc.BytesBatch{Values: vals}
	b.Rows, b.Nulls = len(vals), nulls
	return b
}

func structBatch(rows int, nulls []bool, fields ...orc.Batch) *orc.StructBatch {
	b := &orc.StructBatch{Fields: fields}
	b.Rows, b.Nulls = rows, nulls
	return b
}

// nullsAt marks the given rows null in a batch of n rows.
func nullsAt(n int, rows ...int) []bool {
	nulls := make([]bool, n)
	for _, r := range rows {
		nulls[r] = true
	}
	return nulls
}

func newBuilder(t *testing.T, desc *orc.TypeDescriptor) array.Builder {
	t.Helper()
	dt, err := ArrowType(desc)
	require.NoError(t, err)
	b := array.NewBuilder(memory.NewGoAllocator(), dt)
	t.Cleanup(b.Release)
	return b
}

func TestAppendWindowPreservesOrderAndNulls(t *testing.T) {
	batch := longBatch([]int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, nullsAt(10, 2, 5, 7))
	desc := orc.NewPrimitive(orc.LONG)
	b := newBuilder(t, desc)

	require.NoError(t, AppendBatch(desc, batch, 3, 5, b))

	arr := b.NewArray().(*array.Int64)
	defer arr.Release()

	// Rows 3..7 land as entries 0..4; the source nulls at rows 5 and 7
	// become entries 2 and 4.
	require.Equal(t, 5, arr.Len())
	assert.Equal(t, int64(3), arr.Value(0))
	assert.Equal(t, int64(4), arr.Value(1))
	assert.True(t, arr.IsNull(2))
	assert.Equal(t, int64(6), arr.Value(3))
	assert.True(t, arr.IsNull(4))
	assert.Equal(t, 2, arr.NullN())
}

func TestAppendEmptyWindow(t *testing.T) {
	batch := longBatch([]int64{1, 2, 3}, nil)
	desc := orc.NewPrimitive(orc.LONG)
	b := newBuilder(t, desc)

	require.NoError(t, AppendBatch(desc, batch, 3, 0, b))
	assert.Equal(t, 0, b.Len())
}

func TestAppendRejectsWindowOutOfRange(t *testing.T) {
	batch := longBatch([]int64{1, 2, 3}, nil)
	desc := orc.NewPrimitive(orc.LONG)

	for _, tc := range []struct{ offset, length int }{
		{-1, 2},
		{0, -1},
		{2, 2},
		{4, 0},
	} {
		b := newBuilder(t, desc)
		err := AppendBatch(desc, batch, tc.offset, tc.length, b)
		require.Error(t, err, "offset=%d length=%d", tc.offset, tc.length)
		assert.True(t, bridgeerrors.IsType(err, bridgeerrors.ErrorTypeContract))
		// The window is validated up front, so nothing was appended.
		assert.Equal(t, 0, b.Len())
	}
}

func TestAppendBooleans(t *testing.T) {
	batch := longBatch([]int64{1, 0, 1}, nullsAt(3, 1))
	desc := orc.NewPrimitive(orc.BOOLEAN)
	b := newBuilder(t, desc)

	require.NoError(t, AppendBatch(desc, batch, 0, 3, b))

	arr := b.NewArray().(*array.Boolean)
	defer arr.Release()
	assert.True(t, arr.Value(0))
	assert.True(t, arr.IsNull(1))
	assert.True(t, arr.Value(2))
}

func TestAppendIntegerNarrowing(t *testing.T) {
	desc := orc.NewPrimitive(orc.BYTE)
	b := newBuilder(t, desc)

	require.NoError(t, AppendBatch(desc, longBatch([]int64{-128, 0, 127}, nil), 0, 3, b))
	arr := b.NewArray().(*array.Int8)
	defer arr.Release()
	assert.Equal(t, []int8{-128, 0, 127}, arr.Int8Values())

	// A value outside the target width fails instead of truncating.
	b2 := newBuilder(t, desc)
	err := AppendBatch(desc, longBatch([]int64{300}, nil), 0, 1, b2)
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsType(err, bridgeerrors.ErrorTypeData))
}

func TestAppendStrings(t *testing.T) {
	batch := bytesBatch([][]byte{[]byte("a"), nil, []byte("c")}, nullsAt(3, 1))
	desc := orc.NewPrimitive(orc.STRING)
	b := newBuilder(t, desc)

	require.NoError(t, AppendBatch(desc, batch, 0, 3, b))

	arr := b.NewArray().(*array.String)
	defer arr.Release()
	assert.Equal(t, "a", arr.Value(0))
	assert.True(t, arr.IsNull(1))
	assert.Equal(t, "c", arr.Value(2))
}

func TestAppendDates(t *testing.T) {
	desc := orc.NewPrimitive(orc.DATE)
	b := newBuilder(t, desc)

	require.NoError(t, AppendBatch(desc, longBatch([]int64{0, 19000}, nil), 0, 2, b))
	arr := b.NewArray().(*array.Date32)
	defer arr.Release()
	assert.Equal(t, arrow.Date32(19000), arr.Value(1))

	b2 := newBuilder(t, desc)
	err := AppendBatch(desc, longBatch([]int64{1 << 40}, nil), 0, 1, b2)
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsType(err, bridgeerrors.ErrorTypeData))
}

func TestAppendTimestamps(t *testing.T) {
	desc := orc.NewPrimitive(orc.TIMESTAMP)

	batch := &orc.TimestampBatch{
		Seconds: []int64{1700000000, -5},
		Nanos:   []uint32{123456789, 0},
	}
	batch.Rows = 2

	b := newBuilder(t, desc)
	require.NoError(t, AppendBatch(desc, batch, 0, 2, b))
	arr := b.NewArray().(*array.Timestamp)
	defer arr.Release()
	assert.Equal(t, arrow.Timestamp(1700000000_123456789), arr.Value(0))
	assert.Equal(t, arrow.Timestamp(-5_000000000), arr.Value(1))

	// Seconds that overflow the nanosecond range are a data error.
	over := &orc.TimestampBatch{Seconds: []int64{maxEpochSeconds + 1}, Nanos: []uint32{0}}
	over.Rows = 1
	b2 := newBuilder(t, desc)
	err := AppendBatch(desc, over, 0, 1, b2)
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsType(err, bridgeerrors.ErrorTypeData))
}

func TestAppendTimestampNanosCountAgainstOverflow(t *testing.T) {
	desc := orc.NewPrimitive(orc.TIMESTAMP)

	// maxEpochSeconds alone fits, but the widened value only has
	// MaxInt64 - maxEpochSeconds*1e9 nanoseconds of headroom left; one
	// nanosecond more must fail instead of wrapping negative.
	headroom := uint32(math.MaxInt64 - maxEpochSeconds*int64(1e9))

	ok := &orc.TimestampBatch{Seconds: []int64{maxEpochSeconds}, Nanos: []uint32{headroom}}
	ok.Rows = 1
	b := newBuilder(t, desc)
	require.NoError(t, AppendBatch(desc, ok, 0, 1, b))
	arr := b.NewArray().(*array.Timestamp)
	defer arr.Release()
	assert.Equal(t, arrow.Timestamp(math.MaxInt64), arr.Value(0))

	over := &orc.TimestampBatch{Seconds: []int64{maxEpochSeconds}, Nanos: []uint32{headroom + 1}}
	over.Rows = 1
	b2 := newBuilder(t, desc)
	err := AppendBatch(desc, over, 0, 1, b2)
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsType(err, bridgeerrors.ErrorTypeData))
}

func TestAppendDecimals(t *testing.T) {
	desc := orc.NewDecimal(10, 2)

	batch := &orc.DecimalBatch{Values: []int64{12345, -99}, Precision: 10, Scale: 2}
	batch.Rows = 2

	b := newBuilder(t, desc)
	require.NoError(t, AppendBatch(desc, batch, 0, 2, b))
	arr := b.NewArray().(*array.Decimal128)
	defer arr.Release()
	assert.Equal(t, decimal128.FromI64(12345), arr.Value(0))
	assert.Equal(t, decimal128.FromI64(-99), arr.Value(1))

	// A batch decoded under different precision or scale means the plans
	// diverged somewhere upstream.
	wrong := &orc.DecimalBatch{Values: []int64{1}, Precision: 12, Scale: 2}
	wrong.Rows = 1
	b2 := newBuilder(t, desc)
	err := AppendBatch(desc, wrong, 0, 1, b2)
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsType(err, bridgeerrors.ErrorTypeInternal))
}

func TestAppendMismatchedBuilder(t *testing.T) {
	// A string builder paired with a LONG descriptor is a translation bug,
	// not a data problem.
	b := newBuilder(t, orc.NewPrimitive(orc.STRING))
	err := AppendBatch(orc.NewPrimitive(orc.LONG), longBatch([]int64{1}, nil), 0, 1, b)
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsType(err, bridgeerrors.ErrorTypeInternal))
}

func TestAppendLists(t *testing.T) {
	// Rows: [1 2] null [] [3]
	elems := longBatch([]int64{1, 2, 3}, nil)
	batch := &orc.ListBatch{Offsets: []int64{0, 2, 2, 2, 3}, Elements: elems}
	batch.Rows, batch.Nulls = 4, nullsAt(4, 1)

	desc := orc.NewList(orc.NewPrimitive(orc.LONG))
	b := newBuilder(t, desc)
	require.NoError(t, AppendBatch(desc, batch, 0, 4, b))

	arr := b.NewArray().(*array.List)
	defer arr.Release()
	require.Equal(t, 4, arr.Len())
	assert.True(t, arr.IsNull(1))
	assert.False(t, arr.IsNull(2))

	values := arr.ListValues().(*array.Int64)
	assert.Equal(t, []int64{1, 2, 3}, values.Int64Values())

	start, end := arr.ValueOffsets(0)
	assert.Equal(t, int64(0), start)
	assert.Equal(t, int64(2), end)
	start, end = arr.ValueOffsets(2)
	assert.Equal(t, start, end)
}

func TestAppendListWindow(t *testing.T) {
	// Only the second row is in the window, so only its elements land in
	// the child builder.
	elems := longBatch([]int64{10, 20, 30}, nil)
	batch := &orc.ListBatch{Offsets: []int64{0, 1, 3}, Elements: elems}
	batch.Rows = 2

	desc := orc.NewList(orc.NewPrimitive(orc.LONG))
	b := newBuilder(t, desc)
	require.NoError(t, AppendBatch(desc, batch, 1, 1, b))

	arr := b.NewArray().(*array.List)
	defer arr.Release()
	require.Equal(t, 1, arr.Len())
	values := arr.ListValues().(*array.Int64)
	assert.Equal(t, []int64{20, 30}, values.Int64Values())
}

func TestAppendMaps(t *testing.T) {
	// Rows: {a:1 b:2} null {c:3}
	keys := bytesBatch([][]byte{[]byte("a"), []byte("b"), []byte("c")}, nil)
	items := longBatch([]int64{1, 2, 3}, nil)
	batch := &orc.MapBatch{Offsets: []int64{0, 2, 2, 3}, Keys: keys, Items: items}
	batch.Rows, batch.Nulls = 3, nullsAt(3, 1)

	desc := orc.NewMap(orc.NewPrimitive(orc.STRING), orc.NewPrimitive(orc.LONG))
	b := newBuilder(t, desc)
	require.NoError(t, AppendBatch(desc, batch, 0, 3, b))

	arr := b.NewArray().(*array.Map)
	defer arr.Release()
	require.Equal(t, 3, arr.Len())
	assert.True(t, arr.IsNull(1))

	gotKeys := arr.Keys().(*array.String)
	gotItems := arr.Items().(*array.Int64)
	require.Equal(t, 3, gotKeys.Len())
	assert.Equal(t, "a", gotKeys.Value(0))
	assert.Equal(t, "c", gotKeys.Value(2))
	assert.Equal(t, []int64{1, 2, 3}, gotItems.Int64Values())
}

func TestAppendStructs(t *testing.T) {
	ids := longBatch([]int64{1, 0, 3}, nullsAt(3, 1))
	names := bytesBatch([][]byte{[]byte("x"), nil, []byte("z")}, nullsAt(3, 1))
	batch := structBatch(3, nullsAt(3, 1), ids, names)

	desc := orc.NewStruct(
		[]string{"id", "name"},
		[]*orc.TypeDescriptor{orc.NewPrimitive(orc.LONG), orc.NewPrimitive(orc.STRING)},
	)
	b := newBuilder(t, desc)
	require.NoError(t, AppendBatch(desc, batch, 0, 3, b))

	arr := b.NewArray().(*array.Struct)
	defer arr.Release()
	require.Equal(t, 3, arr.Len())
	assert.True(t, arr.IsNull(1))

	idField := arr.Field(0).(*array.Int64)
	nameField := arr.Field(1).(*array.String)
	require.Equal(t, 3, idField.Len())
	assert.Equal(t, int64(1), idField.Value(0))
	assert.True(t, idField.IsNull(1))
	assert.Equal(t, int64(3), idField.Value(2))
	assert.Equal(t, "x", nameField.Value(0))
	assert.Equal(t, "z", nameField.Value(2))
}

func TestAppendStructsWithoutNulls(t *testing.T) {
	// The null-free window takes the columnar path; results must be
	// indistinguishable from the row-at-a-time one.
	ids := longBatch([]int64{7, 8}, nil)
	names := bytesBatch([][]byte{[]byte("p"), []byte("q")}, nil)
	batch := structBatch(2, nil, ids, names)

	desc := orc.NewStruct(
		[]string{"id", "name"},
		[]*orc.TypeDescriptor{orc.NewPrimitive(orc.LONG), orc.NewPrimitive(orc.STRING)},
	)
	b := newBuilder(t, desc)
	require.NoError(t, AppendBatch(desc, batch, 0, 2, b))

	arr := b.NewArray().(*array.Struct)
	defer arr.Release()
	require.Equal(t, 2, arr.Len())
	assert.Zero(t, arr.NullN())
	assert.Equal(t, []int64{7, 8}, arr.Field(0).(*array.Int64).Int64Values())
	assert.Equal(t, "q", arr.Field(1).(*array.String).Value(1))
}

func TestAppendUnions(t *testing.T) {
	// Rows: 42(long) "hi"(string) null 7(long), dense encoding.
	longs := longBatch([]int64{42, 7}, nil)
	strs := bytesBatch([][]byte{[]byte("hi")}, nil)
	batch := &orc.UnionBatch{
		Tags:     []int{0, 1, 0, 0},
		Offsets:  []int{0, 0, 0, 1},
		Children: []orc.Batch{longs, strs},
	}
	batch.Rows, batch.Nulls = 4, nullsAt(4, 2)

	desc := orc.NewUnion(orc.NewPrimitive(orc.LONG), orc.NewPrimitive(orc.STRING))
	b := newBuilder(t, desc)
	require.NoError(t, AppendBatch(desc, batch, 0, 4, b))

	arr := b.NewArray().(*array.DenseUnion)
	defer arr.Release()
	require.Equal(t, 4, arr.Len())
	assert.Equal(t, arrow.UnionTypeCode(0), arr.TypeCode(0))
	assert.Equal(t, arrow.UnionTypeCode(1), arr.TypeCode(1))

	gotLongs := arr.Field(0).(*array.Int64)
	gotStrs := arr.Field(1).(*array.String)
	assert.Equal(t, int64(42), gotLongs.Value(int(arr.ValueOffset(0))))
	assert.Equal(t, "hi", gotStrs.Value(int(arr.ValueOffset(1))))
	assert.Equal(t, int64(7), gotLongs.Value(int(arr.ValueOffset(3))))
}

func TestAppendUnionRejectsBadTag(t *testing.T) {
	longs := longBatch([]int64{1}, nil)
	batch := &orc.UnionBatch{Tags: []int{5}, Offsets: []int{0}, Children: []orc.Batch{longs}}
	batch.Rows = 1

	desc := orc.NewUnion(orc.NewPrimitive(orc.LONG))
	b := newBuilder(t, desc)
	err := AppendBatch(desc, batch, 0, 1, b)
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsType(err, bridgeerrors.ErrorTypeData))
}

func TestAppendNestedListOfStructs(t *testing.T) {
	// list<struct<id:long>> with a null struct inside a list row.
	ids := longBatch([]int64{1, 0, 3}, nullsAt(3, 1))
	structs := structBatch(3, nullsAt(3, 1), ids)
	batch := &orc.ListBatch{Offsets: []int64{0, 2, 3}, Elements: structs}
	batch.Rows = 2

	desc := orc.NewList(orc.NewStruct(
		[]string{"id"},
		[]*orc.TypeDescriptor{orc.NewPrimitive(orc.LONG)},
	))
	b := newBuilder(t, desc)
	require.NoError(t, AppendBatch(desc, batch, 0, 2, b))

	arr := b.NewArray().(*array.List)
	defer arr.Release()
	require.Equal(t, 2, arr.Len())

	inner := arr.ListValues().(*array.Struct)
	require.Equal(t, 3, inner.Len())
	assert.True(t, inner.IsNull(1))
	assert.Equal(t, int64(3), inner.Field(0).(*array.Int64).Value(2))
}
