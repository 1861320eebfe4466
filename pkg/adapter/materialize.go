package adapter

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"

	"github.com/ajitpratap0/orcbridge/pkg/bridgeerrors"
	"github.com/ajitpratap0/orcbridge/pkg/orc"
)

// AppendBatch appends the window [offset, offset+length) of one decoded
// batch into builder, value for value. Null positions are preserved: a null
// row contributes exactly one null entry and no value payload, and for
// composite kinds a null row skips child recursion entirely.
//
// The window is validated before anything is appended, so an out-of-range
// window leaves the builder untouched. A descriptor paired with a batch or
// builder of the wrong category means translation was skipped or
// inconsistent and fails as an internal error. Values that do not fit the
// target physical width fail rather than truncate; by then the builder may
// hold part of the window, and builders are append-only, so a failed
// builder cannot be reused.
//
// The caller must have exclusive access to both batch and builder for the
// duration of the call.
func AppendBatch(desc *orc.TypeDescriptor, batch orc.Batch, offset, length int, builder array.Builder) error {
	if err := checkWindow(batch, offset, length); err != nil {
		return err
	}

	switch desc.Kind {
	case orc.BOOLEAN:
		return appendBooleans(batch, offset, length, builder)
	case orc.BYTE, orc.SHORT, orc.INT, orc.LONG:
		return appendIntegers(desc, batch, offset, length, builder)
	case orc.FLOAT, orc.DOUBLE:
		return appendFloats(desc, batch, offset, length, builder)
	case orc.STRING, orc.VARCHAR, orc.CHAR:
		return appendStrings(desc, batch, offset, length, builder)
	case orc.BINARY:
		return appendBinary(desc, batch, offset, length, builder)
	case orc.DATE:
		return appendDates(batch, offset, length, builder)
	case orc.TIMESTAMP:
		return appendTimestamps(desc, batch, offset, length, builder)
	case orc.DECIMAL:
		return appendDecimals(desc, batch, offset, length, builder)
	case orc.LIST:
		return appendLists(desc, batch, offset, length, builder)
	case orc.MAP:
		return appendMaps(desc, batch, offset, length, builder)
	case orc.STRUCT:
		return appendStructs(desc, batch, offset, length, builder)
	case orc.UNION:
		return appendUnions(desc, batch, offset, length, builder)
	default:
		return bridgeerrors.Newf(bridgeerrors.ErrorTypeInternal,
			"no materializer for source type %s", desc.Kind)
	}
}

func checkWindow(batch orc.Batch, offset, length int) error {
	if offset < 0 || length < 0 || offset+length > batch.Len() {
		return bridgeerrors.New(bridgeerrors.ErrorTypeContract, "window out of range").
			WithDetail("offset", offset).
			WithDetail("length", length).
			WithDetail("batch_rows", batch.Len())
	}
	return nil
}

func mismatch(desc *orc.TypeDescriptor, got interface{}) error {
	return bridgeerrors.Newf(bridgeerrors.ErrorTypeInternal,
		"source type %s paired with %T", desc.Kind, got)
}

func appendBooleans(batch orc.Batch, offset, length int, builder array.Builder) error {
	src, ok := batch.(*orc.LongBatch)
	if !ok {
		return mismatch(orc.NewPrimitive(orc.BOOLEAN), batch)
	}
	b, ok := builder.(*array.BooleanBuilder)
	if !ok {
		return mismatch(orc.NewPrimitive(orc.BOOLEAN), builder)
	}

	for i := offset; i < offset+length; i++ {
		if src.IsNull(i) {
			b.AppendNull()
		} else {
			b.Append(src.Values[i] != 0)
		}
	}
	return nil
}

func appendIntegers(desc *orc.TypeDescriptor, batch orc.Batch, offset, length int, builder array.Builder) error {
	src, ok := batch.(*orc.LongBatch)
	if !ok {
		return mismatch(desc, batch)
	}

	// The batch stores every integer width widened to int64; narrowing back
	// to the target width is range-checked, never truncated.
	narrow := func(i int, min, max int64) (int64, error) {
		v := src.Values[i]
		if v < min || v > max {
			return 0, bridgeerrors.Newf(bridgeerrors.ErrorTypeData,
				"value %d at row %d does not fit %s", v, i, desc.Kind)
		}
		return v, nil
	}

	switch b := builder.(type) {
	case *array.Int8Builder:
		for i := offset; i < offset+length; i++ {
			if src.IsNull(i) {
				b.AppendNull()
				continue
			}
			v, err := narrow(i, math.MinInt8, math.MaxInt8)
			if err != nil {
				return err
			}
			b.Append(int8(v))
		}
	case *array.Int16Builder:
		for i := offset; i < offset+length; i++ {
			if src.IsNull(i) {
				b.AppendNull()
				continue
			}
			v, err := narrow(i, math.MinInt16, math.MaxInt16)
			if err != nil {
				return err
			}
			b.Append(int16(v))
		}
	case *array.Int32Builder:
		for i := offset; i < offset+length; i++ {
			if src.IsNull(i) {
				b.AppendNull()
				continue
			}
			v, err := narrow(i, math.MinInt32, math.MaxInt32)
			if err != nil {
				return err
			}
			b.Append(int32(v))
		}
	case *array.Int64Builder:
		for i := offset; i < offset+length; i++ {
			if src.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(src.Values[i])
			}
		}
	default:
		return mismatch(desc, builder)
	}
	return nil
}

func appendFloats(desc *orc.TypeDescriptor, batch orc.Batch, offset, length int, builder array.Builder) error {
	src, ok := batch.(*orc.DoubleBatch)
	if !ok {
		return mismatch(desc, batch)
	}

	switch b := builder.(type) {
	case *array.Float32Builder:
		// FLOAT values are float32-exact even though the batch stores them
		// widened to float64, so the narrowing is lossless.
		for i := offset; i < offset+length; i++ {
			if src.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(float32(src.Values[i]))
			}
		}
	case *array.Float64Builder:
		for i := offset; i < offset+length; i++ {
			if src.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(src.Values[i])
			}
		}
	default:
		return mismatch(desc, builder)
	}
	return nil
}

func appendStrings(desc *orc.TypeDescriptor, batch orc.Batch, offset, length int, builder array.Builder) error {
	src, ok := batch.(*orc.BytesBatch)
	if !ok {
		return mismatch(desc, batch)
	}
	b, ok := builder.(*array.StringBuilder)
	if !ok {
		return mismatch(desc, builder)
	}

	for i := offset; i < offset+length; i++ {
		if src.IsNull(i) {
			b.AppendNull()
		} else {
			b.Append(string(src.Values[i]))
		}
	}
	return nil
}

func appendBinary(desc *orc.TypeDescriptor, batch orc.Batch, offset, length int, builder array.Builder) error {
	src, ok := batch.(*orc.BytesBatch)
	if !ok {
		return mismatch(desc, batch)
	}
	b, ok := builder.(*array.BinaryBuilder)
	if !ok {
		return mismatch(desc, builder)
	}

	for i := offset; i < offset+length; i++ {
		if src.IsNull(i) {
			b.AppendNull()
		} else {
			b.Append(src.Values[i])
		}
	}
	return nil
}

func appendDates(batch orc.Batch, offset, length int, builder array.Builder) error {
	desc := orc.NewPrimitive(orc.DATE)
	src, ok := batch.(*orc.LongBatch)
	if !ok {
		return mismatch(desc, batch)
	}
	b, ok := builder.(*array.Date32Builder)
	if !ok {
		return mismatch(desc, builder)
	}

	for i := offset; i < offset+length; i++ {
		if src.IsNull(i) {
			b.AppendNull()
			continue
		}
		v := src.Values[i]
		if v < math.MinInt32 || v > math.MaxInt32 {
			return bridgeerrors.Newf(bridgeerrors.ErrorTypeData,
				"date %d at row %d does not fit date32", v, i)
		}
		b.Append(arrow.Date32(v))
	}
	return nil
}

// maxEpochSeconds bounds the seconds that survive widening to nanoseconds
// in an int64.
const maxEpochSeconds = math.MaxInt64 / int64(1e9)

func appendTimestamps(desc *orc.TypeDescriptor, batch orc.Batch, offset, length int, builder array.Builder) error {
	src, ok := batch.(*orc.TimestampBatch)
	if !ok {
		return mismatch(desc, batch)
	}
	b, ok := builder.(*array.TimestampBuilder)
	if !ok {
		return mismatch(desc, builder)
	}

	for i := offset; i < offset+length; i++ {
		if src.IsNull(i) {
			b.AppendNull()
			continue
		}
		sec := src.Seconds[i]
		nanos := int64(src.Nanos[i])
		// The nanosecond remainder counts against the int64 budget too: at
		// the top of the range, seconds alone can pass while sec*1e9+nanos
		// still wraps.
		if sec < -maxEpochSeconds || sec > (math.MaxInt64-nanos)/int64(1e9) {
			return bridgeerrors.Newf(bridgeerrors.ErrorTypeData,
				"timestamp %ds %dns at row %d overflows nanosecond range", sec, nanos, i)
		}
		b.Append(arrow.Timestamp(sec*int64(1e9) + nanos))
	}
	return nil
}

func appendDecimals(desc *orc.TypeDescriptor, batch orc.Batch, offset, length int, builder array.Builder) error {
	src, ok := batch.(*orc.DecimalBatch)
	if !ok {
		return mismatch(desc, batch)
	}
	b, ok := builder.(*array.Decimal128Builder)
	if !ok {
		return mismatch(desc, builder)
	}
	if src.Precision != desc.Precision || src.Scale != desc.Scale {
		return bridgeerrors.Newf(bridgeerrors.ErrorTypeInternal,
			"decimal batch (%d,%d) disagrees with type (%d,%d)",
			src.Precision, src.Scale, desc.Precision, desc.Scale)
	}

	for i := offset; i < offset+length; i++ {
		if src.IsNull(i) {
			b.AppendNull()
		} else {
			b.Append(decimal128.FromI64(src.Values[i]))
		}
	}
	return nil
}

func appendLists(desc *orc.TypeDescriptor, batch orc.Batch, offset, length int, builder array.Builder) error {
	src, ok := batch.(*orc.ListBatch)
	if !ok {
		return mismatch(desc, batch)
	}
	b, ok := builder.(*array.ListBuilder)
	if !ok {
		return mismatch(desc, builder)
	}

	for i := offset; i < offset+length; i++ {
		if src.IsNull(i) {
			b.AppendNull()
			continue
		}
		start, end := src.Offsets[i], src.Offsets[i+1]
		if start > end {
			return bridgeerrors.Newf(bridgeerrors.ErrorTypeInternal,
				"list offsets not monotonic at row %d", i)
		}
		b.Append(true)
		if err := AppendBatch(desc.Children[0], src.Elements, int(start), int(end-start), b.ValueBuilder()); err != nil {
			return err
		}
	}
	return nil
}

func appendMaps(desc *orc.TypeDescriptor, batch orc.Batch, offset, length int, builder array.Builder) error {
	src, ok := batch.(*orc.MapBatch)
	if !ok {
		return mismatch(desc, batch)
	}
	b, ok := builder.(*array.MapBuilder)
	if !ok {
		return mismatch(desc, builder)
	}

	for i := offset; i < offset+length; i++ {
		if src.IsNull(i) {
			b.AppendNull()
			continue
		}
		start, end := src.Offsets[i], src.Offsets[i+1]
		if start > end {
			return bridgeerrors.Newf(bridgeerrors.ErrorTypeInternal,
				"map offsets not monotonic at row %d", i)
		}
		b.Append(true)
		if err := AppendBatch(desc.Children[0], src.Keys, int(start), int(end-start), b.KeyBuilder()); err != nil {
			return err
		}
		if err := AppendBatch(desc.Children[1], src.Items, int(start), int(end-start), b.ItemBuilder()); err != nil {
			return err
		}
	}
	return nil
}

func appendStructs(desc *orc.TypeDescriptor, batch orc.Batch, offset, length int, builder array.Builder) error {
	src, ok := batch.(*orc.StructBatch)
	if !ok {
		return mismatch(desc, batch)
	}
	b, ok := builder.(*array.StructBuilder)
	if !ok {
		return mismatch(desc, builder)
	}
	if len(src.Fields) != len(desc.Children) {
		return bridgeerrors.Newf(bridgeerrors.ErrorTypeInternal,
			"struct batch has %d fields, type has %d", len(src.Fields), len(desc.Children))
	}

	// Without nulls the whole window can be recursed field by field, which
	// keeps the appends columnar. A null struct row must instead skip child
	// recursion (AppendNull advances the child null markers), so mixed
	// windows fall back to row-at-a-time.
	if !windowHasNulls(src, offset, length) {
		for i := 0; i < length; i++ {
			b.Append(true)
		}
		// Field iteration order must match declared order: builder appends
		// are positional.
		for f, child := range desc.Children {
			if err := AppendBatch(child, src.Fields[f], offset, length, b.FieldBuilder(f)); err != nil {
				return err
			}
		}
		return nil
	}

	for i := offset; i < offset+length; i++ {
		if src.IsNull(i) {
			b.AppendNull()
			continue
		}
		b.Append(true)
		for f, child := range desc.Children {
			if err := AppendBatch(child, src.Fields[f], i, 1, b.FieldBuilder(f)); err != nil {
				return err
			}
		}
	}
	return nil
}

func windowHasNulls(batch orc.Batch, offset, length int) bool {
	for i := offset; i < offset+length; i++ {
		if batch.IsNull(i) {
			return true
		}
	}
	return false
}

func appendUnions(desc *orc.TypeDescriptor, batch orc.Batch, offset, length int, builder array.Builder) error {
	src, ok := batch.(*orc.UnionBatch)
	if !ok {
		return mismatch(desc, batch)
	}
	b, ok := builder.(*array.DenseUnionBuilder)
	if !ok {
		return mismatch(desc, builder)
	}

	for i := offset; i < offset+length; i++ {
		if src.IsNull(i) {
			b.AppendNull()
			continue
		}
		tag := src.Tags[i]
		if tag < 0 || tag >= len(desc.Children) {
			return bridgeerrors.Newf(bridgeerrors.ErrorTypeData,
				"union tag %d at row %d outside %d variants", tag, i, len(desc.Children))
		}
		b.Append(arrow.UnionTypeCode(tag))
		if err := AppendBatch(desc.Children[tag], src.Children[tag], src.Offsets[i], 1, b.Child(tag)); err != nil {
			return err
		}
	}
	return nil
}
