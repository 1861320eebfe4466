package orc

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/ajitpratap0/orcbridge/pkg/bridgeerrors"
)

const (
	orcMagic         = "ORC"
	writerVersion    = 1
	defaultStripeRow = 64 * 1024

	// maxDecimalDigits is the widest decimal precision an int64 unscaled
	// value can carry.
	maxDecimalDigits = 18
)

var formatVersion = []uint32{0, 12}

// WriterOptions configures a file Writer.
type WriterOptions struct {
	// Compression selects the stripe and footer payload compression.
	Compression CompressionKind
	// StripeRows is the row count at which a stripe is flushed. Defaults to
	// 64Ki rows.
	StripeRows int
}

// Writer writes the simplified stripe-oriented container consumed by
// FileReader. The data codec covers flat struct-of-primitive schemas; that
// is all the CLI and the integration tests need, while the adapter itself
// stays format-agnostic behind BatchProducer.
type Writer struct {
	w      io.Writer
	schema *TypeDescriptor
	opts   WriterOptions

	compress func([]byte) ([]byte, error)

	pending     []*StructBatch
	pendingRows int

	offset  uint64
	stripes []stripeInfo
	stats   []columnStats
	numRows uint64
	closed  bool
}

type stripeInfo struct {
	offset uint64
	length uint64
	rows   uint64
}

type columnStats struct {
	numValues uint64
	hasNull   bool
}

// NewWriter creates a writer for the given root schema. The root must be a
// STRUCT whose fields are all primitive kinds.
func NewWriter(w io.Writer, schema *TypeDescriptor, opts WriterOptions) (*Writer, error) {
	if schema == nil || schema.Kind != STRUCT {
		return nil, bridgeerrors.New(bridgeerrors.ErrorTypeConfig, "root schema must be a struct")
	}
	for i, child := range schema.Children {
		if child.Kind.IsComposite() {
			return nil, bridgeerrors.Newf(bridgeerrors.ErrorTypeConfig,
				"file codec supports flat schemas only, field %s is %s", schema.FieldNames[i], child.Kind)
		}
		if child.Kind == DECIMAL && child.Precision > maxDecimalDigits {
			return nil, bridgeerrors.Newf(bridgeerrors.ErrorTypeConfig,
				"file codec stores unscaled decimals as int64, field %s precision %d exceeds %d",
				schema.FieldNames[i], child.Precision, maxDecimalDigits)
		}
	}
	if opts.StripeRows <= 0 {
		opts.StripeRows = defaultStripeRow
	}

	compress, err := compressor(opts.Compression)
	if err != nil {
		return nil, err
	}

	ow := &Writer{
		w:        w,
		schema:   schema,
		opts:     opts,
		compress: compress,
		stats:    make([]columnStats, len(schema.Children)),
	}

	if err := ow.writeRaw([]byte(orcMagic)); err != nil {
		return nil, err
	}
	return ow, nil
}

// WriteBatch appends one decoded root batch. The batch must have one field
// per schema column with matching categories.
func (ow *Writer) WriteBatch(batch *StructBatch) error {
	if ow.closed {
		return bridgeerrors.New(bridgeerrors.ErrorTypeContract, "writer is closed")
	}
	if len(batch.Fields) != len(ow.schema.Children) {
		return bridgeerrors.Newf(bridgeerrors.ErrorTypeContract,
			"batch has %d columns, schema has %d", len(batch.Fields), len(ow.schema.Children))
	}

	ow.pending = append(ow.pending, batch)
	ow.pendingRows += batch.Len()
	if ow.pendingRows >= ow.opts.StripeRows {
		return ow.flushStripe()
	}
	return nil
}

// Flush forces the pending rows out as a stripe.
func (ow *Writer) Flush() error {
	if ow.closed {
		return bridgeerrors.New(bridgeerrors.ErrorTypeContract, "writer is closed")
	}
	return ow.flushStripe()
}

// Close flushes pending data and writes the footer, postscript, and
// trailing magic.
func (ow *Writer) Close() error {
	if ow.closed {
		return nil
	}
	if err := ow.flushStripe(); err != nil {
		return err
	}
	ow.closed = true

	footer, err := ow.compress(ow.encodeFooter())
	if err != nil {
		return err
	}
	if err := ow.writeRaw(footer); err != nil {
		return err
	}

	ps := ow.encodePostscript(uint64(len(footer)))
	if len(ps) > math.MaxUint8 {
		return bridgeerrors.New(bridgeerrors.ErrorTypeInternal, "postscript too large")
	}
	if err := ow.writeRaw(ps); err != nil {
		return err
	}
	if err := ow.writeRaw([]byte{byte(len(ps))}); err != nil {
		return err
	}
	return ow.writeRaw([]byte(orcMagic))
}

func (ow *Writer) writeRaw(data []byte) error {
	if _, err := ow.w.Write(data); err != nil {
		return bridgeerrors.Wrap(err, bridgeerrors.ErrorTypeFile, "write failed")
	}
	ow.offset += uint64(len(data))
	return nil
}

func (ow *Writer) flushStripe() error {
	if ow.pendingRows == 0 {
		return nil
	}

	info := stripeInfo{
		offset: ow.offset,
		rows:   uint64(ow.pendingRows),
	}

	var stripe []byte
	stripe = binary.AppendUvarint(stripe, uint64(ow.pendingRows))
	stripe = binary.AppendUvarint(stripe, uint64(len(ow.schema.Children)))

	for col, desc := range ow.schema.Children {
		payload, err := ow.encodeColumn(col, desc)
		if err != nil {
			return err
		}
		compressed, err := ow.compress(payload)
		if err != nil {
			return err
		}
		stripe = binary.AppendUvarint(stripe, uint64(len(compressed)))
		stripe = append(stripe, compressed...)
	}

	if err := ow.writeRaw(stripe); err != nil {
		return err
	}

	info.length = ow.offset - info.offset
	ow.stripes = append(ow.stripes, info)
	ow.numRows += info.rows

	ow.pending = nil
	ow.pendingRows = 0
	return nil
}

// encodeColumn concatenates the column across all pending batches: a
// bitpacked null section followed by the values of non-null rows.
func (ow *Writer) encodeColumn(col int, desc *TypeDescriptor) ([]byte, error) {
	nulls := make([]bool, 0, ow.pendingRows)
	for _, batch := range ow.pending {
		field := batch.Fields[col]
		for i := 0; i < field.Len(); i++ {
			nulls = append(nulls, field.IsNull(i))
		}
	}

	encoded := packBools(nil, nulls)

	for _, batch := range ow.pending {
		field := batch.Fields[col]
		var err error
		encoded, err = appendColumnValues(encoded, desc, field)
		if err != nil {
			return nil, err
		}
	}

	stats := &ow.stats[col]
	stats.numValues += uint64(len(nulls))
	for _, n := range nulls {
		if n {
			stats.hasNull = true
			break
		}
	}

	return encoded, nil
}

func appendColumnValues(encoded []byte, desc *TypeDescriptor, field Batch) ([]byte, error) {
	switch desc.Kind {
	case BOOLEAN:
		b, ok := field.(*LongBatch)
		if !ok {
			return nil, batchMismatch(desc, field)
		}
		vals := make([]bool, 0, b.Len())
		for i := 0; i < b.Len(); i++ {
			if !b.IsNull(i) {
				vals = append(vals, b.Values[i] != 0)
			}
		}
		return packBools(encoded, vals), nil

	case BYTE, SHORT, INT, LONG, DATE:
		b, ok := field.(*LongBatch)
		if !ok {
			return nil, batchMismatch(desc, field)
		}
		for i := 0; i < b.Len(); i++ {
			if !b.IsNull(i) {
				encoded = binary.AppendVarint(encoded, b.Values[i])
			}
		}
		return encoded, nil

	case FLOAT, DOUBLE:
		b, ok := field.(*DoubleBatch)
		if !ok {
			return nil, batchMismatch(desc, field)
		}
		for i := 0; i < b.Len(); i++ {
			if !b.IsNull(i) {
				encoded = binary.LittleEndian.AppendUint64(encoded, math.Float64bits(b.Values[i]))
			}
		}
		return encoded, nil

	case STRING, VARCHAR, CHAR, BINARY:
		b, ok := field.(*BytesBatch)
		if !ok {
			return nil, batchMismatch(desc, field)
		}
		for i := 0; i < b.Len(); i++ {
			if !b.IsNull(i) {
				encoded = binary.AppendUvarint(encoded, uint64(len(b.Values[i])))
				encoded = append(encoded, b.Values[i]...)
			}
		}
		return encoded, nil

	case DECIMAL:
		b, ok := field.(*DecimalBatch)
		if !ok {
			return nil, batchMismatch(desc, field)
		}
		for i := 0; i < b.Len(); i++ {
			if !b.IsNull(i) {
				encoded = binary.AppendVarint(encoded, b.Values[i])
			}
		}
		return encoded, nil

	case TIMESTAMP:
		b, ok := field.(*TimestampBatch)
		if !ok {
			return nil, batchMismatch(desc, field)
		}
		for i := 0; i < b.Len(); i++ {
			if !b.IsNull(i) {
				encoded = binary.AppendVarint(encoded, b.Seconds[i])
				encoded = binary.AppendUvarint(encoded, uint64(b.Nanos[i]))
			}
		}
		return encoded, nil

	default:
		return nil, bridgeerrors.Newf(bridgeerrors.ErrorTypeConfig, "file codec cannot encode %s", desc.Kind)
	}
}

func batchMismatch(desc *TypeDescriptor, field Batch) error {
	return bridgeerrors.Newf(bridgeerrors.ErrorTypeContract,
		"column of kind %s paired with batch %T", desc.Kind, field)
}

// packBools appends vals bitpacked LSB-first, one bit per value.
func packBools(dst []byte, vals []bool) []byte {
	start := len(dst)
	dst = append(dst, make([]byte, (len(vals)+7)/8)...)
	for i, v := range vals {
		if v {
			dst[start+i/8] |= 1 << (uint(i) % 8)
		}
	}
	return dst
}

func (ow *Writer) encodeFooter() []byte {
	var footer []byte

	// Flattened type tree, root first.
	flat, subtypes := flattenTypes(ow.schema)
	footer = binary.AppendUvarint(footer, uint64(len(flat)))
	for i, t := range flat {
		footer = binary.AppendUvarint(footer, uint64(t.Kind))
		footer = binary.AppendUvarint(footer, uint64(len(subtypes[i])))
		for _, s := range subtypes[i] {
			footer = binary.AppendUvarint(footer, uint64(s))
		}
		footer = binary.AppendUvarint(footer, uint64(len(t.FieldNames)))
		for _, name := range t.FieldNames {
			footer = binary.AppendUvarint(footer, uint64(len(name)))
			footer = append(footer, name...)
		}
		footer = binary.AppendUvarint(footer, uint64(t.Precision))
		footer = binary.AppendUvarint(footer, uint64(t.Scale))
		footer = binary.AppendUvarint(footer, uint64(t.MaxLength))
	}

	footer = binary.AppendUvarint(footer, uint64(len(ow.stripes)))
	for _, s := range ow.stripes {
		footer = binary.AppendUvarint(footer, s.offset)
		footer = binary.AppendUvarint(footer, s.length)
		footer = binary.AppendUvarint(footer, s.rows)
	}

	footer = binary.AppendUvarint(footer, ow.numRows)

	footer = binary.AppendUvarint(footer, uint64(len(ow.stats)))
	for _, s := range ow.stats {
		footer = binary.AppendUvarint(footer, s.numValues)
		if s.hasNull {
			footer = append(footer, 1)
		} else {
			footer = append(footer, 0)
		}
	}

	return footer
}

func (ow *Writer) encodePostscript(footerLength uint64) []byte {
	var ps []byte
	ps = binary.AppendUvarint(ps, footerLength)
	ps = append(ps, byte(ow.opts.Compression))
	ps = append(ps, byte(len(formatVersion)))
	for _, v := range formatVersion {
		ps = binary.AppendUvarint(ps, uint64(v))
	}
	ps = append(ps, writerVersion)
	return ps
}

// flattenTypes lists the type tree in preorder and returns, per node, the
// flat ids of its children.
func flattenTypes(root *TypeDescriptor) ([]*TypeDescriptor, [][]uint32) {
	var flat []*TypeDescriptor
	var subtypes [][]uint32

	var walk func(t *TypeDescriptor) uint32
	walk = func(t *TypeDescriptor) uint32 {
		id := uint32(len(flat))
		flat = append(flat, t)
		subtypes = append(subtypes, nil)
		for _, child := range t.Children {
			childID := walk(child)
			subtypes[id] = append(subtypes[id], childID)
		}
		return id
	}
	walk(root)

	return flat, subtypes
}
