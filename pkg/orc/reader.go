package orc

import (
	"encoding/binary"
	"math"
	"os"

	"github.com/ajitpratap0/orcbridge/pkg/bridgeerrors"
)

// SourceReader is the adapter's view of an open source file: a schema and a
// sequence of per-stripe batch producers. The file codec below implements
// it; tests substitute in-memory implementations.
type SourceReader interface {
	// Schema returns the root type descriptor. The tree is immutable.
	Schema() *TypeDescriptor
	// NextStripe returns a producer for the next stripe, decoding up to
	// batchSize rows per batch, or (nil, nil) after the last stripe.
	NextStripe(batchSize int) (BatchProducer, error)
	// Close releases the reader's resources.
	Close() error
}

// BatchProducer yields the decoded batches of one stripe in order. Each
// batch is produced fresh and is read-only to the consumer.
type BatchProducer interface {
	// Next returns the next root batch, or (nil, nil) when the stripe is
	// exhausted. The root batch is always a *StructBatch.
	Next() (Batch, error)
}

// FileReader reads the container produced by Writer. The whole file is held
// in memory; stripes are decoded lazily, one at a time.
type FileReader struct {
	data   []byte
	schema *TypeDescriptor

	compression CompressionKind
	decompress  func([]byte) ([]byte, error)

	stripes []stripeInfo
	stats   []columnStats
	numRows uint64

	nextStripe int
}

// OpenFile opens path and parses its metadata.
func OpenFile(path string) (*FileReader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, bridgeerrors.Wrap(err, bridgeerrors.ErrorTypeFile, "cannot read file")
	}
	r, err := NewFileReader(data)
	if err != nil {
		return nil, bridgeerrors.Wrap(err, bridgeerrors.ErrorTypeFile, path)
	}
	return r, nil
}

// NewFileReader parses an in-memory file image.
func NewFileReader(data []byte) (*FileReader, error) {
	r := &FileReader{data: data}
	if err := r.readTail(); err != nil {
		return nil, err
	}
	return r, nil
}

// Schema returns the root type descriptor.
func (r *FileReader) Schema() *TypeDescriptor { return r.schema }

// NumRows returns the total row count recorded in the footer.
func (r *FileReader) NumRows() uint64 { return r.numRows }

// NumStripes returns the number of stripes in the file.
func (r *FileReader) NumStripes() int { return len(r.stripes) }

// Compression returns the payload compression kind.
func (r *FileReader) Compression() CompressionKind { return r.compression }

// NextStripe decodes the next stripe and returns its producer, or
// (nil, nil) after the last one. Stripes are iterated once, in file order.
func (r *FileReader) NextStripe(batchSize int) (BatchProducer, error) {
	if r.data == nil {
		return nil, bridgeerrors.New(bridgeerrors.ErrorTypeContract, "reader is closed")
	}
	if r.nextStripe >= len(r.stripes) {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	info := r.stripes[r.nextStripe]
	r.nextStripe++

	columns, rows, err := r.decodeStripe(info)
	if err != nil {
		return nil, err
	}

	return &stripeProducer{
		schema:    r.schema,
		columns:   columns,
		rows:      rows,
		batchSize: batchSize,
	}, nil
}

// Close drops the file image. Further stripe reads fail.
func (r *FileReader) Close() error {
	r.data = nil
	return nil
}

func (r *FileReader) readTail() error {
	data := r.data
	tail := len(orcMagic) + 1
	if len(data) < len(orcMagic)+tail || string(data[:len(orcMagic)]) != orcMagic {
		return bridgeerrors.New(bridgeerrors.ErrorTypeData, "not an orcbridge file: bad magic")
	}
	if string(data[len(data)-len(orcMagic):]) != orcMagic {
		return bridgeerrors.New(bridgeerrors.ErrorTypeData, "truncated file: bad trailing magic")
	}

	psLen := int(data[len(data)-tail])
	psEnd := len(data) - tail
	if psLen <= 0 || psEnd-psLen < len(orcMagic) {
		return bridgeerrors.New(bridgeerrors.ErrorTypeData, "corrupt postscript length")
	}

	ps := newCursor(data[psEnd-psLen : psEnd])
	footerLen, err := ps.uvarint()
	if err != nil {
		return err
	}
	kindByte, err := ps.byte()
	if err != nil {
		return err
	}
	r.compression = CompressionKind(kindByte)
	r.decompress, err = decompressor(r.compression)
	if err != nil {
		return err
	}

	footerEnd := psEnd - psLen
	if uint64(footerEnd) < footerLen+uint64(len(orcMagic)) {
		return bridgeerrors.New(bridgeerrors.ErrorTypeData, "corrupt footer length")
	}
	footer, err := r.decompress(data[uint64(footerEnd)-footerLen : footerEnd])
	if err != nil {
		return bridgeerrors.Wrap(err, bridgeerrors.ErrorTypeData, "cannot decompress footer")
	}

	return r.decodeFooter(footer)
}

func (r *FileReader) decodeFooter(footer []byte) error {
	c := newCursor(footer)

	numTypes, err := c.uvarint()
	if err != nil {
		return err
	}
	if numTypes == 0 {
		return bridgeerrors.New(bridgeerrors.ErrorTypeData, "no types in footer")
	}

	flat := make([]*TypeDescriptor, numTypes)
	subtypes := make([][]uint32, numTypes)
	for i := range flat {
		t := &TypeDescriptor{}
		kind, err := c.uvarint()
		if err != nil {
			return err
		}
		t.Kind = TypeKind(kind)

		numSub, err := c.uvarint()
		if err != nil {
			return err
		}
		for j := uint64(0); j < numSub; j++ {
			s, err := c.uvarint()
			if err != nil {
				return err
			}
			// The tree is flattened in preorder, so a child id always
			// follows its parent. Anything else would link a node to
			// itself or an ancestor and make the tree cyclic.
			if s <= uint64(i) || s >= numTypes {
				return bridgeerrors.New(bridgeerrors.ErrorTypeData, "type subtree id out of preorder range")
			}
			subtypes[i] = append(subtypes[i], uint32(s))
		}

		numNames, err := c.uvarint()
		if err != nil {
			return err
		}
		for j := uint64(0); j < numNames; j++ {
			name, err := c.lengthPrefixed()
			if err != nil {
				return err
			}
			t.FieldNames = append(t.FieldNames, string(name))
		}

		if t.Precision, err = c.uvarint32(); err != nil {
			return err
		}
		if t.Scale, err = c.uvarint32(); err != nil {
			return err
		}
		if t.MaxLength, err = c.uvarint32(); err != nil {
			return err
		}
		flat[i] = t
	}
	for i, subs := range subtypes {
		for _, s := range subs {
			flat[i].Children = append(flat[i].Children, flat[s])
		}
	}
	r.schema = flat[0]
	if r.schema.Kind != STRUCT {
		return bridgeerrors.New(bridgeerrors.ErrorTypeData, "root type is not a struct")
	}

	numStripes, err := c.uvarint()
	if err != nil {
		return err
	}
	for i := uint64(0); i < numStripes; i++ {
		var s stripeInfo
		if s.offset, err = c.uvarint(); err != nil {
			return err
		}
		if s.length, err = c.uvarint(); err != nil {
			return err
		}
		if s.rows, err = c.uvarint(); err != nil {
			return err
		}
		if s.offset+s.length > uint64(len(r.data)) {
			return bridgeerrors.New(bridgeerrors.ErrorTypeData, "stripe extends past end of file")
		}
		r.stripes = append(r.stripes, s)
	}

	if r.numRows, err = c.uvarint(); err != nil {
		return err
	}

	numStats, err := c.uvarint()
	if err != nil {
		return err
	}
	for i := uint64(0); i < numStats; i++ {
		var s columnStats
		if s.numValues, err = c.uvarint(); err != nil {
			return err
		}
		b, err := c.byte()
		if err != nil {
			return err
		}
		s.hasNull = b != 0
		r.stats = append(r.stats, s)
	}

	return nil
}

// decodeStripe decodes every column of one stripe into full-stripe batches.
func (r *FileReader) decodeStripe(info stripeInfo) ([]Batch, int, error) {
	c := newCursor(r.data[info.offset : info.offset+info.length])

	rows64, err := c.uvarint()
	if err != nil {
		return nil, 0, err
	}
	rows := int(rows64)
	if rows64 != info.rows {
		return nil, 0, bridgeerrors.New(bridgeerrors.ErrorTypeData, "stripe row count disagrees with footer")
	}

	numCols, err := c.uvarint()
	if err != nil {
		return nil, 0, err
	}
	if int(numCols) != len(r.schema.Children) {
		return nil, 0, bridgeerrors.New(bridgeerrors.ErrorTypeData, "stripe column count disagrees with schema")
	}

	columns := make([]Batch, numCols)
	for col := range columns {
		compressed, err := c.lengthPrefixed()
		if err != nil {
			return nil, 0, err
		}
		payload, err := r.decompress(compressed)
		if err != nil {
			return nil, 0, bridgeerrors.Wrap(err, bridgeerrors.ErrorTypeData, "cannot decompress column")
		}
		columns[col], err = decodeColumn(r.schema.Children[col], payload, rows)
		if err != nil {
			return nil, 0, err
		}
	}

	return columns, rows, nil
}

// decodeColumn reverses appendColumnValues: a bitpacked null section, then
// the values of the non-null rows.
func decodeColumn(desc *TypeDescriptor, payload []byte, rows int) (Batch, error) {
	c := newCursor(payload)

	nullBits, err := c.bytes((rows + 7) / 8)
	if err != nil {
		return nil, err
	}
	var nulls []bool
	present := rows
	for i := 0; i < rows; i++ {
		if nullBits[i/8]&(1<<(uint(i)%8)) != 0 {
			if nulls == nil {
				nulls = make([]bool, rows)
			}
			nulls[i] = true
			present--
		}
	}

	vec := vector{Rows: rows, Capacity: rows, Nulls: nulls}

	switch desc.Kind {
	case BOOLEAN:
		bits, err := c.bytes((present + 7) / 8)
		if err != nil {
			return nil, err
		}
		b := &LongBatch{vector: vec, Values: make([]int64, rows)}
		j := 0
		for i := 0; i < rows; i++ {
			if !b.IsNull(i) {
				if bits[j/8]&(1<<(uint(j)%8)) != 0 {
					b.Values[i] = 1
				}
				j++
			}
		}
		return b, nil

	case BYTE, SHORT, INT, LONG, DATE:
		b := &LongBatch{vector: vec, Values: make([]int64, rows)}
		for i := 0; i < rows; i++ {
			if !b.IsNull(i) {
				if b.Values[i], err = c.varint(); err != nil {
					return nil, err
				}
			}
		}
		return b, nil

	case FLOAT, DOUBLE:
		b := &DoubleBatch{vector: vec, Values: make([]float64, rows)}
		for i := 0; i < rows; i++ {
			if !b.IsNull(i) {
				raw, err := c.bytes(8)
				if err != nil {
					return nil, err
				}
				b.Values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw))
			}
		}
		return b, nil

	case STRING, VARCHAR, CHAR, BINARY:
		b := &BytesBatch{vector: vec, Values: make([][]byte, rows)}
		for i := 0; i < rows; i++ {
			if !b.IsNull(i) {
				if b.Values[i], err = c.lengthPrefixed(); err != nil {
					return nil, err
				}
			}
		}
		return b, nil

	case DECIMAL:
		b := &DecimalBatch{vector: vec, Values: make([]int64, rows), Precision: desc.Precision, Scale: desc.Scale}
		for i := 0; i < rows; i++ {
			if !b.IsNull(i) {
				if b.Values[i], err = c.varint(); err != nil {
					return nil, err
				}
			}
		}
		return b, nil

	case TIMESTAMP:
		b := &TimestampBatch{vector: vec, Seconds: make([]int64, rows), Nanos: make([]uint32, rows)}
		for i := 0; i < rows; i++ {
			if !b.IsNull(i) {
				if b.Seconds[i], err = c.varint(); err != nil {
					return nil, err
				}
				nanos, err := c.uvarint32()
				if err != nil {
					return nil, err
				}
				b.Nanos[i] = nanos
			}
		}
		return b, nil

	default:
		return nil, bridgeerrors.Newf(bridgeerrors.ErrorTypeData, "file codec cannot decode %s", desc.Kind)
	}
}

// stripeProducer serves one decoded stripe in batchSize windows.
type stripeProducer struct {
	schema    *TypeDescriptor
	columns   []Batch
	rows      int
	batchSize int
	pos       int
}

func (p *stripeProducer) Next() (Batch, error) {
	if p.pos >= p.rows {
		return nil, nil
	}
	end := p.pos + p.batchSize
	if end > p.rows {
		end = p.rows
	}

	fields := make([]Batch, len(p.columns))
	for i, col := range p.columns {
		sliced, err := sliceBatch(col, p.pos, end)
		if err != nil {
			return nil, err
		}
		fields[i] = sliced
	}

	n := end - p.pos
	p.pos = end

	return &StructBatch{
		vector: vector{Rows: n, Capacity: n},
		Fields: fields,
	}, nil
}

// sliceBatch returns a window [start, end) of a primitive column batch. The
// slices share the decoded backing arrays; batches are read-only so this is
// safe.
func sliceBatch(b Batch, start, end int) (Batch, error) {
	n := end - start
	sub := func(v *vector) vector {
		out := vector{Rows: n, Capacity: n}
		if v.Nulls != nil {
			out.Nulls = v.Nulls[start:end]
		}
		return out
	}

	switch col := b.(type) {
	case *LongBatch:
		return &LongBatch{vector: sub(&col.vector), Values: col.Values[start:end]}, nil
	case *DoubleBatch:
		return &DoubleBatch{vector: sub(&col.vector), Values: col.Values[start:end]}, nil
	case *BytesBatch:
		return &BytesBatch{vector: sub(&col.vector), Values: col.Values[start:end]}, nil
	case *DecimalBatch:
		return &DecimalBatch{vector: sub(&col.vector), Values: col.Values[start:end], Precision: col.Precision, Scale: col.Scale}, nil
	case *TimestampBatch:
		return &TimestampBatch{vector: sub(&col.vector), Seconds: col.Seconds[start:end], Nanos: col.Nanos[start:end]}, nil
	default:
		return nil, bridgeerrors.Newf(bridgeerrors.ErrorTypeInternal, "cannot window batch %T", b)
	}
}

// cursor is a bounds-checked read position over a byte slice.
type cursor struct {
	data []byte
	pos  int
}

func newCursor(data []byte) *cursor {
	return &cursor{data: data}
}

func (c *cursor) uvarint() (uint64, error) {
	v, n := binary.Uvarint(c.data[c.pos:])
	if n <= 0 {
		return 0, bridgeerrors.New(bridgeerrors.ErrorTypeData, "corrupt varint")
	}
	c.pos += n
	return v, nil
}

func (c *cursor) uvarint32() (uint32, error) {
	v, err := c.uvarint()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, bridgeerrors.New(bridgeerrors.ErrorTypeData, "varint out of uint32 range")
	}
	return uint32(v), nil
}

func (c *cursor) varint() (int64, error) {
	v, n := binary.Varint(c.data[c.pos:])
	if n <= 0 {
		return 0, bridgeerrors.New(bridgeerrors.ErrorTypeData, "corrupt varint")
	}
	c.pos += n
	return v, nil
}

func (c *cursor) byte() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, bridgeerrors.New(bridgeerrors.ErrorTypeData, "unexpected end of data")
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) bytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.data) {
		return nil, bridgeerrors.New(bridgeerrors.ErrorTypeData, "unexpected end of data")
	}
	out := c.data[c.pos : c.pos+n]
	c.pos += n
	return out, nil
}

func (c *cursor) lengthPrefixed() ([]byte, error) {
	n, err := c.uvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(c.data)-c.pos) {
		return nil, bridgeerrors.New(bridgeerrors.ErrorTypeData, "length prefix past end of data")
	}
	return c.bytes(int(n))
}

var (
	_ SourceReader  = (*FileReader)(nil)
	_ BatchProducer = (*stripeProducer)(nil)
)
