package orc

// DefaultBatchSize is the row capacity used for decoded batches when the
// caller does not choose one.
const DefaultBatchSize = 1024

// Batch is one decoded, fixed-capacity columnar chunk of rows for a single
// type node. Batches are produced fresh per decode call and are read-only to
// the adapter; the logical length never exceeds the allocated capacity.
type Batch interface {
	// Len returns the number of rows actually decoded.
	Len() int
	// Cap returns the allocated row capacity.
	Cap() int
	// IsNull reports whether row i is null. i must be in [0, Len()).
	IsNull(i int) bool
}

// vector carries the row count, capacity, and validity shared by every
// concrete batch. A nil Nulls slice means no row is null.
type vector struct {
	Rows     int
	Capacity int
	Nulls    []bool
}

func (v *vector) Len() int { return v.Rows }

func (v *vector) Cap() int {
	if v.Capacity == 0 {
		return v.Rows
	}
	return v.Capacity
}

func (v *vector) IsNull(i int) bool {
	return v.Nulls != nil && v.Nulls[i]
}

// LongBatch holds integer-family values: BOOLEAN (0/1), BYTE, SHORT, INT,
// LONG, and DATE (days since epoch), all widened to int64 the way hive
// vectorized batches store them.
type LongBatch struct {
	vector
	Values []int64
}

// DoubleBatch holds FLOAT and DOUBLE values, widened to float64.
type DoubleBatch struct {
	vector
	Values []float64
}

// BytesBatch holds STRING, VARCHAR, CHAR, and BINARY values as per-row byte
// slices.
type BytesBatch struct {
	vector
	Values [][]byte
}

// DecimalBatch holds DECIMAL values as unscaled int64 magnitudes along with
// the precision and scale they were decoded under. An int64 carries at most
// 18 decimal digits, so this source model covers precision up to 18;
// producers of wider decimals must reject them rather than truncate.
type DecimalBatch struct {
	vector
	Values    []int64
	Precision uint32
	Scale     uint32
}

// TimestampBatch holds TIMESTAMP values split into epoch seconds and a
// nanosecond remainder, as ORC stores them.
type TimestampBatch struct {
	vector
	Seconds []int64
	Nanos   []uint32
}

// ListBatch holds LIST rows. Row i covers Elements rows
// [Offsets[i], Offsets[i+1]); Offsets has Len()+1 entries.
type ListBatch struct {
	vector
	Offsets  []int64
	Elements Batch
}

// MapBatch holds MAP rows. Row i covers Keys and Items rows
// [Offsets[i], Offsets[i+1]); Offsets has Len()+1 entries.
type MapBatch struct {
	vector
	Offsets []int64
	Keys    Batch
	Items   Batch
}

// StructBatch holds STRUCT rows. Every field batch has the same logical
// length as the struct batch itself; rows where the struct is null carry
// nulls in the field batches as well.
type StructBatch struct {
	vector
	Fields []Batch
}

// UnionBatch holds UNION rows. Tags[i] selects the active variant of row i
// and Offsets[i] is that row's index within Children[Tags[i]], which only
// stores the rows where its variant is active.
type UnionBatch struct {
	vector
	Tags     []int
	Offsets  []int
	Children []Batch
}
