package adapter

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/orcbridge/pkg/bridgeerrors"
	"github.com/ajitpratap0/orcbridge/pkg/logger"
	"github.com/ajitpratap0/orcbridge/pkg/metrics"
	"github.com/ajitpratap0/orcbridge/pkg/orc"
)

// DefaultBatchSize is the per-batch row count used when a caller passes a
// non-positive batch size. It aliases the source-side default so the two
// layers cannot drift apart.
const DefaultBatchSize = orc.DefaultBatchSize

// Reader turns a source reader's stripes into Arrow records. The source
// schema is translated once when the reader is constructed and cached for
// its lifetime; a schema with any untranslatable type cannot be opened.
type Reader struct {
	src    orc.SourceReader
	desc   *orc.TypeDescriptor
	schema *arrow.Schema
	mem    memory.Allocator
	pool   *BuilderPool
	log    *zap.Logger

	stripeOrdinal int
	closed        bool
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger used by the reader and its stripe readers.
func WithLogger(log *zap.Logger) Option {
	return func(r *Reader) { r.log = log }
}

// Open opens the file at path with the built-in file codec and wraps it in
// a Reader. The file is closed again if its schema does not translate.
func Open(path string, mem memory.Allocator, opts ...Option) (*Reader, error) {
	src, err := orc.OpenFile(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(src, mem, opts...)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	return r, nil
}

// NewReader wraps any source reader. Translation of the schema is
// all-or-nothing; on failure the source is left open and untouched.
func NewReader(src orc.SourceReader, mem memory.Allocator, opts ...Option) (*Reader, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	r := &Reader{
		src:  src,
		desc: src.Schema(),
		mem:  mem,
		log:  logger.Get(),
	}
	for _, opt := range opts {
		opt(r)
	}

	schema, err := ArrowSchema(r.desc)
	if err != nil {
		metrics.TranslationErrors.Inc()
		return nil, err
	}
	r.schema = schema
	r.pool = NewBuilderPool(mem, schema)

	r.log.Debug("reader opened",
		zap.String("source_schema", r.desc.String()),
		zap.Int("columns", len(schema.Fields())))
	return r, nil
}

// Schema returns the translated Arrow schema.
func (r *Reader) Schema() *arrow.Schema { return r.schema }

// SourceSchema returns the source type descriptor tree.
func (r *Reader) SourceSchema() *orc.TypeDescriptor { return r.desc }

// NextStripeReader advances to the next stripe and returns its reader, or
// (nil, nil) after the last stripe.
func (r *Reader) NextStripeReader(batchSize int) (*StripeReader, error) {
	if r.closed {
		return nil, bridgeerrors.New(bridgeerrors.ErrorTypeContract, "reader is closed")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	producer, err := r.src.NextStripe(batchSize)
	if err != nil {
		metrics.StripesRead.WithLabelValues("error").Inc()
		return nil, err
	}
	if producer == nil {
		return nil, nil
	}

	ordinal := r.stripeOrdinal
	r.stripeOrdinal++
	metrics.StripesRead.WithLabelValues("ok").Inc()
	r.log.Debug("stripe opened", zap.Int("stripe", ordinal))

	return &StripeReader{
		producer: producer,
		reader:   r,
		ordinal:  ordinal,
	}, nil
}

// Close closes the underlying source. Stripe readers obtained earlier must
// not be used afterwards.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.src.Close()
}

// StripeReader materializes one stripe's decoded batches into Arrow
// records. It is not safe for concurrent use; batches and builders are
// accessed exclusively during each Next call.
type StripeReader struct {
	producer orc.BatchProducer
	reader   *Reader
	ordinal  int
}

// Schema returns the translated Arrow schema shared with the Reader.
func (s *StripeReader) Schema() *arrow.Schema { return s.reader.schema }

// Next materializes the next decoded batch into a record, or returns
// (nil, nil) when the stripe is exhausted. The caller owns the returned
// record and must Release it.
func (s *StripeReader) Next() (arrow.Record, error) {
	batch, err := s.producer.Next()
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, nil
	}

	root, ok := batch.(*orc.StructBatch)
	if !ok {
		return nil, bridgeerrors.Newf(bridgeerrors.ErrorTypeInternal,
			"root batch is %T, not a struct", batch)
	}
	if len(root.Fields) != len(s.reader.desc.Children) {
		return nil, bridgeerrors.Newf(bridgeerrors.ErrorTypeInternal,
			"batch has %d columns, schema has %d", len(root.Fields), len(s.reader.desc.Children))
	}

	start := time.Now()
	b := s.reader.pool.Get()
	for i, child := range s.reader.desc.Children {
		if err := AppendBatch(child, root.Fields[i], 0, root.Len(), b.Field(i)); err != nil {
			// A partially filled builder cannot be reused; drop it instead
			// of returning it to the pool.
			b.Release()
			s.reader.log.Error("materialization failed",
				zap.Int("stripe", s.ordinal),
				zap.String("column", s.reader.desc.FieldNames[i]),
				zap.Error(err))
			return nil, err
		}
	}

	rec := b.NewRecord()
	s.reader.pool.Put(b)
	metrics.ObserveMaterialize(root.Len(), start)
	return rec, nil
}
