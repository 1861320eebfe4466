// Package adapter bridges decoded ORC data into Arrow: it translates source
// type descriptor trees into Arrow types, materializes windowed column
// vector batches into Arrow array builders, and exposes open readers,
// stripe readers, and handed-off buffers through opaque handles.
package adapter

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/orcbridge/pkg/bridgeerrors"
	"github.com/ajitpratap0/orcbridge/pkg/orc"
)

// maxDecimalPrecision is the widest decimal the Arrow side stores; wider
// source decimals are a translation error, never a silent narrowing.
const maxDecimalPrecision = 38

// ArrowSchema translates a root struct descriptor into an Arrow schema.
// Translation is all-or-nothing: one untranslatable field aborts the whole
// schema, so a reader is never opened with a partially mapped type tree.
func ArrowSchema(root *orc.TypeDescriptor) (*arrow.Schema, error) {
	if root == nil || root.Kind != orc.STRUCT {
		return nil, bridgeerrors.New(bridgeerrors.ErrorTypeTranslation, "root type must be a struct")
	}

	fields := make([]arrow.Field, len(root.Children))
	for i, child := range root.Children {
		dt, err := ArrowType(child)
		if err != nil {
			return nil, bridgeerrors.Wrap(err, bridgeerrors.ErrorTypeTranslation,
				fmt.Sprintf("field %s", root.FieldNames[i]))
		}
		fields[i] = arrow.Field{Name: root.FieldNames[i], Type: dt, Nullable: true}
	}

	return arrow.NewSchema(fields, nil), nil
}

// ArrowType translates one source type descriptor into the corresponding
// Arrow data type, recursing into children for composite kinds.
func ArrowType(desc *orc.TypeDescriptor) (arrow.DataType, error) {
	switch desc.Kind {
	case orc.BOOLEAN:
		return arrow.FixedWidthTypes.Boolean, nil
	case orc.BYTE:
		return arrow.PrimitiveTypes.Int8, nil
	case orc.SHORT:
		return arrow.PrimitiveTypes.Int16, nil
	case orc.INT:
		return arrow.PrimitiveTypes.Int32, nil
	case orc.LONG:
		return arrow.PrimitiveTypes.Int64, nil
	case orc.FLOAT:
		return arrow.PrimitiveTypes.Float32, nil
	case orc.DOUBLE:
		return arrow.PrimitiveTypes.Float64, nil
	case orc.STRING, orc.VARCHAR, orc.CHAR:
		return arrow.BinaryTypes.String, nil
	case orc.BINARY:
		return arrow.BinaryTypes.Binary, nil
	case orc.DATE:
		return arrow.FixedWidthTypes.Date32, nil
	case orc.TIMESTAMP:
		return arrow.FixedWidthTypes.Timestamp_ns, nil

	case orc.DECIMAL:
		if desc.Precision == 0 || desc.Precision > maxDecimalPrecision {
			return nil, bridgeerrors.Newf(bridgeerrors.ErrorTypeTranslation,
				"decimal precision %d outside [1, %d]", desc.Precision, maxDecimalPrecision)
		}
		if desc.Scale > desc.Precision {
			return nil, bridgeerrors.Newf(bridgeerrors.ErrorTypeTranslation,
				"decimal scale %d exceeds precision %d", desc.Scale, desc.Precision)
		}
		return &arrow.Decimal128Type{
			Precision: int32(desc.Precision),
			Scale:     int32(desc.Scale),
		}, nil

	case orc.LIST:
		elem, err := ArrowType(desc.Children[0])
		if err != nil {
			return nil, err
		}
		return arrow.ListOf(elem), nil

	case orc.MAP:
		key, err := ArrowType(desc.Children[0])
		if err != nil {
			return nil, err
		}
		item, err := ArrowType(desc.Children[1])
		if err != nil {
			return nil, err
		}
		return arrow.MapOf(key, item), nil

	case orc.STRUCT:
		fields := make([]arrow.Field, len(desc.Children))
		for i, child := range desc.Children {
			dt, err := ArrowType(child)
			if err != nil {
				return nil, err
			}
			fields[i] = arrow.Field{Name: desc.FieldNames[i], Type: dt, Nullable: true}
		}
		return arrow.StructOf(fields...), nil

	case orc.UNION:
		fields := make([]arrow.Field, len(desc.Children))
		codes := make([]arrow.UnionTypeCode, len(desc.Children))
		for i, child := range desc.Children {
			dt, err := ArrowType(child)
			if err != nil {
				return nil, err
			}
			fields[i] = arrow.Field{Name: fmt.Sprintf("_union_%d", i), Type: dt, Nullable: true}
			codes[i] = arrow.UnionTypeCode(i)
		}
		return arrow.DenseUnionOf(fields, codes), nil

	default:
		return nil, bridgeerrors.Newf(bridgeerrors.ErrorTypeTranslation,
			"no arrow mapping for source type %s", desc.Kind)
	}
}
