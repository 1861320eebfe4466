package adapter

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/orcbridge/pkg/bridgeerrors"
	"github.com/ajitpratap0/orcbridge/pkg/orc"
)

func TestArrowTypePrimitives(t *testing.T) {
	cases := []struct {
		desc *orc.TypeDescriptor
		want arrow.DataType
	}{
		{orc.NewPrimitive(orc.BOOLEAN), arrow.FixedWidthTypes.Boolean},
		{orc.NewPrimitive(orc.BYTE), arrow.PrimitiveTypes.Int8},
		{orc.NewPrimitive(orc.SHORT), arrow.PrimitiveTypes.Int16},
		{orc.NewPrimitive(orc.INT), arrow.PrimitiveTypes.Int32},
		{orc.NewPrimitive(orc.LONG), arrow.PrimitiveTypes.Int64},
		{orc.NewPrimitive(orc.FLOAT), arrow.PrimitiveTypes.Float32},
		{orc.NewPrimitive(orc.DOUBLE), arrow.PrimitiveTypes.Float64},
		{orc.NewPrimitive(orc.STRING), arrow.BinaryTypes.String},
		{orc.NewVarchar(64), arrow.BinaryTypes.String},
		{orc.NewChar(8), arrow.BinaryTypes.String},
		{orc.NewPrimitive(orc.BINARY), arrow.BinaryTypes.Binary},
		{orc.NewPrimitive(orc.DATE), arrow.FixedWidthTypes.Date32},
		{orc.NewPrimitive(orc.TIMESTAMP), arrow.FixedWidthTypes.Timestamp_ns},
	}

	for _, tc := range cases {
		t.Run(tc.desc.String(), func(t *testing.T) {
			got, err := ArrowType(tc.desc)
			require.NoError(t, err)
			assert.True(t, arrow.TypeEqual(tc.want, got), "want %s, got %s", tc.want, got)
		})
	}
}

func TestArrowTypeDecimal(t *testing.T) {
	got, err := ArrowType(orc.NewDecimal(10, 2))
	require.NoError(t, err)

	dec, ok := got.(*arrow.Decimal128Type)
	require.True(t, ok)
	assert.Equal(t, int32(10), dec.Precision)
	assert.Equal(t, int32(2), dec.Scale)

	_, err = ArrowType(orc.NewDecimal(40, 2))
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsType(err, bridgeerrors.ErrorTypeTranslation))

	_, err = ArrowType(orc.NewDecimal(10, 12))
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsType(err, bridgeerrors.ErrorTypeTranslation))
}

func TestArrowTypeComposites(t *testing.T) {
	list, err := ArrowType(orc.NewList(orc.NewPrimitive(orc.INT)))
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(arrow.ListOf(arrow.PrimitiveTypes.Int32), list))

	m, err := ArrowType(orc.NewMap(orc.NewPrimitive(orc.STRING), orc.NewPrimitive(orc.LONG)))
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(arrow.MapOf(arrow.BinaryTypes.String, arrow.PrimitiveTypes.Int64), m))

	st, err := ArrowType(orc.NewStruct(
		[]string{"a", "b", "c"},
		[]*orc.TypeDescriptor{
			orc.NewPrimitive(orc.BOOLEAN),
			orc.NewPrimitive(orc.DOUBLE),
			orc.NewPrimitive(orc.STRING),
		},
	))
	require.NoError(t, err)
	want := arrow.StructOf(
		arrow.Field{Name: "a", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
		arrow.Field{Name: "b", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		arrow.Field{Name: "c", Type: arrow.BinaryTypes.String, Nullable: true},
	)
	assert.True(t, arrow.TypeEqual(want, st), "want %s, got %s", want, st)

	u, err := ArrowType(orc.NewUnion(orc.NewPrimitive(orc.INT), orc.NewPrimitive(orc.STRING)))
	require.NoError(t, err)
	du, ok := u.(*arrow.DenseUnionType)
	require.True(t, ok)
	require.Len(t, du.Fields(), 2)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int32, du.Fields()[0].Type))
	assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, du.Fields()[1].Type))
	assert.Equal(t, []arrow.UnionTypeCode{0, 1}, du.TypeCodes())
}

func TestArrowTypeNestedComposite(t *testing.T) {
	// map<string, list<decimal(10,2)>> exercises recursion through every
	// level of the tree.
	desc := orc.NewMap(orc.NewPrimitive(orc.STRING), orc.NewList(orc.NewDecimal(10, 2)))

	got, err := ArrowType(desc)
	require.NoError(t, err)
	want := arrow.MapOf(
		arrow.BinaryTypes.String,
		arrow.ListOf(&arrow.Decimal128Type{Precision: 10, Scale: 2}),
	)
	assert.True(t, arrow.TypeEqual(want, got), "want %s, got %s", want, got)
}

func TestArrowSchema(t *testing.T) {
	root := orc.NewStruct(
		[]string{"id", "name", "tags"},
		[]*orc.TypeDescriptor{
			orc.NewPrimitive(orc.LONG),
			orc.NewPrimitive(orc.STRING),
			orc.NewList(orc.NewPrimitive(orc.STRING)),
		},
	)

	schema, err := ArrowSchema(root)
	require.NoError(t, err)
	require.Len(t, schema.Fields(), 3)
	assert.Equal(t, "id", schema.Field(0).Name)
	assert.True(t, schema.Field(0).Nullable)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, schema.Field(0).Type))
	assert.True(t, arrow.TypeEqual(arrow.ListOf(arrow.BinaryTypes.String), schema.Field(2).Type))
}

func TestArrowSchemaAllOrNothing(t *testing.T) {
	// One bad field aborts the whole schema.
	root := orc.NewStruct(
		[]string{"ok", "bad"},
		[]*orc.TypeDescriptor{
			orc.NewPrimitive(orc.LONG),
			orc.NewDecimal(99, 0),
		},
	)

	schema, err := ArrowSchema(root)
	require.Error(t, err)
	assert.Nil(t, schema)
	assert.True(t, bridgeerrors.IsType(err, bridgeerrors.ErrorTypeTranslation))
	assert.Contains(t, err.Error(), "bad")
}

func TestArrowSchemaRejectsNonStructRoot(t *testing.T) {
	_, err := ArrowSchema(nil)
	require.Error(t, err)

	_, err = ArrowSchema(orc.NewPrimitive(orc.LONG))
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsType(err, bridgeerrors.ErrorTypeTranslation))
}
