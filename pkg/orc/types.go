// Package orc provides the source-side model for the ORC bridge: the type
// descriptor tree, hive-style decoded column vector batches, and a
// simplified stripe-oriented file codec used by the CLI and tests.
//
// The adapter consumes this package through the SourceReader and
// BatchProducer interfaces only; anything able to produce TypeDescriptor
// trees and Batch values can stand in for the file codec.
package orc

import (
	"fmt"
	"strings"
)

// TypeKind identifies an ORC type category.
type TypeKind uint32

const (
	BOOLEAN TypeKind = iota
	BYTE
	SHORT
	INT
	LONG
	FLOAT
	DOUBLE
	STRING
	DATE
	VARCHAR
	CHAR
	BINARY
	DECIMAL
	TIMESTAMP
	LIST
	MAP
	STRUCT
	UNION
)

var kindNames = map[TypeKind]string{
	BOOLEAN:   "boolean",
	BYTE:      "tinyint",
	SHORT:     "smallint",
	INT:       "int",
	LONG:      "bigint",
	FLOAT:     "float",
	DOUBLE:    "double",
	STRING:    "string",
	DATE:      "date",
	VARCHAR:   "varchar",
	CHAR:      "char",
	BINARY:    "binary",
	DECIMAL:   "decimal",
	TIMESTAMP: "timestamp",
	LIST:      "list",
	MAP:       "map",
	STRUCT:    "struct",
	UNION:     "uniontype",
}

// String returns the Hive-style name of the kind.
func (k TypeKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint32(k))
}

// IsComposite reports whether the kind carries child types.
func (k TypeKind) IsComposite() bool {
	switch k {
	case LIST, MAP, STRUCT, UNION:
		return true
	default:
		return false
	}
}

// TypeDescriptor is one node of a source type tree. Descriptors are built
// once when a file is opened and are immutable afterwards; they may be read
// from multiple goroutines.
type TypeDescriptor struct {
	Kind TypeKind

	// FieldNames names the children of a STRUCT, in declared order.
	FieldNames []string
	// Children holds the child descriptors of a composite kind: the element
	// type of a LIST, key then value of a MAP, the fields of a STRUCT, or
	// the variants of a UNION.
	Children []*TypeDescriptor

	// MaxLength is the declared length of CHAR/VARCHAR, zero otherwise.
	MaxLength uint32
	// Precision and Scale describe a DECIMAL, zero otherwise.
	Precision uint32
	Scale     uint32
}

// NewPrimitive returns a descriptor for a childless kind.
func NewPrimitive(kind TypeKind) *TypeDescriptor {
	return &TypeDescriptor{Kind: kind}
}

// NewDecimal returns a decimal(precision, scale) descriptor.
func NewDecimal(precision, scale uint32) *TypeDescriptor {
	return &TypeDescriptor{Kind: DECIMAL, Precision: precision, Scale: scale}
}

// NewVarchar returns a varchar(maxLength) descriptor.
func NewVarchar(maxLength uint32) *TypeDescriptor {
	return &TypeDescriptor{Kind: VARCHAR, MaxLength: maxLength}
}

// NewChar returns a char(maxLength) descriptor.
func NewChar(maxLength uint32) *TypeDescriptor {
	return &TypeDescriptor{Kind: CHAR, MaxLength: maxLength}
}

// NewList returns a list<element> descriptor.
func NewList(element *TypeDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Kind: LIST, Children: []*TypeDescriptor{element}}
}

// NewMap returns a map<key, value> descriptor.
func NewMap(key, value *TypeDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Kind: MAP, Children: []*TypeDescriptor{key, value}}
}

// NewStruct returns a struct descriptor with the given field names and
// types. It panics if the slices differ in length; schemas are constructed
// by readers, not from user input.
func NewStruct(names []string, types []*TypeDescriptor) *TypeDescriptor {
	if len(names) != len(types) {
		panic(fmt.Sprintf("orc: struct with %d names but %d types", len(names), len(types)))
	}
	return &TypeDescriptor{Kind: STRUCT, FieldNames: names, Children: types}
}

// NewUnion returns a union descriptor with the variants in declared tag
// order.
func NewUnion(variants ...*TypeDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Kind: UNION, Children: variants}
}

// String renders the descriptor in Hive type syntax, e.g.
// struct<id:bigint,tags:list<string>>.
func (t *TypeDescriptor) String() string {
	switch t.Kind {
	case DECIMAL:
		return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
	case VARCHAR:
		return fmt.Sprintf("varchar(%d)", t.MaxLength)
	case CHAR:
		return fmt.Sprintf("char(%d)", t.MaxLength)
	case LIST:
		return fmt.Sprintf("list<%s>", t.Children[0])
	case MAP:
		return fmt.Sprintf("map<%s,%s>", t.Children[0], t.Children[1])
	case STRUCT:
		var sb strings.Builder
		sb.WriteString("struct<")
		for i, name := range t.FieldNames {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(name)
			sb.WriteByte(':')
			sb.WriteString(t.Children[i].String())
		}
		sb.WriteByte('>')
		return sb.String()
	case UNION:
		var sb strings.Builder
		sb.WriteString("uniontype<")
		for i, child := range t.Children {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(child.String())
		}
		sb.WriteByte('>')
		return sb.String()
	default:
		return t.Kind.String()
	}
}
