// Package ast extracts type and member declarations from source files. The
// extracted entities are plain data; the loader package links them into a
// descriptor graph.
package ast

// CodeEntityType classifies a code entity.
type CodeEntityType string

const (
	TypeFile        CodeEntityType = "file"
	TypeClass       CodeEntityType = "class"
	TypeInterface   CodeEntityType = "interface"
	TypeEnum        CodeEntityType = "enum"
	TypeRecord      CodeEntityType = "record"
	TypeConstructor CodeEntityType = "constructor"
	TypeField       CodeEntityType = "field"
	TypeMethod      CodeEntityType = "method"
)

// IsType reports whether entities of this type declare members.
func (t CodeEntityType) IsType() bool {
	switch t {
	case TypeClass, TypeInterface, TypeEnum, TypeRecord:
		return true
	}
	return false
}

// IsMember reports whether entities of this type are declared inside a type.
func (t CodeEntityType) IsMember() bool {
	switch t {
	case TypeConstructor, TypeField, TypeMethod:
		return true
	}
	return false
}

// Visibility is the access level of a declaration.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityProtected Visibility = "protected"
	VisibilityPackage   Visibility = "package"
	VisibilityPrivate   Visibility = "private"
)
