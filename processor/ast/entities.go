package ast

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// CodeEntity is a declaration extracted from a source file.
type CodeEntity struct {
	// ID identifies the entity across a repository.
	// Types use their qualified name (com.acme.Order), fields use
	// Owner#name and constructors and methods use Owner#name(ParamTypes).
	// File entities use their relative path.
	ID string

	Type CodeEntityType

	// Name is the simple identifier.
	Name string

	// Path is the file path relative to the repository root
	Path string

	Package  string
	Language string

	Visibility Visibility

	// Location in source
	StartLine int
	EndLine   int

	// Content hash for change detection (file entities only)
	Hash string

	// Modifier keywords as written, access modifiers included
	Modifiers []string

	// Annotation names, resolved to qualified names where imports allow
	Annotations []string

	// Structure
	ContainedBy string
	Contains    []string
	Imports     []string

	// Supertypes, resolved to qualified names. For classes Extends holds
	// at most one entry; for interfaces it holds the extended interfaces.
	Extends    []string
	Implements []string

	// ValueType is the field type or method return type.
	ValueType string

	// Parameters are the parameter type names of methods and constructors.
	Parameters []string

	IndexedAt time.Time
}

// NewCodeEntity creates an entity with the given ID. The simple name is
// derived from the ID.
func NewCodeEntity(entityType CodeEntityType, id, path string) *CodeEntity {
	return &CodeEntity{
		ID:         id,
		Type:       entityType,
		Name:       nameFromID(id, entityType),
		Path:       path,
		Visibility: VisibilityPackage,
		IndexedAt:  time.Now(),
	}
}

// MemberID builds the ID of a member declared on owner. A nil params slice
// denotes a field.
func MemberID(owner, name string, params []string) string {
	if params == nil {
		return owner + "#" + name
	}
	return owner + "#" + name + "(" + strings.Join(params, ",") + ")"
}

func nameFromID(id string, entityType CodeEntityType) string {
	if entityType == TypeFile {
		if i := strings.LastIndex(id, "/"); i >= 0 {
			return id[i+1:]
		}
		return id
	}
	if i := strings.LastIndex(id, "#"); i >= 0 {
		name := id[i+1:]
		if j := strings.Index(name, "("); j >= 0 {
			name = name[:j]
		}
		return name
	}
	return id[strings.LastIndex(id, ".")+1:]
}

// HasModifier reports whether the entity declares the modifier keyword.
func (e *CodeEntity) HasModifier(modifier string) bool {
	for _, m := range e.Modifiers {
		if m == modifier {
			return true
		}
	}
	return false
}

// ComputeHash computes a SHA256 hash of the given content
func ComputeHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:8]) // First 8 bytes for brevity
}

// ParseResult holds the results of parsing one source file
type ParseResult struct {
	// FileEntity is the entity representing the file itself
	FileEntity *CodeEntity

	// Entities are the file entity followed by every declaration, types
	// before the members they contain
	Entities []*CodeEntity

	Imports []string
	Package string
	Path    string
	Hash    string
}

// Types returns the type declarations in source order, nested types included.
func (r *ParseResult) Types() []*CodeEntity {
	var types []*CodeEntity
	for _, e := range r.Entities {
		if e.Type.IsType() {
			types = append(types, e)
		}
	}
	return types
}

// Members returns the members declared directly on the type with the given
// ID, in source order.
func (r *ParseResult) Members(typeID string) []*CodeEntity {
	var members []*CodeEntity
	for _, e := range r.Entities {
		if e.Type.IsMember() && e.ContainedBy == typeID {
			members = append(members, e)
		}
	}
	return members
}
