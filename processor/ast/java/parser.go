// Package java extracts Java type and member declarations using tree-sitter.
package java

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/c360studio/semarch/processor/ast"
)

func init() {
	ast.DefaultRegistry.Register("java", []string{".java"},
		func(repoRoot string) ast.FileParser {
			return NewParser(repoRoot)
		})
}

// Parser extracts code entities from Java source files.
// A Parser wraps a tree-sitter parser and must not be shared between
// goroutines.
type Parser struct {
	repoRoot string
	parser   *sitter.Parser
}

// NewParser creates a new Java parser.
func NewParser(repoRoot string) *Parser {
	p := sitter.NewParser()
	p.SetLanguage(java.GetLanguage())
	return &Parser{
		repoRoot: repoRoot,
		parser:   p,
	}
}

// ParseFile parses a single Java file and extracts code entities.
func (p *Parser) ParseFile(ctx context.Context, filePath string) (*ast.ParseResult, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	relPath, err := filepath.Rel(p.repoRoot, filePath)
	if err != nil {
		relPath = filePath
	}

	return p.ParseSource(ctx, filepath.ToSlash(relPath), content)
}

// ParseSource parses Java source held in memory. relPath is recorded as the
// entities' path.
func (p *Parser) ParseSource(ctx context.Context, relPath string, content []byte) (*ast.ParseResult, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse file: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	hash := ast.ComputeHash(content)

	s := &scope{
		content: content,
		path:    relPath,
		imports: make(map[string]string),
		local:   make(map[string]string),
	}
	s.pkg = s.packageName(root)
	s.collectImports(root)
	s.collectLocalTypes(root, s.pkg)

	fileEntity := ast.NewCodeEntity(ast.TypeFile, relPath, relPath)
	fileEntity.Package = s.pkg
	fileEntity.Hash = hash
	fileEntity.Language = "java"
	fileEntity.Imports = s.importList
	fileEntity.StartLine = 1
	fileEntity.EndLine = int(root.EndPoint().Row) + 1

	s.result = &ast.ParseResult{
		FileEntity: fileEntity,
		Entities:   []*ast.CodeEntity{fileEntity},
		Imports:    s.importList,
		Package:    s.pkg,
		Path:       relPath,
		Hash:       hash,
	}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		if entity := s.extractType(root.NamedChild(i), s.pkg, ""); entity != nil {
			entity.ContainedBy = fileEntity.ID
			fileEntity.Contains = append(fileEntity.Contains, entity.ID)
		}
	}

	return s.result, nil
}

// scope holds per-file state while walking a syntax tree.
type scope struct {
	content    []byte
	path       string
	pkg        string
	imports    map[string]string // simple name → qualified name
	importList []string
	local      map[string]string // simple name → qualified name of types declared in this file
	result     *ast.ParseResult
}

func (s *scope) text(n *sitter.Node) string {
	return string(s.content[n.StartByte():n.EndByte()])
}

// packageName extracts the package name from the file.
func (s *scope) packageName(root *sitter.Node) string {
	if decl := childOfType(root, "package_declaration"); decl != nil {
		if name := firstChildOfType(decl, "scoped_identifier", "identifier"); name != nil {
			return s.text(name)
		}
	}
	return ""
}

// collectImports records single-type imports for name resolution. Static and
// on-demand imports are only listed; on-demand imports keep their ".*" so
// the loader can resolve through them once every file is known.
func (s *scope) collectImports(root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		decl := root.NamedChild(i)
		if decl.Type() != "import_declaration" {
			continue
		}
		name := firstChildOfType(decl, "scoped_identifier", "identifier")
		if name == nil {
			continue
		}
		qualified := s.text(name)
		if childOfType(decl, "asterisk") != nil {
			s.importList = append(s.importList, qualified+".*")
			continue
		}
		s.importList = append(s.importList, qualified)
		if hasKeyword(decl, "static") {
			continue
		}
		s.imports[qualified[strings.LastIndex(qualified, ".")+1:]] = qualified
	}
}

// collectLocalTypes maps the simple name of every type declared in the file,
// nested types included, to its qualified name.
func (s *scope) collectLocalTypes(n *sitter.Node, prefix string) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if _, ok := typeKinds[child.Type()]; !ok {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		qualified := qualify(prefix, s.text(nameNode))
		if _, exists := s.local[s.text(nameNode)]; !exists {
			s.local[s.text(nameNode)] = qualified
		}
		if body := child.ChildByFieldName("body"); body != nil {
			s.collectLocalTypes(body, qualified)
			if decls := childOfType(body, "enum_body_declarations"); decls != nil {
				s.collectLocalTypes(decls, qualified)
			}
		}
	}
}

var typeKinds = map[string]ast.CodeEntityType{
	"class_declaration":     ast.TypeClass,
	"interface_declaration": ast.TypeInterface,
	"enum_declaration":      ast.TypeEnum,
	"record_declaration":    ast.TypeRecord,
}

// extractType extracts a type declaration and everything declared in it.
// It returns nil when node is not a type declaration.
func (s *scope) extractType(node *sitter.Node, prefix, outerKind string) *ast.CodeEntity {
	kind, ok := typeKinds[node.Type()]
	if !ok {
		return nil
	}
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	entity := ast.NewCodeEntity(kind, qualify(prefix, s.text(nameNode)), s.path)
	entity.Package = s.pkg
	entity.Language = "java"
	entity.StartLine = int(node.StartPoint().Row) + 1
	entity.EndLine = int(node.EndPoint().Row) + 1
	entity.Modifiers, entity.Annotations = s.modifiers(node)
	// Members of interfaces are implicitly public
	if outerKind == string(ast.TypeInterface) {
		entity.Modifiers = addModifier(entity.Modifiers, "public")
	}
	entity.Visibility = visibility(entity.Modifiers)

	switch kind {
	case ast.TypeClass:
		if superclass := childOfType(node, "superclass"); superclass != nil && superclass.NamedChildCount() > 0 {
			entity.Extends = []string{s.typeName(superclass.NamedChild(0))}
		}
		entity.Implements = s.typeList(childOfType(node, "super_interfaces"))
	case ast.TypeInterface:
		entity.Extends = s.typeList(childOfType(node, "extends_interfaces"))
	case ast.TypeEnum, ast.TypeRecord:
		entity.Implements = s.typeList(childOfType(node, "super_interfaces"))
	}

	s.result.Entities = append(s.result.Entities, entity)

	if kind == ast.TypeRecord {
		s.extractRecordComponents(node, entity)
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return entity
	}
	if kind == ast.TypeEnum {
		s.extractEnumConstants(body, entity)
		if decls := childOfType(body, "enum_body_declarations"); decls != nil {
			s.extractBody(decls, entity)
		}
		return entity
	}
	s.extractBody(body, entity)
	return entity
}

// extractBody extracts the members and nested types of a type body.
func (s *scope) extractBody(body *sitter.Node, owner *ast.CodeEntity) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)

		switch child.Type() {
		case "field_declaration", "constant_declaration":
			for _, field := range s.extractFields(child, owner) {
				s.addMember(owner, field)
			}

		case "method_declaration":
			if method := s.extractMethod(child, owner); method != nil {
				s.addMember(owner, method)
			}

		case "constructor_declaration", "compact_constructor_declaration":
			if ctor := s.extractConstructor(child, owner); ctor != nil {
				s.addMember(owner, ctor)
			}

		default:
			if nested := s.extractType(child, owner.ID, string(owner.Type)); nested != nil {
				nested.ContainedBy = owner.ID
				owner.Contains = append(owner.Contains, nested.ID)
			}
		}
	}
}

func (s *scope) addMember(owner, member *ast.CodeEntity) {
	member.ContainedBy = owner.ID
	member.Package = s.pkg
	member.Language = "java"
	member.Visibility = visibility(member.Modifiers)
	owner.Contains = append(owner.Contains, member.ID)
	s.result.Entities = append(s.result.Entities, member)
}

// extractFields extracts one field entity per declarator.
func (s *scope) extractFields(node *sitter.Node, owner *ast.CodeEntity) []*ast.CodeEntity {
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return nil
	}
	typeName := s.typeName(typeNode)
	modifiers, annotations := s.modifiers(node)
	if owner.Type == ast.TypeInterface {
		modifiers = addModifier(modifiers, "public", "static", "final")
	}

	var fields []*ast.CodeEntity
	for i := 0; i < int(node.NamedChildCount()); i++ {
		declarator := node.NamedChild(i)
		if declarator.Type() != "variable_declarator" {
			continue
		}
		nameNode := declarator.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}

		field := ast.NewCodeEntity(ast.TypeField, ast.MemberID(owner.ID, s.text(nameNode), nil), s.path)
		field.StartLine = int(node.StartPoint().Row) + 1
		field.EndLine = int(node.EndPoint().Row) + 1
		field.ValueType = typeName
		field.Modifiers = append([]string(nil), modifiers...)
		field.Annotations = append([]string(nil), annotations...)
		fields = append(fields, field)
	}
	return fields
}

// extractEnumConstants adds every enum constant as a public static final field.
func (s *scope) extractEnumConstants(body *sitter.Node, owner *ast.CodeEntity) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		constant := body.NamedChild(i)
		if constant.Type() != "enum_constant" {
			continue
		}
		nameNode := constant.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}

		field := ast.NewCodeEntity(ast.TypeField, ast.MemberID(owner.ID, s.text(nameNode), nil), s.path)
		field.StartLine = int(constant.StartPoint().Row) + 1
		field.EndLine = int(constant.EndPoint().Row) + 1
		field.ValueType = owner.ID
		field.Modifiers = []string{"public", "static", "final"}
		_, field.Annotations = s.modifiers(constant)
		s.addMember(owner, field)
	}
}

// extractRecordComponents adds every record component as a private final field.
func (s *scope) extractRecordComponents(node *sitter.Node, owner *ast.CodeEntity) {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		param := params.NamedChild(i)
		if param.Type() != "formal_parameter" {
			continue
		}
		typeNode := param.ChildByFieldName("type")
		nameNode := param.ChildByFieldName("name")
		if typeNode == nil || nameNode == nil {
			continue
		}

		field := ast.NewCodeEntity(ast.TypeField, ast.MemberID(owner.ID, s.text(nameNode), nil), s.path)
		field.StartLine = int(param.StartPoint().Row) + 1
		field.EndLine = int(param.EndPoint().Row) + 1
		field.ValueType = s.typeName(typeNode)
		field.Modifiers = []string{"private", "final"}
		_, field.Annotations = s.modifiers(param)
		s.addMember(owner, field)
	}
}

// extractMethod extracts a method entity.
func (s *scope) extractMethod(node *sitter.Node, owner *ast.CodeEntity) *ast.CodeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	params := s.parameters(node.ChildByFieldName("parameters"))
	method := ast.NewCodeEntity(ast.TypeMethod, ast.MemberID(owner.ID, s.text(nameNode), params), s.path)
	method.StartLine = int(node.StartPoint().Row) + 1
	method.EndLine = int(node.EndPoint().Row) + 1
	method.Parameters = params
	method.Modifiers, method.Annotations = s.modifiers(node)

	if returnType := node.ChildByFieldName("type"); returnType != nil {
		method.ValueType = s.typeName(returnType)
	}

	if owner.Type == ast.TypeInterface && !method.HasModifier("private") {
		method.Modifiers = addModifier(method.Modifiers, "public")
		if node.ChildByFieldName("body") == nil {
			method.Modifiers = addModifier(method.Modifiers, "abstract")
		}
	}
	return method
}

// extractConstructor extracts a constructor entity. Compact record
// constructors take the record components as parameters.
func (s *scope) extractConstructor(node *sitter.Node, owner *ast.CodeEntity) *ast.CodeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	params := s.parameters(node.ChildByFieldName("parameters"))
	if node.Type() == "compact_constructor_declaration" {
		params = params[:0]
		for _, field := range s.result.Members(owner.ID) {
			if field.Type == ast.TypeField && !field.HasModifier("static") {
				params = append(params, field.ValueType)
			}
		}
	}

	ctor := ast.NewCodeEntity(ast.TypeConstructor, ast.MemberID(owner.ID, s.text(nameNode), params), s.path)
	ctor.StartLine = int(node.StartPoint().Row) + 1
	ctor.EndLine = int(node.EndPoint().Row) + 1
	ctor.Parameters = params
	ctor.Modifiers, ctor.Annotations = s.modifiers(node)
	return ctor
}

// parameters returns the resolved parameter types. Varargs are rendered
// as arrays. The result is never nil, so an empty list still marks a
// method or constructor.
func (s *scope) parameters(params *sitter.Node) []string {
	types := make([]string, 0)
	if params == nil {
		return types
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		param := params.NamedChild(i)
		switch param.Type() {
		case "formal_parameter":
			if typeNode := param.ChildByFieldName("type"); typeNode != nil {
				types = append(types, s.typeName(typeNode))
			}
		case "spread_parameter":
			for j := 0; j < int(param.NamedChildCount()); j++ {
				child := param.NamedChild(j)
				if child.Type() != "modifiers" {
					types = append(types, s.typeName(child)+"[]")
					break
				}
			}
		}
	}
	return types
}

// modifiers splits a declaration's modifiers node into keywords and
// resolved annotation names.
func (s *scope) modifiers(node *sitter.Node) (keywords, annotations []string) {
	mods := childOfType(node, "modifiers")
	if mods == nil {
		return nil, nil
	}
	for i := 0; i < int(mods.ChildCount()); i++ {
		child := mods.Child(i)
		switch child.Type() {
		case "marker_annotation", "annotation":
			if name := child.ChildByFieldName("name"); name != nil {
				annotations = append(annotations, s.resolve(s.text(name)))
			}
		default:
			if !child.IsNamed() {
				if kw := strings.TrimSpace(s.text(child)); kw != "" {
					keywords = append(keywords, kw)
				}
			}
		}
	}
	return keywords, annotations
}

// typeList resolves the types listed under a super_interfaces or
// extends_interfaces node.
func (s *scope) typeList(node *sitter.Node) []string {
	if node == nil {
		return nil
	}
	list := childOfType(node, "type_list")
	if list == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(list.NamedChildCount()); i++ {
		if name := s.typeName(list.NamedChild(i)); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// typeName renders a type node as a resolved name, dropping type arguments.
func (s *scope) typeName(node *sitter.Node) string {
	if node == nil {
		return ""
	}

	switch node.Type() {
	case "type_identifier", "scoped_type_identifier":
		return s.resolve(s.text(node))

	case "generic_type":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() != "type_arguments" {
				return s.typeName(child)
			}
		}

	case "array_type":
		if elem := node.ChildByFieldName("element"); elem != nil {
			dims := strings.Count(s.text(node), "[")
			return s.typeName(elem) + strings.Repeat("[]", dims)
		}

	case "annotated_type":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() != "marker_annotation" && child.Type() != "annotation" {
				return s.typeName(child)
			}
		}

	default:
		// Primitive and void types
		return strings.TrimSpace(s.text(node))
	}

	return ""
}

// resolve maps a type name as written to a qualified name: names declared
// in this file first, then single-type imports, then java.lang, and finally
// the current package.
func (s *scope) resolve(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || primitives[name] {
		return name
	}

	if i := strings.Index(name, "."); i >= 0 {
		head, rest := name[:i], name[i:]
		if q, ok := s.local[head]; ok {
			return q + rest
		}
		if q, ok := s.imports[head]; ok {
			return q + rest
		}
		return name
	}

	if q, ok := s.local[name]; ok {
		return q
	}
	if q, ok := s.imports[name]; ok {
		return q
	}
	if javaLang[name] {
		return "java.lang." + name
	}
	return qualify(s.pkg, name)
}

func qualify(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func visibility(modifiers []string) ast.Visibility {
	for _, m := range modifiers {
		switch m {
		case "public":
			return ast.VisibilityPublic
		case "protected":
			return ast.VisibilityProtected
		case "private":
			return ast.VisibilityPrivate
		}
	}
	return ast.VisibilityPackage
}

func addModifier(modifiers []string, add ...string) []string {
	for _, m := range add {
		present := false
		for _, existing := range modifiers {
			if existing == m {
				present = true
				break
			}
		}
		if !present {
			modifiers = append(modifiers, m)
		}
	}
	return modifiers
}

func childOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == typ {
			return child
		}
	}
	return nil
}

func firstChildOfType(n *sitter.Node, types ...string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		for _, typ := range types {
			if child.Type() == typ {
				return child
			}
		}
	}
	return nil
}

func hasKeyword(n *sitter.Node, keyword string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); !child.IsNamed() && child.Type() == keyword {
			return true
		}
	}
	return false
}

var primitives = map[string]bool{
	"boolean": true, "byte": true, "char": true, "short": true,
	"int": true, "long": true, "float": true, "double": true, "void": true,
}

var javaLang = map[string]bool{
	"Object": true, "String": true, "Class": true, "Enum": true, "Record": true,
	"Boolean": true, "Byte": true, "Character": true, "Short": true, "Integer": true,
	"Long": true, "Float": true, "Double": true, "Void": true, "Number": true,
	"CharSequence": true, "Comparable": true, "Cloneable": true, "Iterable": true,
	"Runnable": true, "AutoCloseable": true, "Thread": true,
	"Throwable": true, "Exception": true, "RuntimeException": true, "Error": true,
	"IllegalArgumentException": true, "IllegalStateException": true,
	"Override": true, "Deprecated": true, "FunctionalInterface": true,
	"SuppressWarnings": true, "SafeVarargs": true,
}
