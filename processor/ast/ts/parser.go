// Package ts extracts class and interface declarations from TypeScript
// sources using tree-sitter.
//
// TypeScript has no packages, so a file's module path stands in for one:
// src/shop/order.ts declares its types under "src.shop.order". Relative
// imports are resolved to module paths of the same form; bare imports keep
// the module specifier, e.g. "rxjs.Observable".
package ts

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/c360studio/semarch/processor/ast"
)

func init() {
	ast.DefaultRegistry.Register("typescript",
		[]string{".ts", ".tsx", ".mts", ".cts"},
		func(repoRoot string) ast.FileParser {
			return NewParser(repoRoot)
		})
}

// Parser extracts code entities from TypeScript source files
type Parser struct {
	repoRoot string
}

// NewParser creates a new TypeScript parser
func NewParser(repoRoot string) *Parser {
	return &Parser{repoRoot: repoRoot}
}

// ParseFile parses a single TypeScript file and extracts code entities
func (p *Parser) ParseFile(ctx context.Context, filePath string) (*ast.ParseResult, error) {
	// Check context before starting
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

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

// ParseSource parses TypeScript source that lives at relPath.
func (p *Parser) ParseSource(ctx context.Context, relPath string, content []byte) (*ast.ParseResult, error) {
	parser := sitter.NewParser()
	if strings.HasSuffix(relPath, ".tsx") {
		parser.SetLanguage(tsx.GetLanguage())
	} else {
		parser.SetLanguage(typescript.GetLanguage())
	}

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	defer tree.Close()

	// Check context after parsing
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	hash := ast.ComputeHash(content)
	module := modulePath(relPath)

	fileEntity := ast.NewCodeEntity(ast.TypeFile, relPath, relPath)
	fileEntity.Hash = hash
	fileEntity.Language = "typescript"
	fileEntity.Package = module
	fileEntity.StartLine = 1
	fileEntity.EndLine = countLines(content)

	s := &scope{
		parser:  p,
		content: content,
		path:    relPath,
		module:  module,
		imports: make(map[string]string),
		spaces:  make(map[string]string),
		local:   make(map[string]bool),
		result: &ast.ParseResult{
			FileEntity: fileEntity,
			Entities:   []*ast.CodeEntity{fileEntity},
			Imports:    make([]string, 0),
			Package:    module,
			Path:       relPath,
			Hash:       hash,
		},
	}

	root := tree.RootNode()
	s.collectImports(root)
	s.collectLocalTypes(root)
	fileEntity.Imports = s.result.Imports

	for i := 0; i < int(root.NamedChildCount()); i++ {
		s.extractStatement(root.NamedChild(i), nil)
	}

	return s.result, nil
}

// scope holds per-file parsing state.
type scope struct {
	parser  *Parser
	content []byte
	path    string
	module  string
	imports map[string]string // local binding → qualified name
	spaces  map[string]string // namespace import binding → module
	local   map[string]bool   // types declared in this file
	result  *ast.ParseResult
}

func (s *scope) text(n *sitter.Node) string { return n.Content(s.content) }

// collectImports records import bindings and the list of imported modules.
func (s *scope) collectImports(root *sitter.Node) {
	seen := make(map[string]bool)
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		if stmt.Type() != "import_statement" {
			continue
		}
		source := stmt.ChildByFieldName("source")
		if source == nil {
			continue
		}
		module := s.parser.resolveModule(s.path, strings.Trim(s.text(source), `'"`))
		if !seen[module] {
			seen[module] = true
			s.result.Imports = append(s.result.Imports, module)
		}

		clause := firstChildOfType(stmt, "import_clause")
		if clause == nil {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			child := clause.NamedChild(j)
			switch child.Type() {
			case "identifier":
				// Default imports are bound by their local name
				s.imports[s.text(child)] = module + "." + s.text(child)
			case "namespace_import":
				if id := firstChildOfType(child, "identifier"); id != nil {
					s.spaces[s.text(id)] = module
				}
			case "named_imports":
				for k := 0; k < int(child.NamedChildCount()); k++ {
					spec := child.NamedChild(k)
					if spec.Type() != "import_specifier" {
						continue
					}
					name := spec.ChildByFieldName("name")
					if name == nil {
						continue
					}
					binding := name
					if alias := spec.ChildByFieldName("alias"); alias != nil {
						binding = alias
					}
					s.imports[s.text(binding)] = module + "." + s.text(name)
				}
			}
		}
	}
}

// collectLocalTypes records the names of top-level types so forward
// references resolve to this module.
func (s *scope) collectLocalTypes(root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		decl := unwrapExport(root.NamedChild(i))
		if decl == nil {
			continue
		}
		switch decl.Type() {
		case "class_declaration", "abstract_class_declaration", "interface_declaration", "enum_declaration":
			if name := decl.ChildByFieldName("name"); name != nil {
				s.local[s.text(name)] = true
			}
		}
	}
}

// unwrapExport returns the declaration inside an export statement, or the
// node itself.
func unwrapExport(n *sitter.Node) *sitter.Node {
	if n.Type() != "export_statement" {
		return n
	}
	return n.ChildByFieldName("declaration")
}

// extractStatement extracts a top-level declaration. Decorators written
// before "export" are passed in.
func (s *scope) extractStatement(node *sitter.Node, decorators []string) {
	if node.Type() == "export_statement" {
		decl := node.ChildByFieldName("declaration")
		if decl == nil {
			return
		}
		var modifiers []string
		if hasKeyword(node, "default") {
			modifiers = append(modifiers, "default")
		}
		entity := s.extractType(decl, s.decorators(node))
		if entity != nil {
			entity.Visibility = ast.VisibilityPublic
			entity.Modifiers = append([]string{"export"}, append(modifiers, entity.Modifiers...)...)
		}
		return
	}
	s.extractType(node, decorators)
}

// extractType extracts a class, interface or enum and its members.
func (s *scope) extractType(node *sitter.Node, decorators []string) *ast.CodeEntity {
	var kind ast.CodeEntityType
	switch node.Type() {
	case "class_declaration", "abstract_class_declaration":
		kind = ast.TypeClass
	case "interface_declaration":
		kind = ast.TypeInterface
	case "enum_declaration":
		kind = ast.TypeEnum
	default:
		return nil
	}

	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	entity := ast.NewCodeEntity(kind, s.module+"."+s.text(nameNode), s.path)
	entity.Language = "typescript"
	entity.Package = s.module
	entity.StartLine = int(node.StartPoint().Row) + 1
	entity.EndLine = int(node.EndPoint().Row) + 1
	entity.ContainedBy = s.result.FileEntity.ID
	entity.Imports = s.result.Imports
	entity.Annotations = append(decorators, s.decorators(node)...)

	if node.Type() == "abstract_class_declaration" {
		entity.Modifiers = append(entity.Modifiers, "abstract")
	}
	if kind == ast.TypeEnum && hasKeyword(node, "const") {
		entity.Modifiers = append(entity.Modifiers, "const")
	}

	s.result.Entities = append(s.result.Entities, entity)
	s.result.FileEntity.Contains = append(s.result.FileEntity.Contains, entity.ID)

	switch kind {
	case ast.TypeClass:
		s.extractHeritage(node, entity)
		if body := node.ChildByFieldName("body"); body != nil {
			s.extractClassBody(body, entity)
		}
	case ast.TypeInterface:
		if clause := firstChildOfType(node, "extends_type_clause"); clause != nil {
			for i := 0; i < int(clause.NamedChildCount()); i++ {
				entity.Extends = append(entity.Extends, s.typeName(clause.NamedChild(i)))
			}
		}
		if body := node.ChildByFieldName("body"); body != nil {
			s.extractInterfaceBody(body, entity)
		}
	case ast.TypeEnum:
		if body := node.ChildByFieldName("body"); body != nil {
			s.extractEnumBody(body, entity)
		}
	}
	return entity
}

// extractHeritage reads a class's extends and implements clauses.
func (s *scope) extractHeritage(node *sitter.Node, entity *ast.CodeEntity) {
	heritage := firstChildOfType(node, "class_heritage")
	if heritage == nil {
		return
	}
	for i := 0; i < int(heritage.NamedChildCount()); i++ {
		clause := heritage.NamedChild(i)
		switch clause.Type() {
		case "extends_clause":
			if value := clause.ChildByFieldName("value"); value != nil {
				entity.Extends = append(entity.Extends, s.resolve(s.text(value)))
			}
		case "implements_clause":
			for j := 0; j < int(clause.NamedChildCount()); j++ {
				entity.Implements = append(entity.Implements, s.typeName(clause.NamedChild(j)))
			}
		}
	}
}

// extractClassBody extracts constructors, methods and fields. Method
// decorators are siblings preceding the method in the class body.
func (s *scope) extractClassBody(body *sitter.Node, owner *ast.CodeEntity) {
	var pending []string
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		switch child.Type() {
		case "decorator":
			pending = append(pending, s.decoratorName(child))
			continue
		case "comment":
			continue
		case "method_definition":
			if member := s.extractMethod(child, owner); member != nil {
				member.Annotations = append(pending, member.Annotations...)
				s.addMember(owner, member)
				if member.Type == ast.TypeConstructor {
					s.extractParameterProperties(child, owner)
				}
			}
		case "abstract_method_signature":
			if member := s.extractMethod(child, owner); member != nil {
				member.Modifiers = addModifier(member.Modifiers, "abstract")
				s.addMember(owner, member)
			}
		case "public_field_definition":
			if field := s.extractField(child, owner); field != nil {
				s.addMember(owner, field)
			}
		}
		pending = nil
	}
}

// extractInterfaceBody extracts property and method signatures. Interface
// members are public; methods are abstract.
func (s *scope) extractInterfaceBody(body *sitter.Node, owner *ast.CodeEntity) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		switch child.Type() {
		case "property_signature":
			if field := s.extractField(child, owner); field != nil {
				s.addMember(owner, field)
			}
		case "method_signature":
			if method := s.extractMethod(child, owner); method != nil {
				method.Modifiers = addModifier(method.Modifiers, "abstract")
				s.addMember(owner, method)
			}
		}
	}
}

// extractEnumBody adds every enum member as a public static readonly field.
func (s *scope) extractEnumBody(body *sitter.Node, owner *ast.CodeEntity) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		var nameNode *sitter.Node
		switch child.Type() {
		case "property_identifier", "string":
			nameNode = child
		case "enum_assignment":
			nameNode = child.ChildByFieldName("name")
		}
		if nameNode == nil {
			continue
		}
		name := strings.Trim(s.text(nameNode), `'"`)

		field := ast.NewCodeEntity(ast.TypeField, ast.MemberID(owner.ID, name, nil), s.path)
		field.StartLine = int(child.StartPoint().Row) + 1
		field.EndLine = int(child.EndPoint().Row) + 1
		field.ValueType = owner.ID
		field.Modifiers = []string{"public", "static", "readonly"}
		field.Visibility = ast.VisibilityPublic
		s.addMember(owner, field)
	}
}

// extractMethod extracts a method, or a constructor when the method is
// named "constructor".
func (s *scope) extractMethod(node *sitter.Node, owner *ast.CodeEntity) *ast.CodeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := s.text(nameNode)

	kind := ast.TypeMethod
	if name == "constructor" && owner.Type == ast.TypeClass {
		kind = ast.TypeConstructor
		name = simpleName(owner.ID)
	}

	params := s.parameters(node.ChildByFieldName("parameters"))
	member := ast.NewCodeEntity(kind, ast.MemberID(owner.ID, name, params), s.path)
	member.Language = "typescript"
	member.StartLine = int(node.StartPoint().Row) + 1
	member.EndLine = int(node.EndPoint().Row) + 1
	member.Parameters = params
	member.Modifiers = s.modifiers(node, nameNode)
	member.Annotations = s.decorators(node)
	if visibility(member.Modifiers) == ast.VisibilityPackage {
		member.Modifiers = append([]string{"public"}, member.Modifiers...)
	}

	if kind == ast.TypeMethod {
		if returnType := node.ChildByFieldName("return_type"); returnType != nil {
			member.ValueType = s.typeName(returnType)
		}
	}
	member.Visibility = visibility(member.Modifiers)
	return member
}

// extractField extracts a class field or interface property. Members are
// public unless marked otherwise.
func (s *scope) extractField(node *sitter.Node, owner *ast.CodeEntity) *ast.CodeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	field := ast.NewCodeEntity(ast.TypeField, ast.MemberID(owner.ID, s.text(nameNode), nil), s.path)
	field.Language = "typescript"
	field.StartLine = int(node.StartPoint().Row) + 1
	field.EndLine = int(node.EndPoint().Row) + 1
	field.Modifiers = s.modifiers(node, nameNode)
	field.Annotations = s.decorators(node)
	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		field.ValueType = s.typeName(typeNode)
	}
	if visibility(field.Modifiers) == ast.VisibilityPackage {
		field.Modifiers = append([]string{"public"}, field.Modifiers...)
	}
	field.Visibility = visibility(field.Modifiers)
	return field
}

// extractParameterProperties adds a field for every constructor parameter
// declared with an access modifier or readonly.
func (s *scope) extractParameterProperties(ctor *sitter.Node, owner *ast.CodeEntity) {
	params := ctor.ChildByFieldName("parameters")
	if params == nil {
		return
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		param := params.NamedChild(i)
		if param.Type() != "required_parameter" && param.Type() != "optional_parameter" {
			continue
		}
		pattern := param.ChildByFieldName("pattern")
		if pattern == nil || pattern.Type() != "identifier" {
			continue
		}
		modifiers := s.modifiers(param, pattern)
		if len(modifiers) == 0 {
			continue
		}
		if visibility(modifiers) == ast.VisibilityPackage {
			modifiers = append([]string{"public"}, modifiers...)
		}

		field := ast.NewCodeEntity(ast.TypeField, ast.MemberID(owner.ID, s.text(pattern), nil), s.path)
		field.Language = "typescript"
		field.StartLine = int(param.StartPoint().Row) + 1
		field.EndLine = int(param.EndPoint().Row) + 1
		field.Modifiers = modifiers
		field.Annotations = s.decorators(param)
		field.Visibility = visibility(modifiers)
		if typeNode := param.ChildByFieldName("type"); typeNode != nil {
			field.ValueType = s.typeName(typeNode)
		}
		s.addMember(owner, field)
	}
}

func (s *scope) addMember(owner, member *ast.CodeEntity) {
	member.ContainedBy = owner.ID
	member.Package = s.module
	owner.Contains = append(owner.Contains, member.ID)
	s.result.Entities = append(s.result.Entities, member)
}

// modifiers returns the modifier keywords written before name. Members
// without an accessibility modifier carry none; callers add the default.
func (s *scope) modifiers(node, name *sitter.Node) []string {
	var modifiers []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.StartByte() >= name.StartByte() {
			break
		}
		switch child.Type() {
		case "accessibility_modifier":
			modifiers = append(modifiers, s.text(child))
		case "override_modifier":
			modifiers = append(modifiers, "override")
		case "static", "readonly", "async", "abstract", "declare", "get", "set":
			if !child.IsNamed() {
				modifiers = append(modifiers, child.Type())
			}
		}
	}
	if name.Type() == "private_property_identifier" {
		modifiers = addModifier(modifiers, "private")
	}
	return modifiers
}

// decorators returns the resolved names of a node's decorator children.
func (s *scope) decorators(node *sitter.Node) []string {
	var names []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child.Type() == "decorator" {
			names = append(names, s.decoratorName(child))
		}
	}
	return names
}

// decoratorName resolves @Name, @Name(...) and @ns.Name(...).
func (s *scope) decoratorName(decorator *sitter.Node) string {
	if decorator.NamedChildCount() == 0 {
		return ""
	}
	expr := decorator.NamedChild(0)
	if expr.Type() == "call_expression" {
		if fn := expr.ChildByFieldName("function"); fn != nil {
			expr = fn
		}
	}
	return s.resolve(s.text(expr))
}

// parameters returns the resolved parameter types. Untyped parameters are
// "any". The result is never nil.
func (s *scope) parameters(params *sitter.Node) []string {
	types := make([]string, 0)
	if params == nil {
		return types
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		param := params.NamedChild(i)
		if param.Type() != "required_parameter" && param.Type() != "optional_parameter" {
			continue
		}
		typeName := "any"
		if typeNode := param.ChildByFieldName("type"); typeNode != nil {
			typeName = s.typeName(typeNode)
		}
		if pattern := param.ChildByFieldName("pattern"); pattern != nil && pattern.Type() == "rest_pattern" && !strings.HasSuffix(typeName, "[]") {
			typeName += "[]"
		}
		types = append(types, typeName)
	}
	return types
}

// typeName returns the resolved name of a type node. Type arguments are
// dropped; composite types are kept as written.
func (s *scope) typeName(n *sitter.Node) string {
	switch n.Type() {
	case "type_annotation":
		if n.NamedChildCount() > 0 {
			return s.typeName(n.NamedChild(0))
		}
	case "generic_type":
		if name := n.ChildByFieldName("name"); name != nil {
			return s.typeName(name)
		}
	case "array_type":
		if n.NamedChildCount() > 0 {
			return s.typeName(n.NamedChild(0)) + "[]"
		}
	case "type_identifier", "nested_type_identifier", "identifier", "member_expression":
		return s.resolve(s.text(n))
	}
	return s.text(n)
}

// resolve qualifies a type name: imports first, then namespace imports,
// then types declared in this file. Anything else, such as a global or a
// builtin, is kept as written.
func (s *scope) resolve(name string) string {
	if q, ok := s.imports[name]; ok {
		return q
	}
	if head, rest, ok := strings.Cut(name, "."); ok {
		if module, ok := s.spaces[head]; ok {
			return module + "." + rest
		}
		if q, ok := s.imports[head]; ok {
			return q + "." + rest
		}
	}
	if s.local[name] {
		return s.module + "." + name
	}
	return name
}

// resolveModule turns an import specifier into a module path. Relative
// specifiers are resolved against the importing file and probed for an
// index file; bare specifiers are kept.
func (p *Parser) resolveModule(fromPath, specifier string) string {
	if !strings.HasPrefix(specifier, "./") && !strings.HasPrefix(specifier, "../") {
		return specifier
	}
	target := path.Clean(path.Join(path.Dir(fromPath), specifier))
	switch path.Ext(target) {
	case ".ts", ".tsx", ".js", ".jsx", ".mjs":
		target = strings.TrimSuffix(target, path.Ext(target))
	}

	for _, ext := range []string{".ts", ".tsx", ".d.ts"} {
		if fileExists(filepath.Join(p.repoRoot, filepath.FromSlash(target+ext))) {
			return modulePath(target + ext)
		}
	}
	for _, ext := range []string{".ts", ".tsx"} {
		index := target + "/index" + ext
		if fileExists(filepath.Join(p.repoRoot, filepath.FromSlash(index))) {
			return modulePath(index)
		}
	}
	return modulePath(target)
}

// modulePath converts a slash-separated file path to a dotted module path.
func modulePath(relPath string) string {
	relPath = strings.TrimSuffix(relPath, ".d.ts")
	relPath = strings.TrimSuffix(relPath, path.Ext(relPath))
	return strings.ReplaceAll(strings.TrimPrefix(relPath, "./"), "/", ".")
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// visibility maps TypeScript modifiers to a visibility.
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
		found := false
		for _, existing := range modifiers {
			if existing == m {
				found = true
				break
			}
		}
		if !found {
			modifiers = append(modifiers, m)
		}
	}
	return modifiers
}

func simpleName(id string) string {
	return id[strings.LastIndex(id, ".")+1:]
}

func firstChildOfType(n *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == nodeType {
			return child
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

// countLines counts the total number of lines in content
func countLines(content []byte) int {
	count := 1
	for _, b := range content {
		if b == '\n' {
			count++
		}
	}
	return count
}
