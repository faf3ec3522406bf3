// Package ast implements the packed, byte-addressed AST described by spec
// §3.5 and §4.3: a flat buffer of tagged, variable-length nodes connected
// by relative "skip" offsets instead of pointers, used as the intermediate
// form between internal/parser and internal/compiler.
package ast

// Tag identifies an AST node's grammar production. The high bit of the
// byte actually stored in the buffer is reserved to flag "a varint line
// number follows this byte" (spec §3.5); Tag itself never carries that bit.
type Tag uint8

const (
	Nop Tag = iota

	// statements / program structure
	Script
	Block
	ExprStmt
	Empty
	VarDecl  // one `var name = init` binding; its VarNext skip points at itself
	FuncDecl // function declaration or expression; Inline = name (may be "")
	If
	While
	DoWhile
	For
	ForIn
	Break
	Continue
	Return
	Throw
	Try
	Switch
	Case // one switch clause; Inline-less, first subtree is the test (Nop for default)
	With // subtrees = with-object expression, body statement

	// expressions
	Ident
	NumberLit
	StringLit
	BoolLit
	NullLit
	UndefinedLit
	ThisExpr
	RegexpLit
	ArrayLit
	ObjectLit
	ObjectProp // object literal member: Inline = key, subtree = value
	Call
	New
	Member // a.b ; Inline = property name, subtree = object
	Index  // a[b] ; subtrees = object, key
	Unary  // Inline = operator text ("-", "typeof", ...); subtree = operand
	Update // ++/-- ; Inline[0] = operator code, Inline[1] = 1 if prefix
	Binary // Inline = operator text ("+", "===", ...); subtrees = left, right
	Logical
	Assign      // Inline = operator text ("=", "+=", ...); subtrees = target, value
	Conditional // ternary; subtrees = test, consequent, alternate
	Sequence    // comma operator; open-ended children
	maxTag
)

// Descriptor is the static shape of one tag, per spec §3.5: whether a
// varint-prefixed inline byte blob follows the skip table, how many skip
// slots are reserved, how many fixed subtrees follow, and whether an
// open-ended (variable-length) child sequence follows those, terminated by
// the node's End skip.
type Descriptor struct {
	HasInline   bool
	NumSkips    int // always includes the End skip as slot 0
	NumSubtrees int
	OpenEnded   bool
}

// Role-specific skip slot indices, named per spec §3.5 ("var_next",
// "if_true_end", "for_body", "do_while_cond", "try_catch", "try_finally",
// "switch_default"). Slot 0 is always End; it is never named individually
// per tag because every descriptor reserves it uniformly, which is what
// lets skip_tree (Tree.End) work without per-tag knowledge.
const (
	SkipEnd = 0

	SkipVarNext       = 1 // VarDecl, FuncDecl
	SkipFuncBody      = 2 // FuncDecl: end of the parameter-name run, start of body
	SkipIfTrueEnd     = 1 // If
	SkipForBody       = 1 // For, ForIn
	SkipDoWhileCond   = 1 // DoWhile
	SkipTryCatch      = 1 // Try
	SkipTryFinally    = 2 // Try
	SkipSwitchDefault = 1 // Switch
)

var descriptors = [maxTag]Descriptor{
	Nop:          {NumSkips: 1},
	Script:       {NumSkips: 2, OpenEnded: true},
	Block:        {NumSkips: 1, OpenEnded: true},
	ExprStmt:     {NumSkips: 1, NumSubtrees: 1},
	Empty:        {NumSkips: 1},
	VarDecl:      {HasInline: true, NumSkips: 2, NumSubtrees: 1},
	FuncDecl:     {HasInline: true, NumSkips: 3, OpenEnded: true},
	If:           {NumSkips: 2, NumSubtrees: 1, OpenEnded: true},
	While:        {NumSkips: 1, NumSubtrees: 2},
	DoWhile:      {NumSkips: 2, NumSubtrees: 2},
	For:          {NumSkips: 2, NumSubtrees: 4},
	ForIn:        {NumSkips: 2, NumSubtrees: 3},
	Break:        {NumSkips: 1},
	Continue:     {NumSkips: 1},
	Return:       {NumSkips: 1, NumSubtrees: 1},
	Throw:        {NumSkips: 1, NumSubtrees: 1},
	Try:          {NumSkips: 3, OpenEnded: true},
	Switch:       {NumSkips: 2, NumSubtrees: 1, OpenEnded: true},
	Case:         {NumSkips: 1, NumSubtrees: 1, OpenEnded: true},
	With:         {NumSkips: 1, NumSubtrees: 2},
	Ident:        {HasInline: true, NumSkips: 1},
	NumberLit:    {HasInline: true, NumSkips: 1},
	StringLit:    {HasInline: true, NumSkips: 1},
	BoolLit:      {HasInline: true, NumSkips: 1},
	NullLit:      {NumSkips: 1},
	UndefinedLit: {NumSkips: 1},
	ThisExpr:     {NumSkips: 1},
	RegexpLit:    {HasInline: true, NumSkips: 1},
	ArrayLit:     {NumSkips: 1, OpenEnded: true},
	ObjectLit:    {NumSkips: 1, OpenEnded: true},
	ObjectProp:   {HasInline: true, NumSkips: 1, NumSubtrees: 1},
	Call:         {NumSkips: 1, NumSubtrees: 1, OpenEnded: true},
	New:          {NumSkips: 1, NumSubtrees: 1, OpenEnded: true},
	Member:       {HasInline: true, NumSkips: 1, NumSubtrees: 1},
	Index:        {NumSkips: 1, NumSubtrees: 2},
	Unary:        {HasInline: true, NumSkips: 1, NumSubtrees: 1},
	Update:       {HasInline: true, NumSkips: 1, NumSubtrees: 1},
	Binary:       {HasInline: true, NumSkips: 1, NumSubtrees: 2},
	Logical:      {HasInline: true, NumSkips: 1, NumSubtrees: 2},
	Assign:       {HasInline: true, NumSkips: 1, NumSubtrees: 2},
	Conditional:  {NumSkips: 1, NumSubtrees: 3},
	Sequence:     {NumSkips: 1, OpenEnded: true},
}

// Describe returns the static descriptor for tag.
func Describe(tag Tag) Descriptor {
	if tag >= maxTag {
		return Descriptor{}
	}
	return descriptors[tag]
}

//go:generate stringer -type=Tag
func (t Tag) String() string {
	names := [...]string{
		"Nop", "Script", "Block", "ExprStmt", "Empty", "VarDecl", "FuncDecl",
		"If", "While", "DoWhile", "For", "ForIn", "Break", "Continue",
		"Return", "Throw", "Try", "Switch", "Case", "With", "Ident", "NumberLit",
		"StringLit", "BoolLit", "NullLit", "UndefinedLit", "ThisExpr",
		"RegexpLit", "ArrayLit", "ObjectLit", "ObjectProp", "Call", "New",
		"Member", "Index", "Unary", "Update", "Binary", "Logical", "Assign",
		"Conditional", "Sequence",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "Tag(?)"
}
