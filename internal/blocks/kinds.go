// internal/blocks/kinds.go
package blocks

/*
 * Block grammar.
 *
 * Every discriminated block is described by one row of the grammar table:
 * the category it belongs to, the fields that must be present and the
 * fields that may be present. Validation checks required fields, collapse
 * keeps exactly required+optional (plus _type), and the resolver switches
 * over the same constants.
 *
 * Discriminators are disjoint across categories, so a single table keyed by
 * _type serves every category. Undiscriminated shapes (Position, Size,
 * Inventory, ItemStack, NodeAction, Entry, MethodType) live in a second
 * table keyed by shape name.
 */

// Kind is a block category.
type Kind int

const (
	KindString Kind = iota + 1
	KindNumber
	KindBoolean
	KindArray
	KindDictionary
	KindObject
	KindState
	KindAction
	KindReference
	KindType
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindArray:
		return "array"
	case KindDictionary:
		return "dictionary"
	case KindObject:
		return "object"
	case KindState:
		return "state"
	case KindAction:
		return "action"
	case KindReference:
		return "reference"
	case KindType:
		return "type"
	default:
		return "unknown"
	}
}

// Reference discriminators, valid in every category.
const (
	TypeMethod     = "method"
	TypeProperty   = "property"
	TypeGetContext = "getContext"
	TypeGetObject  = "getObject"
	TypeTernary    = "ternary"
)

// Value discriminators.
const (
	TypeConcat = "concat"

	TypeAddition    = "addition"
	TypeSubtraction = "subtraction"
	TypeRandom      = "random"
	TypeRandomInt   = "randomInt"

	TypeEquals             = "equals"
	TypeNotEquals          = "notEquals"
	TypeLessThan           = "lessThan"
	TypeLessThanOrEqual    = "lessThanOrEqual"
	TypeGreaterThan        = "greaterThan"
	TypeGreaterThanOrEqual = "greaterThanOrEqual"
	TypeAll                = "all"
	TypeAny                = "any"
	TypeNone               = "none"
	TypeContextExists      = "contextExists"
	TypePropertyExists     = "propertyExists"

	TypeFilter = "filter"
	TypeMap    = "map"
	TypeKeys   = "keys"
	TypeValues = "values"

	TypeCreateDictionary = "createDictionary"
)

// Action discriminators.
const (
	ActionBranch              = "branch"
	ActionForEach             = "forEach"
	ActionRepeat              = "repeat"
	ActionWait                = "wait"
	ActionAddItemsToInventory = "addItemsToInventory"
	ActionSetData             = "setData"
	ActionAddNode             = "addNode"
	ActionRemoveNode          = "removeNode"
	ActionEvent               = "event"
	ActionError               = "error"
	ActionReturn              = "@return"
	ActionBreak               = "@break"
)

// Type descriptor discriminators.
const (
	SchemaDictionary = "dictionary"
	SchemaArray      = "array"
	SchemaObject     = "object"
	SchemaNumber     = "number"
	SchemaBoolean    = "boolean"
	SchemaString     = "string"
	SchemaID         = "id"
	SchemaItemStack  = "itemStack"
	SchemaAction     = "action"
)

// Undiscriminated shapes.
const (
	ShapeEntry      = "entry"
	ShapePosition   = "position"
	ShapeSize       = "size"
	ShapeInventory  = "inventory"
	ShapeItemStack  = "itemStack"
	ShapeNodeAction = "nodeAction"
	ShapeMethodType = "methodType"
)

type form struct {
	kind     Kind
	required []string
	optional []string
}

var schemaOptional = []string{"default", "internal"}

var grammar = map[string]form{
	TypeMethod:     {KindReference, []string{"object", "method"}, []string{"params"}},
	TypeProperty:   {KindReference, []string{"object", "property"}, nil},
	TypeGetContext: {KindReference, []string{"id"}, nil},
	TypeGetObject:  {KindReference, []string{"id"}, nil},
	TypeTernary:    {KindReference, []string{"condition", "true", "false"}, nil},

	TypeConcat: {KindString, []string{"operands"}, nil},

	TypeAddition:    {KindNumber, []string{"operands"}, nil},
	TypeSubtraction: {KindNumber, []string{"operands"}, nil},
	TypeRandom:      {KindNumber, []string{"min", "max"}, nil},
	TypeRandomInt:   {KindNumber, []string{"min", "max"}, nil},

	TypeEquals:             {KindBoolean, []string{"operands"}, nil},
	TypeNotEquals:          {KindBoolean, []string{"operands"}, nil},
	TypeLessThan:           {KindBoolean, []string{"operands"}, nil},
	TypeLessThanOrEqual:    {KindBoolean, []string{"operands"}, nil},
	TypeGreaterThan:        {KindBoolean, []string{"operands"}, nil},
	TypeGreaterThanOrEqual: {KindBoolean, []string{"operands"}, nil},
	TypeAll:                {KindBoolean, []string{"operands"}, nil},
	TypeAny:                {KindBoolean, []string{"operands"}, nil},
	TypeNone:               {KindBoolean, []string{"operands"}, nil},
	TypeContextExists:      {KindBoolean, []string{"object"}, nil},
	TypePropertyExists:     {KindBoolean, []string{"object", "property"}, nil},

	TypeFilter: {KindArray, []string{"array", "condition"}, nil},
	TypeMap:    {KindArray, []string{"array", "value"}, nil},
	TypeKeys:   {KindArray, []string{"dictionary"}, nil},
	TypeValues: {KindArray, []string{"dictionary"}, nil},

	TypeCreateDictionary: {KindDictionary, []string{"entries"}, nil},

	ActionBranch:              {KindAction, []string{"condition"}, []string{"true", "false"}},
	ActionForEach:             {KindAction, []string{"array", "forEach"}, nil},
	ActionRepeat:              {KindAction, []string{"iterations", "run"}, nil},
	ActionWait:                {KindAction, []string{"duration"}, []string{"node"}},
	ActionAddItemsToInventory: {KindAction, []string{"node", "items"}, nil},
	ActionSetData:             {KindAction, []string{"object", "key", "value"}, nil},
	ActionAddNode:             {KindAction, []string{"nodeType", "pos"}, []string{"data"}},
	ActionRemoveNode:          {KindAction, []string{"node"}, nil},
	ActionEvent:               {KindAction, []string{"event"}, []string{"data"}},
	ActionError:               {KindAction, []string{"message"}, nil},
	ActionReturn:              {KindAction, nil, []string{"value"}},
	ActionBreak:               {KindAction, nil, nil},

	SchemaDictionary: {KindType, []string{"keyType", "valueType"}, schemaOptional},
	SchemaArray:      {KindType, []string{"elementType"}, schemaOptional},
	SchemaObject:     {KindType, []string{"properties"}, schemaOptional},
	SchemaNumber:     {KindType, nil, schemaOptional},
	SchemaBoolean:    {KindType, nil, schemaOptional},
	SchemaString:     {KindType, nil, schemaOptional},
	SchemaID:         {KindType, []string{"of"}, schemaOptional},
	SchemaItemStack:  {KindType, nil, schemaOptional},
	SchemaAction:     {KindType, nil, schemaOptional},
}

var shapes = map[string]form{
	ShapeEntry:      {required: []string{"key", "value"}},
	ShapePosition:   {required: []string{"x", "y"}},
	ShapeSize:       {required: []string{"width", "height"}},
	ShapeInventory:  {required: []string{"slots"}, optional: []string{"canPlayerExtract", "canPlayerInsert"}},
	ShapeItemStack:  {required: []string{"item", "quantity"}},
	ShapeNodeAction: {required: []string{"display", "duration", "run"}, optional: []string{"cost", "tooltip"}},
	ShapeMethodType: {required: []string{"run"}, optional: []string{"params", "returns"}},
}

// KindOf reports the category a discriminator belongs to.
func KindOf(discriminator string) (Kind, bool) {
	f, ok := grammar[discriminator]
	return f.kind, ok
}

// Fields returns the whitelist of a discriminated block, including _type.
// Returns nil for unknown discriminators.
func Fields(discriminator string) []string {
	f, ok := grammar[discriminator]
	if !ok {
		return nil
	}
	out := append([]string{"_type"}, f.required...)
	return append(out, f.optional...)
}

// ShapeFields returns the whitelist of an undiscriminated shape.
func ShapeFields(shape string) []string {
	f, ok := shapes[shape]
	if !ok {
		return nil
	}
	out := append([]string{}, f.required...)
	return append(out, f.optional...)
}
