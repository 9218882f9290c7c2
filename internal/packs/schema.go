// internal/packs/schema.go
package packs

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

/*
 * Structural schemas.
 *
 * These check only what the loader needs before it can look inside a pack
 * or entity: the envelope is a mapping with a display name, each category
 * is a mapping, and each entity carries its required top-level fields.
 * Block-level validation belongs to the collapser.
 */

const envelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["display"]
}`

const categorySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object"
}`

const itemSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["display"]
}`

const nodeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["display", "size"]
}`

const listenerSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": ["array", "object"]
}`

var schemas = struct {
	envelope, category, entity, item, node, listener *jsonschema.Schema
}{
	envelope: jsonschema.MustCompileString("envelope.json", envelopeSchema),
	category: jsonschema.MustCompileString("category.json", categorySchema),
	entity:   jsonschema.MustCompileString("entity.json", categorySchema),
	item:     jsonschema.MustCompileString("item.json", itemSchema),
	node:     jsonschema.MustCompileString("node.json", nodeSchema),
	listener: jsonschema.MustCompileString("listener.json", listenerSchema),
}
