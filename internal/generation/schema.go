package generation

import (
	"github.com/invopop/jsonschema"
)

// Schema returns the JSON Schema of GenerationRequest. Clients use it to run
// the same field checks as Validate before submitting.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference: true,
	}
	s := r.Reflect(&GenerationRequest{})
	s.Title = "GenerationRequest"
	return s
}
