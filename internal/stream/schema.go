package stream

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed streams-schema.json
var streamsSchema json.RawMessage

var streamsSchemaLoader = gojsonschema.NewBytesLoader(streamsSchema)

// validateDocument checks the top-level shape of the streams document:
// a mapping with a `streams` sequence. Per-entry validation is done in
// code, so a single bad declaration does not fail the whole document.
func validateDocument(doc map[string]any) error {
	schema, err := gojsonschema.NewSchema(streamsSchemaLoader)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return err
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}

	return errors.New(strings.Join(msgs, "; "))
}
