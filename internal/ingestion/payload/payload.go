// Package payload decodes documentation search payloads. A payload is the
// file a documentation generator writes next to the rendered site: a JSON
// array of records, an object of the form {"docs": [...]}, or either of those
// wrapped in a JavaScript assignment such as
//
//	var documenterSearchIndex = {"docs": [...]}
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/validator"
)

const schemaURL = "docsearch://payload.schema.json"

// Record fields are nullable here; emptiness of location and page is
// reported by validator.ValidateEntries with friendlier messages.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["docs"],
  "properties": {
    "docs": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "location": {"type": ["string", "null"]},
          "page":     {"type": ["string", "null"]},
          "title":    {"type": ["string", "null"]},
          "text":     {"type": ["string", "null"]},
          "category": {"type": ["string", "null"]}
        }
      }
    }
  }
}`

var jsWrapper = regexp.MustCompile(`(?s)^(?:(?:var|let|const)\s+)?[A-Za-z_$][\w$.]*\s*=\s*(.*?)\s*;?\s*$`)

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing payload schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("adding payload schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compiling payload schema: %w", err)
	}
	return schema, nil
})

var printer = message.NewPrinter(language.English)

// Decode parses data into raw records. Every structural problem, including
// malformed JSON, is reported as a *validator.ValidationError.
func Decode(data []byte) ([]ingestion.RawEntry, error) {
	body := Unwrap(data)
	if len(body) == 0 {
		return nil, &validator.ValidationError{Fields: map[string]string{
			"docs": "payload is empty",
		}}
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, &validator.ValidationError{Fields: map[string]string{
			"docs": fmt.Sprintf("payload is not valid JSON: %v", err),
		}}
	}

	bare := false
	switch v := instance.(type) {
	case []any:
		bare = true
		instance = map[string]any{"docs": v}
	case map[string]any:
		if _, ok := v["docs"]; !ok {
			return nil, &validator.ValidationError{Fields: map[string]string{
				"docs": "payload must be a sequence of records or an object with a docs sequence",
			}}
		}
	default:
		return nil, &validator.ValidationError{Fields: map[string]string{
			"docs": "payload must be a sequence of records",
		}}
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(instance); err != nil {
		verr := &validator.ValidationError{}
		if schemaErr, ok := err.(*jsonschema.ValidationError); ok {
			collectSchemaErrors(schemaErr, verr)
		}
		if verr.Empty() {
			verr.Add("docs", err.Error())
		}
		return nil, verr
	}

	var raws []ingestion.RawEntry
	if bare {
		if err := json.Unmarshal(body, &raws); err != nil {
			return nil, fmt.Errorf("decoding records: %w", err)
		}
	} else {
		var env ingestion.Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decoding records: %w", err)
		}
		raws = env.Docs
	}
	if raws == nil {
		raws = []ingestion.RawEntry{}
	}

	if err := validator.ValidateEntries(raws); err != nil {
		return nil, err
	}
	return raws, nil
}

// Unwrap strips a JavaScript assignment around a JSON document and returns
// the JSON text. Input that is already JSON is returned trimmed.
func Unwrap(data []byte) []byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] == '[' || trimmed[0] == '{' {
		return trimmed
	}
	if m := jsWrapper.FindSubmatch(trimmed); m != nil {
		return m[1]
	}
	return trimmed
}

func collectSchemaErrors(err *jsonschema.ValidationError, verr *validator.ValidationError) {
	if len(err.Causes) == 0 {
		msg := "invalid value"
		if err.ErrorKind != nil {
			msg = err.ErrorKind.LocalizedString(printer)
		}
		verr.Add(instancePath(err.InstanceLocation), msg)
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, verr)
	}
}

// instancePath renders ["docs","3","page"] as docs[3].page.
func instancePath(loc []string) string {
	if len(loc) == 0 {
		return "docs"
	}
	var b strings.Builder
	for i, seg := range loc {
		if _, err := strconv.Atoi(seg); err == nil && i > 0 {
			b.WriteString("[" + seg + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}
