package drafts

import (
	"encoding/json"
	"fmt"

	apperr "onboard/internal/errors"
	"onboard/internal/intake"

	"github.com/xeipuuv/gojsonschema"
)

const maxFieldLength = 500

// fieldsSchema accepts an object of known field keys with string values.
var fieldsSchema = func() *gojsonschema.Schema {
	props := make(map[string]interface{}, len(intake.FieldKeys))
	for _, k := range intake.FieldKeys {
		props[k] = map[string]interface{}{"type": "string", "maxLength": maxFieldLength}
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(map[string]interface{}{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}))
	if err != nil {
		panic(fmt.Sprintf("drafts: invalid fields schema: %v", err))
	}
	return schema
}()

// DecodeFields validates a raw JSON fields patch and decodes it.
func DecodeFields(raw []byte) (map[string]string, error) {
	result, err := fieldsSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, apperr.Validation(map[string]string{intake.KeyForm: "Request body must be a JSON object"})
	}
	if !result.Valid() {
		errs := make(map[string]string, len(result.Errors()))
		for _, e := range result.Errors() {
			key := e.Field()
			if key == "(root)" {
				key = intake.KeyForm
				if p, ok := e.Details()["property"].(string); ok {
					key = p
				}
			}
			if _, seen := errs[key]; !seen {
				errs[key] = e.Description()
			}
		}
		return nil, apperr.Validation(errs)
	}

	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, apperr.Validation(map[string]string{intake.KeyForm: "Request body must be a JSON object"})
	}
	return fields, nil
}
