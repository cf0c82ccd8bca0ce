package handlers

import (
	"regexp"

	"github.com/xeipuuv/gojsonschema"
)

// Job ids name the output directory, so they are held to one safe path element
const jobIDPattern = "^[A-Za-z0-9_-]{1,64}$"

var validJobID = regexp.MustCompile(jobIDPattern)

const ConvertRequestSchemaDefinition = `{
	"type": "object",
	"properties": {
		"source": {
			"type": "string",
			"minLength": 1,
			"maxLength": 1024
		},
		"job_id": {
			"type": "string",
			"pattern": "` + jobIDPattern + `"
		}
	},
	"required": ["source"],
	"additionalProperties": false
}`

var inputSchemas map[string]string = map[string]string{
	"Convert": ConvertRequestSchemaDefinition,
}

func compileJsonSchemas() map[string]*gojsonschema.Schema {
	compiled := make(map[string]*gojsonschema.Schema, 0)
	for name, text := range inputSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(text))
		if err != nil {
			// rase panic on program start
			panic(err) // fix schema text
		}
		compiled[name] = schema
	}
	return compiled
}

// Run compile step on program start:
var inputSchemasCompiled map[string]*gojsonschema.Schema = compileJsonSchemas()
