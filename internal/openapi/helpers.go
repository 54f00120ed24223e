package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

func objectSchema(props openapi3.Schemas) *openapi3.Schema {
	return &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: props,
	}
}

func stringProp() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
}

func boolProp() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}
}

func intProp() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}}
}

func int64Prop() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}}
}

func dateTimeProp() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}}
}

func enumProp(values ...string) *openapi3.SchemaRef {
	enum := make([]interface{}, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Enum: enum}}
}

// listSchema wraps a component schema in the standard list envelope.
func listSchema(component string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: objectSchema(openapi3.Schemas{
			"resource": &openapi3.SchemaRef{
				Value: &openapi3.Schema{
					Type:  &openapi3.Types{"array"},
					Items: componentRef(component),
				},
			},
			"meta": &openapi3.SchemaRef{
				Value: objectSchema(openapi3.Schemas{
					"count": intProp(),
				}),
			},
		}),
	}
}

func successSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: objectSchema(openapi3.Schemas{
			"success": boolProp(),
			"message": stringProp(),
		}),
	}
}

func jsonBody(description string, schema *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: description,
			Required:    true,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	}
}

func pathParams(names ...string) openapi3.Parameters {
	params := make(openapi3.Parameters, 0, len(names))
	for _, name := range names {
		params = append(params, &openapi3.ParameterRef{
			Value: openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema()),
		})
	}
	return params
}

// newResponses builds a response set with the given success response plus the
// standard 400/401/404/409/500 error responses.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := componentRef("ErrorResponse")
	for code, desc := range map[string]string{
		"400": "Bad request",
		"401": "Unauthorized",
		"404": "Not found",
		"409": "Conflict",
		"500": "Internal server error",
	} {
		d := desc
		responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &d,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}

	return responses
}
