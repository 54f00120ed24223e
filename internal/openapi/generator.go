package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Generate builds the OpenAPI 3.1 document for the promptgate API. The route
// surface is fixed, so the document is assembled statically rather than
// derived from reflection.
func Generate(baseURL string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Promptgate API",
			Description: "Token-gated prompt resolution: keyword matching, token lifecycle, and prompt visibility.",
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["tokenKey"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: "X-Token-Key",
		},
	}
	doc.Security = openapi3.SecurityRequirements{
		{"tokenKey": {}},
	}

	doc.Paths = openapi3.NewPaths()

	registerSchemas(doc)
	addSessionPaths(doc)
	addMatchPath(doc)
	addSelfServicePaths(doc)
	addSystemPaths(doc)

	return doc
}

// componentSchemas holds the reusable schema definitions. componentRef hands
// out refs that carry both the by-name pointer and the value, so the document
// validates in memory without a loader pass.
var componentSchemas = map[string]*openapi3.Schema{
	"ErrorResponse": objectSchema(openapi3.Schemas{
		"error": &openapi3.SchemaRef{
			Value: objectSchema(openapi3.Schemas{
				"code":    intProp(),
				"message": stringProp(),
				"context": &openapi3.SchemaRef{Value: objectSchema(nil)},
			}),
		},
	}),
	"MatchResult": objectSchema(openapi3.Schemas{
		"success":          boolProp(),
		"promptTemplateId": int64Prop(),
		"promptName":       stringProp(),
		"content":          stringProp(),
		"keyword":          stringProp(),
		"error":            stringProp(),
	}),
	"Member": objectSchema(openapi3.Schemas{
		"id":       int64Prop(),
		"email":    stringProp(),
		"name":     stringProp(),
		"is_admin": boolProp(),
		"status":   enumProp("active", "disabled"),
	}),
	"Token": objectSchema(openapi3.Schemas{
		"id":           int64Prop(),
		"masked_key":   stringProp(),
		"member_id":    int64Prop(),
		"name":         stringProp(),
		"status":       enumProp("issued", "revoked", "expired"),
		"issued_at":    dateTimeProp(),
		"expires_at":   dateTimeProp(),
		"last_used_at": dateTimeProp(),
	}),
	"PromptTemplate": objectSchema(openapi3.Schemas{
		"id":      int64Prop(),
		"name":    stringProp(),
		"content": stringProp(),
		"version": intProp(),
		"locale":  stringProp(),
		"status":  enumProp("active", "disabled"),
	}),
	"KeywordRule": objectSchema(openapi3.Schemas{
		"id":                 int64Prop(),
		"keyword":            stringProp(),
		"is_regex":           boolProp(),
		"locale":             stringProp(),
		"prompt_template_id": int64Prop(),
		"status":             enumProp("active", "disabled"),
	}),
}

func registerSchemas(doc *openapi3.T) {
	for name, schema := range componentSchemas {
		doc.Components.Schemas[name] = &openapi3.SchemaRef{Value: schema}
	}
}

func componentRef(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, componentSchemas[name])
}

func addSessionPaths(doc *openapi3.T) {
	loginReq := &openapi3.SchemaRef{
		Value: objectSchema(openapi3.Schemas{
			"email":    stringProp(),
			"password": stringProp(),
		}),
	}
	loginResp := &openapi3.SchemaRef{
		Value: objectSchema(openapi3.Schemas{
			"session_token": stringProp(),
			"token_type":    stringProp(),
			"expires_in":    intProp(),
			"api_token":     stringProp(),
			"member_id":     int64Prop(),
			"email":         stringProp(),
			"is_admin":      boolProp(),
		}),
	}

	doc.Paths.Set("/auth/session", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"auth"},
			Summary:     "Log in",
			Description: "Verify member credentials and receive a session JWT plus a freshly issued API token.",
			OperationID: "login",
			Security:    openapi3.NewSecurityRequirements(),
			RequestBody: jsonBody("Member credentials", loginReq),
			Responses:   newResponses("200", "Session established", loginResp),
		},
		Delete: &openapi3.Operation{
			Tags:        []string{"auth"},
			Summary:     "Log out",
			OperationID: "logout",
			Security:    openapi3.NewSecurityRequirements(),
			Responses:   newResponses("200", "Session invalidated", successSchema()),
		},
	})
}

func addMatchPath(doc *openapi3.T) {
	matchReq := &openapi3.SchemaRef{
		Value: objectSchema(openapi3.Schemas{
			"requirement": stringProp(),
			"locale":      stringProp(),
			"allowRegex":  boolProp(),
		}),
	}

	doc.Paths.Set("/api/v1/prompt/match", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"prompt"},
			Summary:     "Match a requirement to a prompt",
			Description: "Resolve free-text requirement to a prompt template by keyword. A miss is a 200 with success=false.",
			OperationID: "match_prompt",
			RequestBody: jsonBody("Requirement to match", matchReq),
			Responses:   newResponses("200", "Match result, positive or negative", componentRef("MatchResult")),
		},
	})
}

func addSelfServicePaths(doc *openapi3.T) {
	doc.Paths.Set("/api/v1/tokens", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"tokens"},
			Summary:     "List own tokens",
			Description: "List the presenting key owner's issued tokens, masked. An unknown key yields an empty list.",
			OperationID: "list_own_tokens",
			Responses:   newResponses("200", "Masked token list", listSchema("Token")),
		},
	})
	doc.Paths.Set("/api/v1/prompts", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"prompts"},
			Summary:     "List prompts visible to the presented token",
			OperationID: "list_own_prompts",
			Responses:   newResponses("200", "Visible prompt templates", listSchema("PromptTemplate")),
		},
	})
}

func addSystemPaths(doc *openapi3.T) {
	memberRef := componentRef("Member")
	templateRef := componentRef("PromptTemplate")
	keywordRef := componentRef("KeywordRule")

	doc.Paths.Set("/api/v1/system/member", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "List members",
			OperationID: "list_members",
			Responses:   newResponses("200", "Member list", listSchema("Member")),
		},
		Post: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "Create member",
			OperationID: "create_member",
			RequestBody: jsonBody("New member", &openapi3.SchemaRef{
				Value: objectSchema(openapi3.Schemas{
					"email":    stringProp(),
					"name":     stringProp(),
					"password": stringProp(),
					"is_admin": boolProp(),
				}),
			}),
			Responses: newResponses("201", "Member created", memberRef),
		},
	})
	doc.Paths.Set("/api/v1/system/member/{memberId}", &openapi3.PathItem{
		Delete: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "Disable member",
			Description: "Disable a member and revoke all of their issued tokens.",
			OperationID: "disable_member",
			Parameters:  pathParams("memberId"),
			Responses:   newResponses("200", "Member disabled", successSchema()),
		},
	})

	doc.Paths.Set("/api/v1/system/token", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "List tokens",
			OperationID: "list_tokens",
			Responses:   newResponses("200", "Token list, keys masked", listSchema("Token")),
		},
		Post: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "Issue token",
			Description: "Issue a new token. The raw key appears in this response only.",
			OperationID: "issue_token",
			RequestBody: jsonBody("Token request", &openapi3.SchemaRef{
				Value: objectSchema(openapi3.Schemas{
					"member_id":        int64Prop(),
					"name":             stringProp(),
					"lifetime_seconds": int64Prop(),
				}),
			}),
			Responses: newResponses("201", "Token issued", &openapi3.SchemaRef{
				Value: objectSchema(openapi3.Schemas{
					"id":         int64Prop(),
					"token_key":  stringProp(),
					"member_id":  int64Prop(),
					"name":       stringProp(),
					"issued_at":  dateTimeProp(),
					"expires_at": dateTimeProp(),
				}),
			}),
		},
	})
	doc.Paths.Set("/api/v1/system/token/{tokenKey}", &openapi3.PathItem{
		Delete: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "Revoke token",
			OperationID: "revoke_token",
			Parameters:  pathParams("tokenKey"),
			Responses:   newResponses("200", "Token revoked", successSchema()),
		},
	})
	doc.Paths.Set("/api/v1/system/token/{tokenKey}/prompts", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "Grant prompt visibility",
			OperationID: "create_mapping",
			Parameters:  pathParams("tokenKey"),
			RequestBody: jsonBody("Template to grant", &openapi3.SchemaRef{
				Value: objectSchema(openapi3.Schemas{
					"prompt_template_id": int64Prop(),
				}),
			}),
			Responses: newResponses("201", "Mapping created", successSchema()),
		},
	})
	doc.Paths.Set("/api/v1/system/token/{tokenKey}/prompts/{templateId}", &openapi3.PathItem{
		Delete: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "Withdraw prompt visibility",
			OperationID: "remove_mapping",
			Parameters:  pathParams("tokenKey", "templateId"),
			Responses:   newResponses("200", "Mapping removed", successSchema()),
		},
	})

	doc.Paths.Set("/api/v1/system/keyword", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "List keyword rules",
			OperationID: "list_keywords",
			Responses:   newResponses("200", "Keyword rule list", listSchema("KeywordRule")),
		},
		Post: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "Create keyword rule",
			OperationID: "create_keyword",
			RequestBody: jsonBody("New keyword rule", keywordRef),
			Responses:   newResponses("201", "Keyword rule created", keywordRef),
		},
	})
	doc.Paths.Set("/api/v1/system/keyword/{keywordId}", &openapi3.PathItem{
		Put: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "Update keyword rule",
			OperationID: "update_keyword",
			Parameters:  pathParams("keywordId"),
			RequestBody: jsonBody("Updated keyword rule", keywordRef),
			Responses:   newResponses("200", "Keyword rule updated", keywordRef),
		},
		Delete: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "Disable keyword rule",
			OperationID: "disable_keyword",
			Parameters:  pathParams("keywordId"),
			Responses:   newResponses("200", "Keyword rule disabled", successSchema()),
		},
	})

	doc.Paths.Set("/api/v1/system/template", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "List prompt templates",
			OperationID: "list_templates",
			Responses:   newResponses("200", "Template list", listSchema("PromptTemplate")),
		},
		Post: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "Create prompt template",
			OperationID: "create_template",
			RequestBody: jsonBody("New template", templateRef),
			Responses:   newResponses("201", "Template created", templateRef),
		},
	})
	doc.Paths.Set("/api/v1/system/template/{templateId}", &openapi3.PathItem{
		Put: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "Update prompt template",
			Description: "Update content and status. Name, version, and locale are immutable.",
			OperationID: "update_template",
			Parameters:  pathParams("templateId"),
			RequestBody: jsonBody("Updated template", templateRef),
			Responses:   newResponses("200", "Template updated", templateRef),
		},
		Delete: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "Disable prompt template",
			OperationID: "disable_template",
			Parameters:  pathParams("templateId"),
			Responses:   newResponses("200", "Template disabled", successSchema()),
		},
	})
}
