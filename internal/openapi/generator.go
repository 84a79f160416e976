package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// GenerateSpec builds the OpenAPI 3.1 document for the Scry HTTP API. The
// route table is fixed, so the document is assembled statically rather than
// by inspecting a running server. baseURL becomes the advertised server URL
// and may be empty; version is the document version.
func GenerateSpec(baseURL, version string) *openapi3.T {
	if version == "" {
		version = "dev"
	}

	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Scry API",
			Description: "Credential management and upload surface for hosting Storybook builds.",
			Version:     version,
		},
	}
	if baseURL != "" {
		doc.Servers = openapi3.Servers{
			{URL: baseURL},
		}
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["apiKey"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: "X-API-Key",
		},
	}
	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}

	doc.Security = openapi3.SecurityRequirements{
		{"apiKey": {}},
		{"bearerAuth": {}},
	}

	registerSchemas(doc.Components.Schemas)

	doc.Paths = openapi3.NewPaths()
	addSystemPaths(doc)
	addKeyPaths(doc)
	addBuildPaths(doc)
	addViewerPath(doc)

	return doc
}

// ─── Component Schemas ──────────────────────────────────────────────────────

func registerSchemas(schemas openapi3.Schemas) {
	schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code": &openapi3.SchemaRef{
								Value: &openapi3.Schema{
									Type:        &openapi3.Types{"integer"},
									Format:      "int32",
									Description: "HTTP status code.",
								},
							},
							"kind": &openapi3.SchemaRef{
								Value: &openapi3.Schema{
									Type:        &openapi3.Types{"string"},
									Description: "Machine-readable error category.",
								},
							},
							"message": &openapi3.SchemaRef{
								Value: &openapi3.Schema{
									Type:        &openapi3.Types{"string"},
									Description: "Human-readable error message.",
								},
							},
							"context": &openapi3.SchemaRef{
								Value: &openapi3.Schema{
									Type:        &openapi3.Types{"object"},
									Description: "Additional error context.",
								},
							},
						},
					},
				},
			},
		},
	}

	// The stored key record. Hash material is never serialized, so it does
	// not appear here either.
	schemas["APIKey"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"id": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:   &openapi3.Types{"string"},
						Format: "uuid",
					},
				},
				"display_name": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:        &openapi3.Types{"string"},
						Description: "Human label for the key, typically the pipeline or operator it was issued to.",
					},
				},
				"prefix": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:        &openapi3.Types{"string"},
						Description: "Leading characters of the key, for matching against CI logs.",
					},
				},
				"status": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"string"},
						Enum: []interface{}{"active", "revoked"},
					},
				},
				"created_at": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:   &openapi3.Types{"string"},
						Format: "date-time",
					},
				},
				"created_by": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:        &openapi3.Types{"string"},
						Description: "Operator who issued the key.",
					},
				},
				"expires_at": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:     &openapi3.Types{"string"},
						Format:   "date-time",
						Nullable: true,
					},
				},
				"last_used_at": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:     &openapi3.Types{"string"},
						Format:   "date-time",
						Nullable: true,
					},
				},
				"revoked_at": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:     &openapi3.Types{"string"},
						Format:   "date-time",
						Nullable: true,
					},
				},
				"revoked_by": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:        &openapi3.Types{"string"},
						Description: "Operator who revoked the key.",
					},
				},
			},
			Required: []string{"id", "display_name", "prefix", "status", "created_at"},
		},
	}

	schemas["APIKeyCreated"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"id": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:   &openapi3.Types{"string"},
						Format: "uuid",
					},
				},
				"api_key": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:        &openapi3.Types{"string"},
						Description: "The plaintext API key. Returned only in this response; store it now.",
					},
				},
				"prefix": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"string"},
					},
				},
				"display_name": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"string"},
					},
				},
				"status": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"string"},
					},
				},
				"created_at": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:   &openapi3.Types{"string"},
						Format: "date-time",
					},
				},
				"created_by": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"string"},
					},
				},
				"expires_at": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:     &openapi3.Types{"string"},
						Format:   "date-time",
						Nullable: true,
					},
				},
			},
			Required: []string{"id", "api_key", "prefix", "display_name", "status", "created_at"},
		},
	}

	schemas["CreateKeyRequest"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"display_name": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:        &openapi3.Types{"string"},
						Description: "Human label for the key, e.g. the CI pipeline name.",
					},
				},
				"expires_at": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:        &openapi3.Types{"string"},
						Format:      "date-time",
						Description: "Absolute expiry. Must be in the future.",
					},
				},
				"ttl_days": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:        &openapi3.Types{"integer"},
						Format:      "int32",
						Description: "Expiry as days from now. Ignored when expires_at is set.",
					},
				},
			},
			Required: []string{"display_name"},
		},
	}

	schemas["BuildFile"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"path": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:        &openapi3.Types{"string"},
						Description: "Path of the file relative to the build root.",
					},
				},
				"size_bytes": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:   &openapi3.Types{"integer"},
						Format: "int64",
					},
				},
				"last_modified": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:   &openapi3.Types{"string"},
						Format: "date-time",
					},
				},
			},
			Required: []string{"path", "size_bytes"},
		},
	}
}

// ─── System Paths ───────────────────────────────────────────────────────────

func addSystemPaths(doc *openapi3.T) {
	doc.Paths.Set("/healthz", &openapi3.PathItem{Get: healthzOperation()})
	doc.Paths.Set("/readyz", &openapi3.PathItem{Get: readyzOperation()})
	doc.Paths.Set("/api/v1/me", &openapi3.PathItem{Get: meOperation()})
}

func healthzOperation() *openapi3.Operation {
	responses := openapi3.NewResponses()
	okDesc := "Process is alive"
	responses.Set("200", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &okDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(healthSchema()),
		},
	})

	return &openapi3.Operation{
		Tags:        []string{"system"},
		Summary:     "Liveness probe",
		Description: "Always 200 while the process is serving. Probes nothing beyond the process itself.",
		OperationID: "healthz",
		Security:    &openapi3.SecurityRequirements{},
		Responses:   responses,
	}
}

func readyzOperation() *openapi3.Operation {
	responses := openapi3.NewResponses()
	readyDesc := "All backends answered"
	responses.Set("200", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &readyDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(readinessSchema()),
		},
	})
	degradedDesc := "At least one backend is unreachable"
	responses.Set("503", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &degradedDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(readinessSchema()),
		},
	})

	return &openapi3.Operation{
		Tags:        []string{"system"},
		Summary:     "Readiness probe",
		Description: "Pings the key store and object storage. Degraded backends are named in the checks map.",
		OperationID: "readyz",
		Security:    &openapi3.SecurityRequirements{},
		Responses:   responses,
	}
}

func meOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"system"},
		Summary:     "Identify the presented API key",
		Description: "Echoes the identity behind the X-API-Key header, for pipelines verifying their credential before an upload.",
		OperationID: "whoami",
		Security:    keySecurity(),
		Responses:   newResponses("200", "Identity of the presented key", identitySchema()),
	}
}

// ─── Key Management Paths ───────────────────────────────────────────────────

func addKeyPaths(doc *openapi3.T) {
	doc.Paths.Set("/api/v1/projects/{projectID}/keys", &openapi3.PathItem{
		Parameters: openapi3.Parameters{projectIDParam()},
		Post:       createKeyOperation(),
		Get:        listKeysOperation(),
	})
	doc.Paths.Set("/api/v1/projects/{projectID}/keys/{keyID}/revoke", &openapi3.PathItem{
		Parameters: openapi3.Parameters{projectIDParam(), keyIDParam()},
		Post:       revokeKeyOperation(),
	})
	doc.Paths.Set("/api/v1/projects/{projectID}/keys/{keyID}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{projectIDParam(), keyIDParam()},
		Delete:     deleteKeyOperation(),
	})
}

func createKeyOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"keys"},
		Summary:     "Issue an API key",
		Description: "Mints an upload key for the project. The plaintext key appears only in this response.",
		OperationID: "create_key",
		Security:    adminSecurity(),
		RequestBody: &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Description: "Key attributes",
				Required:    true,
				Content: openapi3.NewContentWithJSONSchemaRef(
					openapi3.NewSchemaRef("#/components/schemas/CreateKeyRequest", nil),
				),
			},
		},
		Responses: newResponses(
			"201", "The issued key, including its plaintext form",
			openapi3.NewSchemaRef("#/components/schemas/APIKeyCreated", nil),
		),
	}
}

func listKeysOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"keys"},
		Summary:     "List API keys",
		Description: "Returns the project's keys, newest first. Neither plaintext keys nor hashes are included.",
		OperationID: "list_keys",
		Security:    adminSecurity(),
		Responses: newResponses(
			"200", "The project's keys",
			listSchema(openapi3.NewSchemaRef("#/components/schemas/APIKey", nil)),
		),
	}
}

func revokeKeyOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"keys"},
		Summary:     "Revoke an API key",
		Description: "Marks the key revoked. The record stays listable with its revocation metadata.",
		OperationID: "revoke_key",
		Security:    adminSecurity(),
		Responses:   newResponses("200", "Revocation confirmation", successSchema()),
	}
}

func deleteKeyOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"keys"},
		Summary:     "Delete an API key",
		Description: "Permanently removes the key record. Unlike revocation, deletion leaves no trace in listings.",
		OperationID: "delete_key",
		Security:    adminSecurity(),
		Responses:   newResponses("200", "Deletion confirmation", successSchema()),
	}
}

// ─── Build Paths ────────────────────────────────────────────────────────────

func addBuildPaths(doc *openapi3.T) {
	doc.Paths.Set("/api/v1/projects/{projectID}/builds", &openapi3.PathItem{
		Parameters: openapi3.Parameters{projectIDParam()},
		Post:       createBuildOperation(),
		Get:        listBuildsOperation(),
	})
	doc.Paths.Set("/api/v1/projects/{projectID}/builds/{buildID}/files/{filePath}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{projectIDParam(), buildIDParam(), filePathParam()},
		Put:        uploadFileOperation(),
		Get:        getFileOperation(),
	})
	doc.Paths.Set("/api/v1/projects/{projectID}/builds/{buildID}/files", &openapi3.PathItem{
		Parameters: openapi3.Parameters{projectIDParam(), buildIDParam()},
		Get:        listFilesOperation(),
	})
	doc.Paths.Set("/api/v1/projects/{projectID}/builds/{buildID}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{projectIDParam(), buildIDParam()},
		Delete:     deleteBuildOperation(),
	})
}

func createBuildOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"builds"},
		Summary:     "Create a build",
		Description: "Mints a fresh build id. The build becomes visible in listings once its first file is uploaded.",
		OperationID: "create_build",
		Security:    keySecurity(),
		Responses:   newResponses("201", "The minted build", buildCreatedSchema()),
	}
}

func listBuildsOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"builds"},
		Summary:     "List builds",
		Description: "Returns the ids of builds that have at least one uploaded file, in creation order.",
		OperationID: "list_builds",
		Security:    keySecurity(),
		Responses: newResponses(
			"200", "The project's builds",
			listSchema(buildEntrySchema()),
		),
	}
}

func uploadFileOperation() *openapi3.Operation {
	op := &openapi3.Operation{
		Tags:        []string{"builds"},
		Summary:     "Upload a file",
		Description: "Stores one file of the build. The request body is the raw file content; the path inside the build comes from the URL.",
		OperationID: "upload_file",
		Security:    keySecurity(),
		RequestBody: &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Description: "Raw file content",
				Required:    true,
				Content: openapi3.Content{
					"application/octet-stream": &openapi3.MediaType{
						Schema: binarySchema(),
					},
				},
			},
		},
		Responses: newResponses("201", "The stored file", uploadResultSchema()),
	}

	tooLargeDesc := "File exceeds the upload size limit"
	op.Responses.Set("413", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &tooLargeDesc,
			Content: openapi3.NewContentWithJSONSchemaRef(
				openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil),
			),
		},
	})
	return op
}

func getFileOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"builds"},
		Summary:     "Download a file",
		Description: "Streams one stored file back. The content type is derived from the file extension.",
		OperationID: "download_file",
		Security:    keySecurity(),
		Responses:   newBinaryResponses("The file content"),
	}
}

func listFilesOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"builds"},
		Summary:     "List build files",
		Description: "Returns the build's manifest: every stored file with its size. A build with no files does not exist.",
		OperationID: "list_files",
		Security:    keySecurity(),
		Responses: newResponses(
			"200", "The build manifest",
			listSchema(openapi3.NewSchemaRef("#/components/schemas/BuildFile", nil)),
		),
	}
}

func deleteBuildOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"builds"},
		Summary:     "Delete a build",
		Description: "Removes the build and every file under it.",
		OperationID: "delete_build",
		Security:    keySecurity(),
		Responses:   newResponses("200", "Deletion confirmation", successSchema()),
	}
}

// ─── Viewer Path ────────────────────────────────────────────────────────────

func addViewerPath(doc *openapi3.T) {
	doc.Paths.Set("/storybooks/{projectID}/{buildID}/{assetPath}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{projectIDParam(), buildIDParam(), assetPathParam()},
		Get:        viewerOperation(),
	})
}

func viewerOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"viewer"},
		Summary:     "Browse a hosted build",
		Description: "Serves the build's assets for browsing. The bare build path and directory paths fall back to index.html. Requires an API key unless the server enables public downloads.",
		OperationID: "view_build_asset",
		Security:    keySecurity(),
		Responses:   newBinaryResponses("The asset content"),
	}
}

// ─── Parameters ─────────────────────────────────────────────────────────────

func projectIDParam() *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter("projectID").
			WithDescription("Project identifier. Lowercase letters, digits, and hyphens.").
			WithSchema(openapi3.NewStringSchema()),
	}
}

func keyIDParam() *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter("keyID").
			WithDescription("API key id as returned at creation.").
			WithSchema(openapi3.NewStringSchema()),
	}
}

func buildIDParam() *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter("buildID").
			WithDescription("Build id as returned at creation.").
			WithSchema(openapi3.NewStringSchema()),
	}
}

func filePathParam() *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter("filePath").
			WithDescription("Path of the file within the build. May contain slashes; \"..\" segments are rejected.").
			WithSchema(openapi3.NewStringSchema()),
	}
}

func assetPathParam() *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter("assetPath").
			WithDescription("Path of the asset within the build. Empty or directory paths serve index.html.").
			WithSchema(openapi3.NewStringSchema()),
	}
}

// ─── Security Requirements ──────────────────────────────────────────────────

func adminSecurity() *openapi3.SecurityRequirements {
	return &openapi3.SecurityRequirements{{"bearerAuth": {}}}
}

func keySecurity() *openapi3.SecurityRequirements {
	return &openapi3.SecurityRequirements{{"apiKey": {}}}
}

// ─── Response Helpers ───────────────────────────────────────────────────────

// newResponses builds a response set with one JSON success response plus the
// standard error responses.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	addErrorResponses(responses)
	return responses
}

// newBinaryResponses is newResponses for endpoints that stream file content
// instead of JSON.
func newBinaryResponses(description string) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set("200", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content: openapi3.Content{
				"application/octet-stream": &openapi3.MediaType{
					Schema: binarySchema(),
				},
			},
		},
	})

	addErrorResponses(responses)
	return responses
}

func addErrorResponses(responses *openapi3.Responses) {
	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)

	badReqDesc := "Bad request"
	responses.Set("400", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &badReqDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	unauthDesc := "Unauthorized"
	responses.Set("401", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &unauthDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	notFoundDesc := "Not found"
	responses.Set("404", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &notFoundDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	serverErrDesc := "Internal server error"
	responses.Set("500", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &serverErrDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})
}

// ─── Inline Schemas ─────────────────────────────────────────────────────────

// listSchema wraps an item schema in the standard list envelope.
func listSchema(items *openapi3.SchemaRef) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"resource": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:  &openapi3.Types{"array"},
						Items: items,
					},
				},
				"meta": metaSchema(),
			},
		},
	}
}

func metaSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"count": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:        &openapi3.Types{"integer"},
						Format:      "int64",
						Description: "Number of records in the response.",
					},
				},
				"took_ms": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:        &openapi3.Types{"number"},
						Format:      "double",
						Description: "Server-side processing time in milliseconds.",
					},
				},
			},
		},
	}
}

func successSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"success": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"boolean"},
					},
				},
				"message": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"string"},
					},
				},
			},
		},
	}
}

func buildCreatedSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"build_id": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:   &openapi3.Types{"string"},
						Format: "uuid",
					},
				},
				"project_id": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"string"},
					},
				},
				"created_at": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:   &openapi3.Types{"string"},
						Format: "date-time",
					},
				},
			},
		},
	}
}

func buildEntrySchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"build_id": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:   &openapi3.Types{"string"},
						Format: "uuid",
					},
				},
			},
		},
	}
}

func uploadResultSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"path": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:        &openapi3.Types{"string"},
						Description: "Path of the stored file relative to the build root.",
					},
				},
				"size_bytes": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:   &openapi3.Types{"integer"},
						Format: "int64",
					},
				},
			},
		},
	}
}

func identitySchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"key_id": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:   &openapi3.Types{"string"},
						Format: "uuid",
					},
				},
				"name": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"string"},
					},
				},
				"prefix": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"string"},
					},
				},
				"project_id": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"string"},
					},
				},
			},
		},
	}
}

func healthSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"status": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"string"},
					},
				},
				"version": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"string"},
					},
				},
			},
		},
	}
}

func readinessSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"status": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"string"},
						Enum: []interface{}{"ready", "degraded"},
					},
				},
				"checks": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:        &openapi3.Types{"object"},
						Description: "Backend name to \"ok\" or the failure message.",
					},
				},
			},
		},
	}
}

func binarySchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:   &openapi3.Types{"string"},
			Format: "binary",
		},
	}
}
