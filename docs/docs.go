// Package docs registers the OpenAPI document served at /api-docs/openapi.json.
package docs

import "github.com/swaggo/swag/v2"

const docTemplate = `{
    "openapi": "3.1.0",
    "info": {
        "title": "{{.Title}}",
        "description": "Compiles Typst templates into PDF documents.",
        "version": "{{.Version}}"
    },
    "paths": {
        "/api/typst/compile": {
            "post": {
                "operationId": "compileTypst",
                "summary": "Compile a Typst template to PDF",
                "description": "Runs typst compile with the template on stdin. Variables are exposed to the template as sys.inputs.",
                "tags": ["typst"],
                "requestBody": {
                    "required": true,
                    "content": {
                        "application/json": {
                            "schema": {"$ref": "#/components/schemas/CompileRequest"}
                        }
                    }
                },
                "responses": {
                    "200": {
                        "description": "Compiled PDF document",
                        "content": {
                            "application/pdf": {
                                "schema": {"type": "string", "format": "binary"}
                            }
                        }
                    },
                    "400": {
                        "description": "Invalid request or template compilation error; error holds the compiler diagnostics",
                        "content": {
                            "application/json": {
                                "schema": {"$ref": "#/components/schemas/ErrorBody"}
                            }
                        }
                    },
                    "413": {
                        "description": "Request body too large",
                        "content": {
                            "application/json": {
                                "schema": {"$ref": "#/components/schemas/ErrorBody"}
                            }
                        }
                    },
                    "429": {
                        "description": "Rate limit exceeded",
                        "content": {
                            "application/json": {
                                "schema": {"$ref": "#/components/schemas/ErrorBody"}
                            }
                        }
                    },
                    "500": {
                        "description": "Compiler could not be run",
                        "content": {
                            "application/json": {
                                "schema": {"$ref": "#/components/schemas/ErrorBody"}
                            }
                        }
                    },
                    "504": {
                        "description": "Compilation exceeded the configured timeout",
                        "content": {
                            "application/json": {
                                "schema": {"$ref": "#/components/schemas/ErrorBody"}
                            }
                        }
                    }
                }
            }
        },
        "/health": {
            "get": {
                "operationId": "health",
                "summary": "Service health",
                "tags": ["system"],
                "parameters": [
                    {
                        "name": "deep",
                        "in": "query",
                        "description": "Also probe the compiler binary and redis",
                        "schema": {"type": "boolean"}
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Health report",
                        "content": {
                            "application/json": {
                                "schema": {"$ref": "#/components/schemas/HealthResponse"}
                            }
                        }
                    }
                }
            }
        }
    },
    "components": {
        "schemas": {
            "CompileRequest": {
                "type": "object",
                "required": ["template"],
                "properties": {
                    "template": {
                        "type": "string",
                        "description": "Typst source",
                        "examples": ["Hello, #sys.inputs.name!"]
                    },
                    "variables": {
                        "type": "object",
                        "description": "Passed to typst as --input name=value",
                        "additionalProperties": {"type": "string"},
                        "examples": [{"name": "John Doe"}]
                    },
                    "jobs": {
                        "type": "integer",
                        "description": "Passed to typst as --jobs"
                    }
                }
            },
            "ErrorBody": {
                "type": "object",
                "required": ["error"],
                "properties": {
                    "error": {"type": "string"}
                }
            },
            "HealthResponse": {
                "type": "object",
                "properties": {
                    "status": {"type": "string", "enum": ["ok", "degraded"]},
                    "service": {"type": "string"},
                    "version": {"type": "string"},
                    "checks": {"type": "object", "additionalProperties": true}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported OpenAPI info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Title:            "Typst Compile API",
	Description:      "Compiles Typst templates into PDF documents.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
