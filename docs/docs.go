// Package docs registers the OpenAPI document served under /docs.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/connections": {
            "get": {"tags": ["connections"], "summary": "List the caller's connections", "responses": {"200": {"description": "OK"}}},
            "post": {
                "tags": ["connections"],
                "summary": "Create a connection and start pairing",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/dtos.CreateConnectionDTO"}}],
                "responses": {"201": {"description": "Created, QR pending"}, "400": {"description": "Invalid input"}, "502": {"description": "Could not create connection"}}
            }
        },
        "/connections/{id}": {
            "get": {"tags": ["connections"], "summary": "Get a connection", "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}},
            "delete": {"tags": ["connections"], "summary": "Delete a connection and its gateway instance", "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "Deleted"}}}
        },
        "/connections/{id}/qr-code": {
            "post": {"tags": ["pairing"], "summary": "Acquire the pairing QR code", "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "QR ready"}, "202": {"description": "QR not ready yet"}, "409": {"description": "Already connected"}}}
        },
        "/connections/{id}/refresh": {
            "post": {"tags": ["pairing"], "summary": "Regenerate the pairing QR code", "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "QR ready"}, "202": {"description": "QR not ready yet"}}}
        },
        "/connections/{id}/poll": {
            "post": {
                "tags": ["pairing"],
                "summary": "Start waiting for the phone to pair",
                "parameters": [{"$ref": "#/parameters/id"}, {"in": "body", "name": "body", "schema": {"$ref": "#/definitions/dtos.PollDTO"}}],
                "responses": {"202": {"description": "Polling"}}
            },
            "delete": {"tags": ["pairing"], "summary": "Stop waiting for pairing", "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "Stopped"}}}
        },
        "/connections/{id}/disconnect": {
            "post": {"tags": ["connections"], "summary": "Log the connection out", "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "Disconnected"}}}
        },
        "/admin/sync": {
            "post": {"tags": ["admin"], "summary": "Reconcile connected records with the gateway", "security": [], "parameters": [{"in": "header", "name": "admin_key", "type": "string", "required": true}], "responses": {"200": {"description": "Done"}}}
        }
    },
    "parameters": {
        "id": {"in": "path", "name": "id", "type": "integer", "required": true}
    },
    "definitions": {
        "dtos.CreateConnectionDTO": {
            "type": "object",
            "required": ["display_name"],
            "properties": {"display_name": {"type": "string", "maxLength": 100}}
        },
        "dtos.PollDTO": {
            "type": "object",
            "properties": {
                "interval_seconds": {"type": "integer", "minimum": 1, "maximum": 60},
                "max_duration_seconds": {"type": "integer", "minimum": 1, "maximum": 900}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8000",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "WhatsApp Connection API",
	Description:      "Creates gateway-backed WhatsApp connections, serves their pairing QR codes and tracks pairing.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
