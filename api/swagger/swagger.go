package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "EduBot API",
        "description": "Academic assistant for university students: grades, classrooms, improvement plans and voice or image messages.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Chat", "description": "Conversation with the assistant"},
        {"name": "Academic", "description": "Grades overview and downloadable reports"},
        {"name": "Ops", "description": "Runtime metrics"}
    ],
    "paths": {
        "/chat": {
            "post": {
                "tags": ["Chat"],
                "summary": "Send a chat message",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "X-Session-ID", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChatRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ChatEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/chat/media": {
            "post": {
                "tags": ["Chat"],
                "summary": "Send an image or voice message",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "X-Session-ID", "in": "header", "type": "string"},
                    {"name": "file", "in": "formData", "type": "file"},
                    {"name": "message", "in": "formData", "type": "string"},
                    {"name": "transcript", "in": "formData", "type": "string"},
                    {"name": "speechError", "in": "formData", "type": "string"},
                    {"name": "sessionId", "in": "formData", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ChatEnvelope"}},
                    "400": {"description": "Nothing to answer", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "Attachment too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "415": {"description": "Unsupported attachment type", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/chat/status": {
            "get": {
                "tags": ["Chat"],
                "summary": "Assistant availability for the current session",
                "parameters": [
                    {"name": "X-Session-ID", "in": "header", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/chat/reset": {
            "post": {
                "tags": ["Chat"],
                "summary": "Clear chat history and conversation context",
                "parameters": [
                    {"name": "X-Session-ID", "in": "header", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/academic/summary": {
            "get": {
                "tags": ["Academic"],
                "summary": "Academic overview of the signed-in student",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Sign in required", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Backend unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/academic/report": {
            "get": {
                "tags": ["Academic"],
                "summary": "Download grades and improvement plan",
                "produces": ["text/csv", "application/pdf"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Report file", "schema": {"type": "file"}},
                    "400": {"description": "Unknown format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Sign in required", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Ops"],
                "summary": "Aggregated runtime metrics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ChatRequest": {
            "type": "object",
            "required": ["message"],
            "properties": {
                "message": {"type": "string", "maxLength": 4000},
                "sessionId": {"type": "string", "maxLength": 128}
            }
        },
        "ChatResponse": {
            "type": "object",
            "properties": {
                "reply": {"type": "string"},
                "intent": {"type": "string"},
                "path": {"type": "string"},
                "transcript": {"type": "string"},
                "sessionId": {"type": "string"}
            }
        },
        "ChatEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/ChatResponse"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
