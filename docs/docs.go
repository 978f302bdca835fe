// Package docs registers the OpenAPI description served under /swagger.
// Regenerate with: swag init -g cmd/server/main.go -o docs
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
    "paths": {
        "/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Register a new user",
                "parameters": [
                    {"description": "New user", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.AuthResponse"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "409": {"description": "Conflict", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Log in",
                "parameters": [
                    {"description": "Credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.AuthResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/board": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Returns the normalized board, creating the default board on first call",
                "produces": ["application/json"],
                "tags": ["Boards"],
                "summary": "Get the caller's board",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/kanban.NormalizedState"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/board/events": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Websocket; one {\"type\":\"invalidate\"} message per change of the caller's board",
                "tags": ["Boards"],
                "summary": "Board invalidation stream",
                "parameters": [
                    {"type": "string", "description": "JWT when the Authorization header cannot be set", "name": "token", "in": "query"}
                ],
                "responses": {}
            }
        },
        "/api/tasks": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Tasks"],
                "summary": "List active tasks of columns",
                "parameters": [
                    {"type": "string", "description": "Comma separated column ids", "name": "columnIds", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/kanban.TaskRecord"}}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Tasks"],
                "summary": "Create a task",
                "parameters": [
                    {"description": "Task", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.CreateTaskRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/kanban.TaskRecord"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/tasks/{id}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "description": "Sets archived_at on a task created by the caller",
                "produces": ["application/json"],
                "tags": ["Tasks"],
                "summary": "Archive a task",
                "parameters": [
                    {"type": "string", "description": "Task ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "boolean"}}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/tasks/{id}/move": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Tasks"],
                "summary": "Move a task",
                "parameters": [
                    {"type": "string", "description": "Task ID", "name": "id", "in": "path", "required": true},
                    {"description": "Destination", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.MoveTaskRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/kanban.TaskRecord"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "handler.AuthResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "user": {"$ref": "#/definitions/handler.UserResponse"}
            }
        },
        "handler.UserResponse": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "id": {"type": "string"},
                "name": {"type": "string"}
            }
        },
        "handler.RegisterRequest": {
            "type": "object",
            "required": ["email", "name", "password"],
            "properties": {
                "email": {"type": "string"},
                "name": {"type": "string", "minLength": 2},
                "password": {"type": "string", "minLength": 6}
            }
        },
        "handler.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "handler.CreateTaskRequest": {
            "type": "object",
            "properties": {
                "columnId": {"type": "string"},
                "dueDate": {"type": "string"},
                "order": {"type": "number"},
                "priority": {"type": "string"},
                "title": {"type": "string"}
            }
        },
        "handler.MoveTaskRequest": {
            "type": "object",
            "properties": {
                "columnId": {"type": "string"},
                "order": {"type": "number"}
            }
        },
        "kanban.TaskRecord": {
            "type": "object",
            "properties": {
                "archived_at": {"type": "string"},
                "column_id": {"type": "string"},
                "due_date": {"type": "string"},
                "id": {"type": "string"},
                "priority": {"type": "string", "enum": ["low", "medium", "high"]},
                "sort_order": {"type": "number"},
                "title": {"type": "string"}
            }
        },
        "kanban.Board": {
            "type": "object",
            "properties": {
                "columnIds": {"type": "array", "items": {"type": "string"}},
                "id": {"type": "string"},
                "title": {"type": "string"}
            }
        },
        "kanban.Column": {
            "type": "object",
            "properties": {
                "color": {"type": "string"},
                "id": {"type": "string"},
                "order": {"type": "integer"},
                "taskIds": {"type": "array", "items": {"type": "string"}},
                "title": {"type": "string"}
            }
        },
        "kanban.Task": {
            "type": "object",
            "properties": {
                "archivedAt": {"type": "string"},
                "columnId": {"type": "string"},
                "dueDate": {"type": "string"},
                "id": {"type": "string"},
                "order": {"type": "number"},
                "priority": {"type": "string", "enum": ["low", "medium", "high"]},
                "title": {"type": "string"}
            }
        },
        "kanban.NormalizedState": {
            "type": "object",
            "properties": {
                "board": {"$ref": "#/definitions/kanban.Board"},
                "columns": {"type": "object", "additionalProperties": {"$ref": "#/definitions/kanban.Column"}},
                "tasks": {"type": "object", "additionalProperties": {"$ref": "#/definitions/kanban.Task"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Kanban Dashboard API",
	Description:      "Board snapshot and task endpoints behind the optimistic kanban client.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
