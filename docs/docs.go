// Package docs is generated by swag from the handler annotations.
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
        "/health": {
            "get": {"produces": ["application/json"], "tags": ["system"], "summary": "Health check",
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/timers/flex": {
            "get": {"produces": ["application/json"], "tags": ["timers"], "summary": "List timers",
                "responses": {"200": {"description": "count, active, timers"}, "500": {"description": "Internal Server Error"}}},
            "post": {"consumes": ["application/json"], "produces": ["application/json"], "tags": ["timers"], "summary": "Create timer",
                "parameters": [{"description": "Timer definition", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.TimerDefinition"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/models.TimerDefinition"}}, "400": {"description": "Bad Request"}}}
        },
        "/api/timers/flex/{id}": {
            "get": {"produces": ["application/json"], "tags": ["timers"], "summary": "Get timer",
                "parameters": [{"type": "integer", "description": "Timer id", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "put": {"consumes": ["application/json"], "produces": ["application/json"], "tags": ["timers"], "summary": "Update timer",
                "parameters": [
                    {"type": "integer", "description": "Timer id", "name": "id", "in": "path", "required": true},
                    {"description": "Timer definition", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.TimerDefinition"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.TimerDefinition"}}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}}},
            "delete": {"tags": ["timers"], "summary": "Delete timer",
                "parameters": [{"type": "integer", "description": "Timer id", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found"}}}
        },
        "/api/timers/flex/{id}/toggle": {
            "post": {"consumes": ["application/json"], "produces": ["application/json"], "tags": ["timers"], "summary": "Enable or disable timer",
                "parameters": [{"type": "integer", "description": "Timer id", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.TimerDefinition"}}, "404": {"description": "Not Found"}}}
        },
        "/api/timers/scenarios": {
            "get": {"produces": ["application/json"], "tags": ["timers"], "summary": "List scenarios",
                "responses": {"200": {"description": "count, scenarios"}}}
        },
        "/api/timers/scenarios/{key}": {
            "post": {"consumes": ["application/json"], "produces": ["application/json"], "tags": ["timers"], "summary": "Create timer from scenario",
                "parameters": [{"type": "string", "description": "Scenario key", "name": "key", "in": "path", "required": true}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/models.TimerDefinition"}}, "404": {"description": "Not Found"}}}
        },
        "/api/directory": {
            "get": {"produces": ["application/json"], "tags": ["directory"], "summary": "Timer directory",
                "responses": {"200": {"description": "active, timers"}}}
        },
        "/api/sensors": {
            "get": {"produces": ["application/json"], "tags": ["device"], "summary": "Sensor snapshot",
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/relays": {
            "get": {"produces": ["application/json"], "tags": ["device"], "summary": "Relay states",
                "responses": {"200": {"description": "relays"}}}
        },
        "/api/relay": {
            "post": {"consumes": ["application/json"], "produces": ["application/json"], "tags": ["device"], "summary": "Switch relay",
                "responses": {"202": {"description": "Accepted"}, "400": {"description": "Bad Request"}}}
        },
        "/api/device/sensors": {
            "post": {"consumes": ["application/json"], "produces": ["application/json"], "tags": ["device"], "summary": "Override simulated sensors",
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        },
        "/api/device/outputs": {
            "get": {"produces": ["application/json"], "tags": ["device"], "summary": "Buzzer and LED state",
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/device/buzzer": {
            "post": {"consumes": ["application/json"], "produces": ["application/json"], "tags": ["device"], "summary": "Buzzer mode",
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/logs": {
            "get": {"produces": ["application/json"], "tags": ["logs"], "summary": "List logs",
                "parameters": [
                    {"type": "string", "description": "Start of range", "name": "from", "in": "query"},
                    {"type": "string", "description": "End of range. Date-only treated as end of day.", "name": "to", "in": "query"},
                    {"enum": ["STARTED", "SKIPPED", "COMPLETED", "ERROR", "ABORTED", "MANUAL_RELAY"], "type": "string", "description": "Event type", "name": "type", "in": "query"},
                    {"type": "integer", "description": "Timer id", "name": "timer_id", "in": "query"}],
                "responses": {"200": {"description": "count, events"}, "400": {"description": "Bad Request"}}}
        },
        "/ws": {
            "get": {"tags": ["directory"], "summary": "Directory stream",
                "responses": {"101": {"description": "Switching Protocols"}}}
        }
    },
    "definitions": {
        "models.TimerDefinition": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "name": {"type": "string"},
                "enabled": {"type": "boolean"},
                "days": {"type": "array", "items": {"type": "boolean"}},
                "startTime": {"type": "object"},
                "conditions": {"type": "array", "items": {"type": "object"}},
                "actions": {"type": "array", "items": {"type": "object"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Pool controller API",
	Description:      "Flexible timers, relays and sensors of the pool controller.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
