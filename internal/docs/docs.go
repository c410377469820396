// Package docs holds the OpenAPI document served at /swagger/*.
// Regenerate with: swag init -g cmd/main.go -o internal/docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/inventory/items": {
            "get": {"tags": ["inventory"], "summary": "List items with on-hand totals",
                "parameters": [{"type": "string", "name": "q", "in": "query"}],
                "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["inventory"], "summary": "Create a catalog item",
                "parameters": [{"name": "item", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.CreateItemRequest"}}],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Duplicate SKU", "schema": {"$ref": "#/definitions/common.ErrorResponse"}}}}
        },
        "/inventory/items/{id}": {
            "get": {"tags": ["inventory"], "summary": "Get an item",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found", "schema": {"$ref": "#/definitions/common.ErrorResponse"}}}},
            "patch": {"tags": ["inventory"], "summary": "Update an item",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/inventory/locations": {
            "get": {"tags": ["inventory"], "summary": "List locations", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["inventory"], "summary": "Create a location", "responses": {"201": {"description": "Created"}}}
        },
        "/inventory/stocks": {
            "get": {"tags": ["inventory"], "summary": "List stock levels",
                "parameters": [{"type": "string", "name": "item_id", "in": "query"}, {"type": "string", "name": "location_id", "in": "query"}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/inventory/stocks/{itemId}/{locationId}": {
            "get": {"tags": ["inventory"], "summary": "Get one stock level",
                "parameters": [{"type": "string", "name": "itemId", "in": "path", "required": true}, {"type": "string", "name": "locationId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/inventory/movements": {
            "get": {"tags": ["inventory"], "summary": "Query the movement ledger",
                "parameters": [
                    {"type": "string", "name": "item_id", "in": "query"},
                    {"type": "string", "name": "type", "in": "query", "enum": ["IN", "OUT", "TRANSFER", "ADJUST"]},
                    {"type": "string", "name": "consumer_kind", "in": "query", "enum": ["TRUCK", "MAINTENANCE_JOB", "TRIP"]},
                    {"type": "string", "name": "consumer_id", "in": "query"},
                    {"type": "string", "name": "stock_unit_id", "in": "query"},
                    {"type": "string", "name": "from", "in": "query"},
                    {"type": "string", "name": "to", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}}
        },
        "/inventory/movements/export": {
            "post": {"tags": ["inventory"], "summary": "Export the movement ledger as CSV", "responses": {"201": {"description": "Created"}}}
        },
        "/inventory/reconciliation": {
            "get": {"tags": ["inventory"], "summary": "Reconcile stock levels against the ledger", "responses": {"200": {"description": "OK"}}}
        },
        "/inventory/receive": {
            "post": {"tags": ["ledger"], "summary": "Receive stock into a location", "responses": {"201": {"description": "Created"}, "400": {"description": "Validation failed"}, "409": {"description": "Duplicate identifier"}}}
        },
        "/inventory/adjust": {
            "post": {"tags": ["ledger"], "summary": "Adjust a stock level by a signed delta", "responses": {"200": {"description": "OK"}, "409": {"description": "Insufficient stock"}}}
        },
        "/inventory/transfer": {
            "post": {"tags": ["ledger"], "summary": "Transfer fungible stock between locations", "responses": {"200": {"description": "OK"}, "409": {"description": "Insufficient stock"}}}
        },
        "/inventory/consume": {
            "post": {"tags": ["ledger"], "summary": "Consume fungible stock", "responses": {"200": {"description": "OK"}, "409": {"description": "Insufficient stock"}}}
        },
        "/inventory/units": {
            "get": {"tags": ["units"], "summary": "List serialized units",
                "parameters": [{"type": "string", "name": "status", "in": "query"}, {"type": "string", "name": "item_id", "in": "query"}, {"type": "string", "name": "location_id", "in": "query"}, {"type": "string", "name": "q", "in": "query"}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/inventory/units/{id}": {
            "patch": {"tags": ["units"], "summary": "Edit a unit barcode", "responses": {"200": {"description": "OK"}}}
        },
        "/inventory/units/{id}/transfer": {
            "post": {"tags": ["units"], "summary": "Move an in-stock unit", "responses": {"200": {"description": "OK"}}}
        },
        "/inventory/units/{id}/assign": {
            "post": {"tags": ["units"], "summary": "Install a unit on a truck or maintenance job", "responses": {"201": {"description": "Created"}, "409": {"description": "Invalid state"}}}
        },
        "/inventory/units/{id}/return": {
            "post": {"tags": ["units"], "summary": "Return or retire an assigned unit", "responses": {"200": {"description": "OK"}}}
        },
        "/inventory/units/{id}/scrap": {
            "post": {"tags": ["units"], "summary": "Scrap or mark a unit lost", "responses": {"200": {"description": "OK"}}}
        },
        "/inventory/units/{id}/history": {
            "get": {"tags": ["units"], "summary": "Assignment history of a unit", "responses": {"200": {"description": "OK"}}}
        },
        "/inventory/consumers/{kind}/{id}/parts": {
            "get": {"tags": ["units"], "summary": "Units installed on a consumer",
                "parameters": [{"type": "string", "name": "kind", "in": "path", "required": true}, {"type": "string", "name": "id", "in": "path", "required": true}, {"type": "boolean", "name": "currentOnly", "in": "query"}],
                "responses": {"200": {"description": "OK"}}}
        }
    },
    "definitions": {
        "common.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "object", "properties": {
                    "code": {"type": "string"},
                    "message": {"type": "string"},
                    "details": {"type": "object", "additionalProperties": {"type": "string"}}
                }}
            }
        },
        "models.CreateItemRequest": {
            "type": "object",
            "required": ["sku", "name"],
            "properties": {
                "sku": {"type": "string"},
                "name": {"type": "string"},
                "unit_of_measure": {"type": "string"},
                "is_serialized": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "fleetstock API",
	Description:      "Spare-part inventory ledger for a truck fleet.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
