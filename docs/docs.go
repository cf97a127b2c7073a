// Package docs registers the OpenAPI document served under /swagger.
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
        "/reports/funnel": {
            "get": {
                "description": "Build the conversion funnel, bottlenecks and alerts for a trailing window. Unavailable providers are flagged, never omitted.",
                "produces": ["application/json"],
                "tags": ["reports"],
                "summary": "Funnel report",
                "parameters": [
                    {"type": "integer", "description": "Trailing window in days (default 30)", "name": "windowDays", "in": "query"},
                    {"type": "string", "description": "City filter", "name": "city", "in": "query"},
                    {"type": "string", "description": "State filter", "name": "state", "in": "query"},
                    {"type": "boolean", "description": "Bypass the response cache", "name": "refresh", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Report"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/reports/alerts": {
            "get": {
                "description": "Evaluate every alert check for a trailing window",
                "produces": ["application/json"],
                "tags": ["reports"],
                "summary": "Operational alerts",
                "parameters": [
                    {"type": "integer", "description": "Trailing window in days (default 30)", "name": "windowDays", "in": "query"},
                    {"type": "string", "description": "City filter", "name": "city", "in": "query"},
                    {"type": "string", "description": "State filter", "name": "state", "in": "query"},
                    {"type": "boolean", "description": "Bypass the response cache", "name": "refresh", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.AlertsResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/runs": {
            "get": {
                "description": "List persisted report runs, newest first",
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "List runs",
                "parameters": [
                    {"type": "integer", "description": "Maximum rows (default 50)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/store.RunSummary"}}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/runs/{id}": {
            "get": {
                "description": "Fetch a persisted report with its branch errors",
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Get run",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.RunResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "handler.AlertsResponse": {
            "type": "object",
            "properties": {
                "runId": {"type": "string"},
                "windowDays": {"type": "integer"},
                "alerts": {"type": "array", "items": {"$ref": "#/definitions/model.Alert"}},
                "alertChecks": {"type": "array", "items": {"$ref": "#/definitions/model.AlertCheck"}},
                "timestamp": {"type": "string"}
            }
        },
        "handler.RunResponse": {
            "type": "object",
            "properties": {
                "report": {"$ref": "#/definitions/model.Report"},
                "branchErrors": {"type": "array", "items": {"$ref": "#/definitions/store.BranchError"}}
            }
        },
        "model.Alert": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "category": {"type": "string"},
                "severity": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "metricValue": {"type": "number"},
                "threshold": {"type": "number"},
                "routingHint": {"type": "string"}
            }
        },
        "model.AlertCheck": {
            "type": "object",
            "properties": {
                "category": {"type": "string"},
                "source": {"type": "string"},
                "available": {"type": "boolean"},
                "triggered": {"type": "boolean"},
                "missingReason": {"type": "string"}
            }
        },
        "model.Bottleneck": {
            "type": "object",
            "properties": {
                "stageId": {"type": "string"},
                "label": {"type": "string"},
                "count": {"type": "integer"},
                "averageDwellHours": {"type": "number"}
            }
        },
        "model.NegativeBreakdown": {
            "type": "object",
            "properties": {
                "category": {"type": "string"},
                "count": {"type": "integer"},
                "percentageOfTotal": {"type": "number", "x-nullable": true}
            }
        },
        "model.StageSnapshot": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "label": {"type": "string"},
                "count": {"type": "integer"},
                "averageDwellHours": {"type": "number"},
                "cumulativeDwellHours": {"type": "number"},
                "dwellSampleSize": {"type": "integer"},
                "conversionFromPrevious": {"type": "number", "x-nullable": true},
                "dropOffCount": {"type": "integer", "x-nullable": true},
                "available": {"type": "boolean"},
                "missingReason": {"type": "string"}
            }
        },
        "model.SourceStatus": {
            "type": "object",
            "properties": {
                "source": {"type": "string"},
                "available": {"type": "boolean"},
                "records": {"type": "integer"},
                "duplicates": {"type": "integer"},
                "attempts": {"type": "integer"},
                "durationNs": {"type": "integer"},
                "missingReason": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "model.Report": {
            "type": "object",
            "properties": {
                "runId": {"type": "string"},
                "windowDays": {"type": "integer"},
                "filter": {"type": "object", "properties": {"city": {"type": "string"}, "state": {"type": "string"}}},
                "stages": {"type": "array", "items": {"$ref": "#/definitions/model.StageSnapshot"}},
                "negativeBreakdown": {"type": "array", "items": {"$ref": "#/definitions/model.NegativeBreakdown"}},
                "overallConversionRate": {"type": "number", "x-nullable": true},
                "bottlenecks": {"type": "array", "items": {"$ref": "#/definitions/model.Bottleneck"}},
                "alerts": {"type": "array", "items": {"$ref": "#/definitions/model.Alert"}},
                "alertChecks": {"type": "array", "items": {"$ref": "#/definitions/model.AlertCheck"}},
                "traffic": {
                    "type": "object",
                    "properties": {
                        "visitors": {"type": "integer"},
                        "visitorToIntakeRate": {"type": "number", "x-nullable": true},
                        "available": {"type": "boolean"},
                        "missingReason": {"type": "string"}
                    }
                },
                "payments": {
                    "type": "object",
                    "properties": {
                        "total": {"type": "integer"},
                        "succeeded": {"type": "integer"},
                        "failed": {"type": "integer"},
                        "failureRate": {"type": "number", "x-nullable": true},
                        "available": {"type": "boolean"},
                        "missingReason": {"type": "string"}
                    }
                },
                "sources": {"type": "array", "items": {"$ref": "#/definitions/model.SourceStatus"}},
                "timestamp": {"type": "string"}
            }
        },
        "store.BranchError": {
            "type": "object",
            "properties": {
                "runId": {"type": "string"},
                "source": {"type": "string"},
                "reason": {"type": "string"},
                "message": {"type": "string"},
                "attempts": {"type": "integer"},
                "createdAt": {"type": "string"}
            }
        },
        "store.RunSummary": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "windowDays": {"type": "integer"},
                "city": {"type": "string"},
                "state": {"type": "string"},
                "alerts": {"type": "integer"},
                "unavailableSources": {"type": "integer"},
                "createdAt": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Funnel Metrics API",
	Description:      "Conversion funnel, bottleneck and alert reporting for the service marketplace.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
