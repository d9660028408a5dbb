package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Tutor Insights API",
        "description": "Tutor quality analytics, alerting and intervention campaigns",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        },
        "CronSecret": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Authentication"
        },
        {
            "name": "Trends"
        },
        {
            "name": "Risk"
        },
        {
            "name": "Cohorts"
        },
        {
            "name": "Alerts"
        },
        {
            "name": "Targeting"
        },
        {
            "name": "Interventions"
        },
        {
            "name": "Campaigns"
        },
        {
            "name": "Insights"
        },
        {
            "name": "Reports"
        },
        {
            "name": "Cron"
        }
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": [
                    "Authentication"
                ],
                "summary": "Authenticate operator",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/LoginRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Invalid credentials",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": [
                    "Authentication"
                ],
                "summary": "Refresh access token",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/RefreshTokenRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": [
                    "Authentication"
                ],
                "summary": "Revoke refresh token",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/RefreshTokenRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/trends/engagement": {
            "get": {
                "tags": [
                    "Trends"
                ],
                "summary": "Metric trend with moving average",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "metric",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "days",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "maWindow",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "tutorId",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "granularity",
                        "in": "query",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid query",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/trends/engagement/chart": {
            "get": {
                "tags": [
                    "Trends"
                ],
                "summary": "Metric trend HTML chart",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "metric",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "days",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "maWindow",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "tutorId",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "granularity",
                        "in": "query",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/trends/anomalies": {
            "get": {
                "tags": [
                    "Trends"
                ],
                "summary": "Metric anomalies",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "metric",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "days",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "maWindow",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "tutorId",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "granularity",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "window",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "multiplier",
                        "in": "query",
                        "type": "number"
                    },
                    {
                        "name": "minHistory",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "422": {
                        "description": "Insufficient data",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/trends/seasonal": {
            "get": {
                "tags": [
                    "Trends"
                ],
                "summary": "Seasonal patterns",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "metric",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "groupBy",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "days",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/trends/cohorts": {
            "get": {
                "tags": [
                    "Trends"
                ],
                "summary": "Cohort trend series",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "metric",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "groupBy",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "days",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/trends/retention": {
            "get": {
                "tags": [
                    "Trends"
                ],
                "summary": "Cohort retention curve",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "start",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "periodDays",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "periods",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/risk/sessions": {
            "get": {
                "tags": [
                    "Risk"
                ],
                "summary": "Upcoming high-risk sessions",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "daysAhead",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "level",
                        "in": "query",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/risk/sessions/{id}": {
            "get": {
                "tags": [
                    "Risk"
                ],
                "summary": "No-show risk for one session",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/risk/reliability": {
            "get": {
                "tags": [
                    "Risk"
                ],
                "summary": "Tutor reliability analysis",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "threshold",
                        "in": "query",
                        "type": "number"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/cohorts/segments": {
            "get": {
                "tags": [
                    "Cohorts"
                ],
                "summary": "Star, average and lagging segment analysis",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/cohorts/first-session": {
            "get": {
                "tags": [
                    "Cohorts"
                ],
                "summary": "First-session success comparison",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/cohorts/compare": {
            "post": {
                "tags": [
                    "Cohorts"
                ],
                "summary": "Compare two tutor groups",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CompareCohortsRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/alerts": {
            "get": {
                "tags": [
                    "Alerts"
                ],
                "summary": "List alerts",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "severity",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "category",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "tutorId",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "acknowledged",
                        "in": "query",
                        "type": "boolean"
                    },
                    {
                        "name": "resolved",
                        "in": "query",
                        "type": "boolean"
                    },
                    {
                        "name": "since",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "pageSize",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/alerts/statistics": {
            "get": {
                "tags": [
                    "Alerts"
                ],
                "summary": "Alert statistics",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "windowDays",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/alerts/high-priority": {
            "get": {
                "tags": [
                    "Alerts"
                ],
                "summary": "Open critical and high alerts",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/alerts/tutors/{tutorId}": {
            "get": {
                "tags": [
                    "Alerts"
                ],
                "summary": "Alerts for one tutor",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "tutorId",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "includeResolved",
                        "in": "query",
                        "type": "boolean"
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/alerts/{id}/acknowledge": {
            "post": {
                "tags": [
                    "Alerts"
                ],
                "summary": "Acknowledge an alert",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/alerts/{id}/resolve": {
            "post": {
                "tags": [
                    "Alerts"
                ],
                "summary": "Resolve an alert",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/alerts/{id}/intervention": {
            "post": {
                "tags": [
                    "Alerts"
                ],
                "summary": "Create an intervention from an alert",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "templateId": {
                                    "type": "string"
                                },
                                "variables": {
                                    "type": "object"
                                },
                                "draft": {
                                    "type": "boolean"
                                }
                            }
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/targeting/search": {
            "post": {
                "tags": [
                    "Targeting"
                ],
                "summary": "Find target tutors",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/TargetingRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/targeting/preview": {
            "post": {
                "tags": [
                    "Targeting"
                ],
                "summary": "Preview a target audience",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/TargetingRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/targeting/segments": {
            "get": {
                "tags": [
                    "Targeting"
                ],
                "summary": "Predefined segments",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/interventions/templates": {
            "get": {
                "tags": [
                    "Interventions"
                ],
                "summary": "Intervention template catalog",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/interventions": {
            "post": {
                "tags": [
                    "Interventions"
                ],
                "summary": "Create a single intervention",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateInterventionRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/campaigns": {
            "post": {
                "tags": [
                    "Campaigns"
                ],
                "summary": "Create a campaign",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "async",
                        "in": "query",
                        "type": "boolean"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateCampaignRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "202": {
                        "description": "Queued",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/campaigns/recommended": {
            "get": {
                "tags": [
                    "Campaigns"
                ],
                "summary": "Recommended campaigns",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/campaigns/{id}/stats": {
            "get": {
                "tags": [
                    "Campaigns"
                ],
                "summary": "Campaign funnel statistics",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/insights": {
            "get": {
                "tags": [
                    "Insights"
                ],
                "summary": "List pattern insights",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "patternType",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "status",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "minConfidence",
                        "in": "query",
                        "type": "number"
                    },
                    {
                        "name": "from",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "to",
                        "in": "query",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "Insights"
                ],
                "summary": "Record an insight",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateInsightRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/insights/stats": {
            "get": {
                "tags": [
                    "Insights"
                ],
                "summary": "Insight statistics",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/insights/{id}": {
            "patch": {
                "tags": [
                    "Insights"
                ],
                "summary": "Update insight status",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateInsightRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/reports": {
            "post": {
                "tags": [
                    "Reports"
                ],
                "summary": "Queue an export",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ReportRequest"
                        }
                    }
                ],
                "responses": {
                    "202": {
                        "description": "Accepted",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/reports/{id}": {
            "get": {
                "tags": [
                    "Reports"
                ],
                "summary": "Export job status",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/export/{token}": {
            "get": {
                "tags": [
                    "Reports"
                ],
                "summary": "Download a finished export",
                "produces": [
                    "text/csv",
                    "application/pdf"
                ],
                "parameters": [
                    {
                        "name": "token",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "File"
                    },
                    "403": {
                        "description": "Invalid or expired token",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/cron/alerts": {
            "post": {
                "tags": [
                    "Cron"
                ],
                "summary": "Run alert generation",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "CronSecret": []
                    }
                ]
            }
        },
        "/cron/deliveries": {
            "post": {
                "tags": [
                    "Cron"
                ],
                "summary": "Send pending intervention emails",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "CronSecret": []
                    }
                ]
            }
        },
        "/cron/insights": {
            "post": {
                "tags": [
                    "Cron"
                ],
                "summary": "Run insight discovery",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "CronSecret": []
                    }
                ]
            }
        },
        "/cron/high-risk": {
            "post": {
                "tags": [
                    "Cron"
                ],
                "summary": "Raise no-show risk alerts",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "CronSecret": []
                    }
                ]
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {
                    "type": "string"
                },
                "password": {
                    "type": "string"
                }
            },
            "required": [
                "email",
                "password"
            ]
        },
        "RefreshTokenRequest": {
            "type": "object",
            "properties": {
                "refresh_token": {
                    "type": "string"
                }
            },
            "required": [
                "refresh_token"
            ]
        },
        "CompareCohortsRequest": {
            "type": "object",
            "required": [
                "groupA",
                "groupB"
            ],
            "properties": {
                "groupA": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "groupB": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "metrics": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                }
            }
        },
        "TargetingRequest": {
            "type": "object",
            "properties": {
                "segment": {
                    "type": "string"
                },
                "criteria": {
                    "type": "object",
                    "description": "Targeting criteria (churn_risk_levels, primary_subjects, days_since_login, ...)"
                }
            }
        },
        "CreateInterventionRequest": {
            "type": "object",
            "properties": {
                "tutorId": {
                    "type": "string"
                },
                "templateId": {
                    "type": "string"
                },
                "variables": {
                    "type": "object"
                },
                "channel": {
                    "type": "string"
                },
                "draft": {
                    "type": "boolean"
                }
            },
            "required": [
                "tutorId",
                "templateId"
            ]
        },
        "CreateCampaignRequest": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "templateId": {
                    "type": "string"
                },
                "segment": {
                    "type": "string"
                },
                "criteria": {
                    "type": "object",
                    "description": "Targeting criteria (churn_risk_levels, primary_subjects, days_since_login, ...)"
                },
                "variables": {
                    "type": "object"
                },
                "channel": {
                    "type": "string"
                }
            },
            "required": [
                "name",
                "templateId"
            ]
        },
        "CreateInsightRequest": {
            "type": "object",
            "required": [
                "patternType",
                "title",
                "description"
            ],
            "properties": {
                "patternType": {
                    "type": "string"
                },
                "title": {
                    "type": "string"
                },
                "description": {
                    "type": "string"
                },
                "affectedTutorIds": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "statisticalSignificance": {
                    "type": "number"
                },
                "confidenceScore": {
                    "type": "number"
                }
            }
        },
        "UpdateInsightRequest": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string"
                },
                "actionTaken": {
                    "type": "string"
                }
            },
            "required": [
                "status"
            ]
        },
        "ReportRequest": {
            "type": "object",
            "properties": {
                "type": {
                    "type": "string"
                },
                "format": {
                    "type": "string"
                },
                "windowDays": {
                    "type": "integer"
                },
                "daysAhead": {
                    "type": "integer"
                },
                "threshold": {
                    "type": "number"
                },
                "severity": {
                    "type": "string"
                },
                "category": {
                    "type": "string"
                }
            },
            "required": [
                "type",
                "format"
            ]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                }
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
