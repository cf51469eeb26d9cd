package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Covenant Kids Check-In API",
        "description": "Children and teens ministry check-in service",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Two-step login with MFA"},
        {"name": "Children", "description": "Child registration and approval"},
        {"name": "Guardians", "description": "Guardian registry and authorization windows"},
        {"name": "Sessions", "description": "Ministry session scheduling"},
        {"name": "Bookings", "description": "Session bookings with per-child credentials"},
        {"name": "CheckIn", "description": "Arrival workflows (QR, OTP, manual)"},
        {"name": "CheckOut", "description": "Pickup credentials and release"},
        {"name": "Notifications", "description": "Notification polling"},
        {"name": "Reports", "description": "Attendance reporting and export"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Pending MFA session opened", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/auth/verify-mfa": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Verify login OTP",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VerifyMFARequest"}}
                ],
                "responses": {
                    "200": {"description": "Tokens issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Wrong or expired OTP", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/children": {
            "get": {
                "tags": ["Children"],
                "summary": "List children",
                "parameters": [
                    {"name": "parent_id", "in": "query", "type": "string"},
                    {"name": "group_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Children"],
                "summary": "Submit child registration",
                "responses": {
                    "201": {"description": "Pending approval", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/children/{id}/approve": {
            "post": {
                "tags": ["Children"],
                "summary": "Approve registration",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Approved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already reviewed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/children/{id}/guardians": {
            "get": {
                "tags": ["Guardians"],
                "summary": "List child guardians partitioned by authorization",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Active and expired sets", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/children/birthdays": {
            "get": {
                "tags": ["Children"],
                "summary": "List children with a birthday on the given date",
                "parameters": [
                    {"name": "date", "in": "query", "type": "string", "description": "YYYY-MM-DD, defaults to today"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/guardians": {
            "post": {
                "tags": ["Guardians"],
                "summary": "Register secondary guardian",
                "responses": {
                    "201": {"description": "Created with bounded window", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate contact", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/guardians/{id}/renew": {
            "post": {
                "tags": ["Guardians"],
                "summary": "Renew secondary guardian authorization",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Window extended", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/guardians/code/{code}": {
            "get": {
                "tags": ["Guardians"],
                "summary": "Look up guardian by family code",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown code", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List sessions",
                "parameters": [
                    {"name": "date", "in": "query", "type": "string"},
                    {"name": "month", "in": "query", "type": "string"},
                    {"name": "group_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Sessions"],
                "summary": "Schedule session",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/sessions/today": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Today's sessions",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/sessions/{id}/book": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Book children into session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Per-child QR and OTP issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/checkin/generate-qr": {
            "post": {
                "tags": ["CheckIn"],
                "summary": "Generate pre-check-in QR",
                "responses": {
                    "200": {"description": "Short-lived credential issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/checkin/scan-qr": {
            "post": {
                "tags": ["CheckIn"],
                "summary": "Check in by QR",
                "responses": {
                    "201": {"description": "Checked in", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already checked in or session closed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/checkin/verify-otp": {
            "post": {
                "tags": ["CheckIn"],
                "summary": "Check in by OTP",
                "responses": {
                    "201": {"description": "Checked in", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/checkin/status/{childID}": {
            "get": {
                "tags": ["CheckIn"],
                "summary": "Child attendance status",
                "parameters": [
                    {"name": "childID", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/checkout/notify/{childID}": {
            "post": {
                "tags": ["CheckOut"],
                "summary": "Request pickup",
                "parameters": [
                    {"name": "childID", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Pickup credential issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No open check-in", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/checkout/verify": {
            "post": {
                "tags": ["CheckOut"],
                "summary": "Verify pickup credential",
                "responses": {
                    "200": {"description": "Guardian authorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Guardian not authorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/checkout/release/{childID}": {
            "post": {
                "tags": ["CheckOut"],
                "summary": "Release child",
                "parameters": [
                    {"name": "childID", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReleaseRequest"}}
                ],
                "responses": {
                    "200": {"description": "Released", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already checked out", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List notifications",
                "parameters": [
                    {"name": "unread", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/notifications/{id}/read": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Mark one of the caller's notifications as read",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Marked read"},
                    "403": {"description": "Belongs to another recipient", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/reports/attendance": {
            "get": {
                "tags": ["Reports"],
                "summary": "Attendance summary",
                "parameters": [
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"},
                    {"name": "group_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/reports/export": {
            "get": {
                "tags": ["Reports"],
                "summary": "Export attendance report",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File download"},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "VerifyMFARequest": {
            "type": "object",
            "required": ["mfa_token", "otp"],
            "properties": {
                "mfa_token": {"type": "string"},
                "otp": {"type": "string"}
            }
        },
        "ReleaseRequest": {
            "type": "object",
            "required": ["guardian_id", "require_otp"],
            "properties": {
                "guardian_id": {"type": "string"},
                "otp": {"type": "string"},
                "require_otp": {"type": "boolean"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
