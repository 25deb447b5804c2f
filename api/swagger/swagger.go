package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "EduSched API",
        "description": "Scheduling and conflict-resolution engine for tutoring schools",
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
        {"name": "Auth", "description": "Authentication"},
        {"name": "Sessions", "description": "Booking and session lifecycle"},
        {"name": "Slots", "description": "Bookable slot computation"},
        {"name": "Availability", "description": "Teacher availability and exceptions"},
        {"name": "Templates", "description": "Recurring session templates"},
        {"name": "Policies", "description": "Booking policy resolution"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate a user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current user claims",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List sessions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "schoolId", "in": "query", "type": "string"},
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "kind", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Sessions"],
                "summary": "Book a class session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BookSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Booking conflict"},
                    "422": {"description": "Policy violation"}
                }
            }
        },
        "/sessions/{id}": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Get a session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/sessions/{id}/confirm": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Confirm a scheduled session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Invalid transition"}
                }
            }
        },
        "/sessions/{id}/reject": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Reject a scheduled session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Invalid transition"}
                }
            }
        },
        "/sessions/{id}/cancel": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Cancel a session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/CancelRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Invalid transition"},
                    "422": {"description": "Cancellation deadline passed"}
                }
            }
        },
        "/sessions/{id}/complete": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Complete a confirmed session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/CompleteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Invalid transition"}
                }
            }
        },
        "/sessions/{id}/no-show": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Mark a confirmed session as a no-show",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/NoShowRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Invalid transition"}
                }
            }
        },
        "/sessions/{id}/participants": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Add a participant to a group session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/JoinRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Capacity or calendar conflict"}
                }
            }
        },
        "/teachers/{id}/slots": {
            "get": {
                "tags": ["Slots"],
                "summary": "Compute bookable slots for a teacher",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "schoolId", "in": "query", "required": true, "type": "string"},
                    {"name": "from", "in": "query", "required": true, "type": "string"},
                    {"name": "to", "in": "query", "required": true, "type": "string"},
                    {"name": "duration", "in": "query", "required": true, "type": "integer"},
                    {"name": "kind", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers/{id}/availability": {
            "get": {
                "tags": ["Availability"],
                "summary": "List a teacher's weekly availability",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "schoolId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/availability": {
            "post": {
                "tags": ["Availability"],
                "summary": "Add a weekly availability window",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateAvailabilityRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/availability/{id}": {
            "put": {
                "tags": ["Availability"],
                "summary": "Update a weekly availability window",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateAvailabilityRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            },
            "delete": {
                "tags": ["Availability"],
                "summary": "Deactivate a weekly availability window",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No content"}
                }
            }
        },
        "/unavailability": {
            "post": {
                "tags": ["Availability"],
                "summary": "Record a date-scoped unavailability",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateUnavailabilityRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/unavailability/{id}": {
            "delete": {
                "tags": ["Availability"],
                "summary": "Remove an unavailability entry",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No content"}
                }
            }
        },
        "/schools/{schoolId}/policy": {
            "get": {
                "tags": ["Policies"],
                "summary": "Resolve the effective booking policy",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "schoolId", "in": "path", "required": true, "type": "string"},
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "kind", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/BookingPolicy"}}
                }
            }
        },
        "/schools/{schoolId}/teachers/{teacherId}/profile": {
            "put": {
                "tags": ["Policies"],
                "summary": "Set a teacher's scheduling overrides",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "schoolId", "in": "path", "required": true, "type": "string"},
                    {"name": "teacherId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertProfileRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/templates": {
            "post": {
                "tags": ["Templates"],
                "summary": "Create a recurring session template",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTemplateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/templates/{id}": {
            "delete": {
                "tags": ["Templates"],
                "summary": "Deactivate a template",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No content"}
                }
            }
        },
        "/templates/{id}/expand": {
            "post": {
                "tags": ["Templates"],
                "summary": "Expand a template into scheduled sessions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "weeks", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ExpansionResult"}}
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
        "BookSessionRequest": {
            "type": "object",
            "required": ["teacher_id", "student_id", "school_id", "date", "start_time", "end_time", "kind"],
            "properties": {
                "teacher_id": {"type": "string"},
                "student_id": {"type": "string"},
                "school_id": {"type": "string"},
                "date": {"type": "string", "example": "2025-08-15"},
                "start_time": {"type": "string", "example": "10:00"},
                "end_time": {"type": "string", "example": "11:00"},
                "kind": {"type": "string", "enum": ["INDIVIDUAL", "GROUP", "TRIAL"]},
                "max_participants": {"type": "integer"},
                "participants": {"type": "array", "items": {"type": "string"}},
                "notes": {"type": "string"}
            }
        },
        "CancelRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            }
        },
        "CompleteRequest": {
            "type": "object",
            "properties": {
                "actual_duration_minutes": {"type": "integer"}
            }
        },
        "NoShowRequest": {
            "type": "object",
            "required": ["type", "reason"],
            "properties": {
                "type": {"type": "string", "enum": ["STUDENT", "TEACHER"]},
                "reason": {"type": "string"}
            }
        },
        "JoinRequest": {
            "type": "object",
            "required": ["student_id"],
            "properties": {
                "student_id": {"type": "string"}
            }
        },
        "CreateAvailabilityRequest": {
            "type": "object",
            "required": ["teacher_id", "school_id", "day_of_week", "start_time", "end_time"],
            "properties": {
                "teacher_id": {"type": "string"},
                "school_id": {"type": "string"},
                "day_of_week": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"}
            }
        },
        "UpdateAvailabilityRequest": {
            "type": "object",
            "required": ["day_of_week", "start_time", "end_time"],
            "properties": {
                "day_of_week": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "active": {"type": "boolean"}
            }
        },
        "CreateUnavailabilityRequest": {
            "type": "object",
            "required": ["teacher_id", "school_id", "date"],
            "properties": {
                "teacher_id": {"type": "string"},
                "school_id": {"type": "string"},
                "date": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "is_all_day": {"type": "boolean"},
                "reason": {"type": "string"}
            }
        },
        "CreateTemplateRequest": {
            "type": "object",
            "required": ["teacher_id", "student_id", "school_id", "day_of_week", "start_time", "end_time", "kind", "start_date"],
            "properties": {
                "teacher_id": {"type": "string"},
                "student_id": {"type": "string"},
                "school_id": {"type": "string"},
                "day_of_week": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "kind": {"type": "string"},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"}
            }
        },
        "UpsertProfileRequest": {
            "type": "object",
            "properties": {
                "minimum_notice_minutes": {"type": "integer"},
                "buffer_minutes": {"type": "integer"},
                "daily_cap": {"type": "integer"},
                "weekly_cap": {"type": "integer"}
            }
        },
        "BookingPolicy": {
            "type": "object",
            "properties": {
                "minimum_notice_minutes": {"type": "integer"},
                "buffer_minutes": {"type": "integer"},
                "teacher_daily_cap": {"type": "integer"},
                "teacher_weekly_cap": {"type": "integer"},
                "student_daily_cap": {"type": "integer"},
                "student_weekly_cap": {"type": "integer"}
            }
        },
        "ExpansionResult": {
            "type": "object",
            "properties": {
                "template_id": {"type": "string"},
                "created": {"type": "integer"},
                "skipped": {"type": "integer"},
                "conflicts": {"type": "integer"}
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
