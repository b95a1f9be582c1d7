package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "TutorHub Scoring API",
        "description": "Rule-driven point scoring engine for tutoring programs",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Scoring", "description": "Event ingestion and reversal support"},
        {"name": "History", "description": "Ledger listings and statements"}
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
        "/scoring/events": {
            "post": {
                "tags": ["Scoring"],
                "summary": "Apply a scoring event",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApplyEventRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload"},
                    "404": {"description": "Student not found"},
                    "409": {"description": "Concurrent update conflict"},
                    "412": {"description": "Scoring condition or curriculum missing"}
                }
            }
        },
        "/scoring/cache/refresh": {
            "post": {
                "tags": ["Scoring"],
                "summary": "Drop cached scoring conditions and curriculum",
                "responses": {
                    "204": {"description": "Caches dropped"}
                }
            }
        },
        "/scoring/history/last": {
            "get": {
                "tags": ["Scoring"],
                "summary": "Latest ledger entry for a student and event type",
                "parameters": [
                    {"name": "studentId", "in": "query", "required": true, "type": "string"},
                    {"name": "type", "in": "query", "required": true, "type": "string"},
                    {"name": "lesson", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No entry"}
                }
            }
        },
        "/scoring/students/{id}/history": {
            "get": {
                "tags": ["History"],
                "summary": "List a student's ledger entries",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "lesson", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scoring/students/{id}/statement": {
            "get": {
                "tags": ["History"],
                "summary": "Download a student's score statement",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "default": "csv"}
                ],
                "responses": {
                    "200": {"description": "Statement file"}
                }
            }
        }
    },
    "definitions": {
        "ApplyEventRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "type": {"type": "string", "enum": ["attendance", "homework", "quiz", "mock_exam"]},
                "lesson": {"type": "string"},
                "reverse_only": {"type": "boolean"},
                "attendance": {"$ref": "#/definitions/AttendancePayload"},
                "homework": {"$ref": "#/definitions/HomeworkPayload"},
                "quiz": {"$ref": "#/definitions/PercentagePayload"},
                "mock_exam": {"$ref": "#/definitions/PercentagePayload"}
            },
            "required": ["student_id", "type"]
        },
        "AttendancePayload": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["present", "absent"]},
                "previous_status": {"type": "string"}
            }
        },
        "HomeworkPayload": {
            "type": "object",
            "properties": {
                "percentage": {"type": "integer"},
                "previous_percentage": {"type": "integer"},
                "done": {"type": "string", "enum": ["done", "not_completed", "no_homework"]},
                "previous_done": {"type": "string"}
            }
        },
        "PercentagePayload": {
            "type": "object",
            "properties": {
                "percentage": {"type": "integer"},
                "previous_percentage": {"type": "integer"}
            }
        },
        "ApplyEventResult": {
            "type": "object",
            "properties": {
                "points_added": {"type": "integer"},
                "base_points": {"type": "integer"},
                "bonus_points": {"type": "integer"},
                "bonus_lessons": {"type": "array", "items": {"type": "string"}},
                "previous_score": {"type": "integer"},
                "new_score": {"type": "integer"},
                "process_id": {"type": "string"}
            }
        },
        "HistoryEntry": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "student_id": {"type": "string"},
                "process_id": {"type": "string"},
                "process_lesson": {"type": "string"},
                "event_type": {"type": "string"},
                "data": {"type": "object"},
                "score_before": {"type": "integer"},
                "score_added": {"type": "integer"},
                "score_after": {"type": "integer"},
                "base_points": {"type": "integer"},
                "bonus_points": {"type": "integer"},
                "bonus_lessons": {"type": "array", "items": {"type": "string"}},
                "created_at": {"type": "string"}
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
                "pagination": {"$ref": "#/definitions/Pagination"}
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
