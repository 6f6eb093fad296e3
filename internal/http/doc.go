// Package http exposes the club events API over chi.
//
// All payloads share one envelope: {"success","message","data"}. Failures add
// "error_code" and, for validation failures, an "errors" map keyed by JSON
// field name. The router serves:
//   - GET /health
//   - POST /api/auth/signup, POST /api/auth/login: issue a bearer token.
//     GET /api/auth/me and PUT /api/auth/profile read and edit the caller.
//   - GET /api/users: administrator account listing.
//   - GET /api/events, GET /api/events/{id}: public catalog with
//     page/limit/category/search/status/sortBy/order query parameters.
//     POST, PUT and DELETE on /api/events[/{id}], PATCH
//     /api/events/{id}/toggle-status and GET /api/events/my/events require a
//     token; mutations are limited to the creator or an administrator.
//   - /api/registrations: signup (POST /events/{eventId}), roster and stats
//     (GET /events/{eventId}), own registrations (GET /my), lookup, cancel,
//     feedback, and the status/attendance/payment PATCH endpoints.
//
// Request and response DTOs live alongside their handlers.
package http
