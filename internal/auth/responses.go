// responses.go -- Package-wide HTTP response helpers.
//
// The API speaks three body shapes, matching the front end's expectations:
// {"detail": ...} for flow outcomes, {"message"/"error": ...} for the
// confirmation endpoints, and {"field": ["msg", ...]} for validation errors.
package auth

import (
	"encoding/json"
	"net/http"
)

// Detail writes a {"detail": msg} JSON response with the given status code.
func Detail(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": msg})
}

// Message writes a {"message": msg} JSON response with the given status code.
func Message(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

// ErrorMessage writes an {"error": msg} JSON response with the given status code.
func ErrorMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// FieldErrors writes a 400 response mapping field names to failure messages.
func FieldErrors(w http.ResponseWriter, errs map[string][]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(errs)
}

// InternalServerError logs the error and returns a generic 500 JSON response.
// Never exposes internal error details to prevent information leakage.
func InternalServerError(w http.ResponseWriter, r *http.Request, err error) {
	logError(r, "internal server error", "error", err)
	Detail(w, http.StatusInternalServerError, "internal server error")
}
