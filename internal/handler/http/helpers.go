package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/backoffice/internal/apperr"
	"github.com/vasiliy-maslov/backoffice/internal/catalog"
	"github.com/vasiliy-maslov/backoffice/internal/invoice"
	"github.com/vasiliy-maslov/backoffice/internal/order"
	"github.com/vasiliy-maslov/backoffice/internal/stock"
)

const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

// respondWithError sends a JSON error body.
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

// respondWithJSON sends payload as JSON.
func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

var errorStatuses = []struct {
	err  error
	code int
}{
	{catalog.ErrProductNotFound, http.StatusNotFound},
	{stock.ErrStockItemNotFound, http.StatusNotFound},
	{invoice.ErrInvoiceNotFound, http.StatusNotFound},
	{order.ErrOrderNotFound, http.StatusNotFound},
	// A cart naming a product that no longer exists is stale, not missing.
	{order.ErrProductNotFound, http.StatusConflict},
	{stock.ErrInsufficientStock, http.StatusConflict},
	{order.ErrZeroPricedLine, http.StatusConflict},
	{order.ErrInvalidStatusTransition, http.StatusConflict},
	{invoice.ErrDuplicateSourceOrder, http.StatusConflict},
}

// mapErrorToStatusCode also returns the sentinel that matched, whose text is
// safe to show.
func mapErrorToStatusCode(err error) (int, error) {
	if apperr.IsValidation(err) {
		return http.StatusUnprocessableEntity, apperr.ErrValidation
	}
	for _, s := range errorStatuses {
		if errors.Is(err, s.err) {
			return s.code, s.err
		}
	}
	return http.StatusInternalServerError, nil
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			details[field] = "is required"
		case "email":
			details[field] = "must be a valid email"
		case "url":
			details[field] = "must be a valid URL"
		case "min", "max", "len", "gt", "gte", "lte":
			details[field] = "must satisfy " + fe.Tag() + "=" + fe.Param()
		default:
			details[field] = "is invalid"
		}
	}
	return details
}

// base carries what every handler shares.
type base struct {
	validate *validator.Validate
	verbose  bool
}

func newBase(verbose bool) base {
	return base{validate: validator.New(), verbose: verbose}
}

// decode reads and shape-validates a JSON body, answering 400 itself on
// failure.
func (b base) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}

	if err := b.validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
			return false
		}
		log.Error().Err(err).Type("validation_error_type", err).Msg("Unexpected error type during validation")
		respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		return false
	}
	return true
}

// fail answers with the status mapped from err. action names what failed,
// e.g. "create product".
func (b base) fail(w http.ResponseWriter, r *http.Request, err error, action string) {
	code, sentinel := mapErrorToStatusCode(err)

	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		respondWithJSON(w, code, ValidationErrorResponse{
			Error:   "Validation failed",
			Details: map[string]string{ve.Field: ve.Message},
		})
		return
	}

	resp := ErrorResponse{Error: "Failed to " + action}
	if sentinel != nil {
		resp.Error = sentinel.Error()
	}
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Failed to " + action + " via service")
	}
	if b.verbose {
		resp.Detail = err.Error()
	}
	respondWithJSON(w, code, resp)
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		log.Warn().Str(name, raw).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "Invalid "+name+" parameter")
		return 0, false
	}
	return id, true
}

// limitParam reads ?limit=; absent means 0, which services replace with
// their default.
func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid limit parameter")
		return 0, false
	}
	return limit, true
}

// flexString accepts either a JSON string or a JSON number and keeps the
// text, so "12,5" and 12.5 both reach the parsers untouched.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) String() string {
	return string(f)
}

func optionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}
