package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"season-predictions/internal/domain"
)

const maxBodyBytes = 1 << 20

type envelope map[string]any

var validate = validator.New()

// readJSON decodes exactly one JSON object from the body and validates it.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var syntaxError *json.SyntaxError
		var typeError *json.UnmarshalTypeError
		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &typeError):
			return fmt.Errorf("body contains incorrect JSON type for field %q", typeError.Field)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return fmt.Errorf("body contains unknown key %s", strings.TrimPrefix(err.Error(), "json: unknown field "))
		default:
			return err
		}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}
	return validate.Struct(dst)
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

func (h *Handler) respond(w http.ResponseWriter, status int, data any) {
	if err := writeJSON(w, status, data); err != nil {
		h.log.Error().Err(err).Msg("write response")
	}
}

func (h *Handler) errorResponse(w http.ResponseWriter, status int, message string) {
	h.respond(w, status, envelope{"error": message})
}

func (h *Handler) badRequest(w http.ResponseWriter, err error) {
	h.errorResponse(w, http.StatusBadRequest, err.Error())
}

// statusFor maps service errors onto status codes.
func statusFor(err error) int {
	switch {
	case domain.IsMissingEntity(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidGrader),
		errors.Is(err, domain.ErrNotSuperlative),
		errors.Is(err, domain.ErrMalformedQuestion):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// serviceError reports err with its mapped status. Unknown errors are
// logged and reported without detail.
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status != http.StatusInternalServerError {
		h.errorResponse(w, status, err.Error())
		return
	}
	h.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	h.errorResponse(w, status, "the server encountered a problem and could not process your request")
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
			next.ServeHTTP(w, r)
		})
	}
}
