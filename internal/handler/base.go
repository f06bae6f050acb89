package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/staffdir/internal/apperr"
	"github.com/staffdir/internal/store"
)

type envelope map[string]any

type BaseHandler struct {
	Logger *slog.Logger
}

func (h *BaseHandler) logError(r *http.Request, err error) {
	method := r.Method
	uri := r.URL.RequestURI()

	h.Logger.Error(err.Error(), "method", method, "uri", uri)
}

func (h *BaseHandler) errorResponse(w http.ResponseWriter, r *http.Request, status int, message any) {
	env := envelope{"error": message}

	err := h.writeJSON(w, status, env, nil)
	if err != nil {
		h.logError(r, err)
		w.WriteHeader(500)
	}
}

func (h *BaseHandler) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	h.logError(r, err)

	message := "the server encountered a problem and could not process your request"
	h.errorResponse(w, r, http.StatusInternalServerError, message)
}

func (h *BaseHandler) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	h.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

// errorFor maps a service error onto a status code and body.
func (h *BaseHandler) errorFor(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *apperr.ValidationError
		cerr *store.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		h.writeJSONOrLog(w, r, http.StatusBadRequest, envelope{"error": "validation failed", "details": verr.Fields})
	case errors.Is(err, apperr.ErrValidation):
		h.errorResponse(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrUnauthorized):
		h.errorResponse(w, r, http.StatusUnauthorized, rootMessage(err, apperr.ErrUnauthorized))
	case errors.Is(err, apperr.ErrForbidden):
		h.errorResponse(w, r, http.StatusForbidden, rootMessage(err, apperr.ErrForbidden))
	case errors.Is(err, apperr.ErrNotFound):
		h.errorResponse(w, r, http.StatusNotFound, "the requested resource could not be found")
	case errors.As(err, &cerr):
		h.errorResponse(w, r, http.StatusConflict, cerr.Field+" already registered")
	case errors.Is(err, apperr.ErrConflict):
		h.errorResponse(w, r, http.StatusConflict, "resource already exists")
	case errors.Is(err, apperr.ErrInvalidState):
		h.errorResponse(w, r, http.StatusConflict, rootMessage(err, apperr.ErrInvalidState))
	default:
		h.serverErrorResponse(w, r, err)
	}
}

// rootMessage returns the innermost wrapped message that still carries kind,
// with the kind text itself trimmed off.
func rootMessage(err, kind error) string {
	msg := err.Error()
	for {
		next := errors.Unwrap(err)
		if next == nil || next == kind || !errors.Is(next, kind) {
			break
		}
		err = next
		msg = err.Error()
	}
	msg = strings.TrimSuffix(msg, ": "+kind.Error())
	msg = strings.TrimPrefix(msg, kind.Error()+": ")
	return msg
}

func (h *BaseHandler) writeJSONOrLog(w http.ResponseWriter, r *http.Request, status int, data any) {
	if err := h.writeJSON(w, status, data, nil); err != nil {
		h.logError(r, err)
	}
}

func (h *BaseHandler) writeJSON(w http.ResponseWriter, status int, data any, headers http.Header) error {
	for k, v := range headers {
		for _, value := range v {
			w.Header().Add(k, value)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)

	if err := encoder.Encode(data); err != nil {
		return err
	}

	return nil
}

func (h *BaseHandler) readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576) // 1MB

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytesError.Limit)
		case errors.As(err, &invalidUnmarshalError):
			panic(err)
		default:
			return err
		}
	}

	// Ensure only a single JSON value is present in the body
	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

type pagination struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	Total       int  `json:"total"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// maxPage keeps (page-1)*limit far from overflow for any limit we accept.
const maxPage = 100_000

// readPage parses page/limit query parameters. Bad values fall back to the
// defaults; page is capped at maxPage and limit at maxLimit.
func readPage(r *http.Request, defLimit, maxLimit int) (page, limit int) {
	page = queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	page = min(page, maxPage)
	limit = queryInt(r, "limit", defLimit)
	if limit < 1 {
		limit = defLimit
	}
	return page, min(limit, maxLimit)
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

func newPagination(page, limit, total int) pagination {
	pages := (total + limit - 1) / limit
	return pagination{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  pages,
		HasNextPage: page < pages,
		HasPrevPage: page > 1,
	}
}
