package respond

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	applog "github.com/janisto/welcome-api/internal/platform/logging"
)

const (
	msgNotFound          = "resource not found"
	msgInternalServerErr = "internal server error"

	contentTypeProblemJSON = "application/problem+json"
	contentTypeProblemCBOR = "application/problem+cbor"
)

// problem is the RFC 9457 body written for router-level errors. Field names
// match huma.ErrorModel so clients decode both the same way.
type problem struct {
	Schema string `json:"$schema,omitempty"`
	Title  string `json:"title,omitempty"`
	Status int    `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`
}

var installOnce sync.Once

// Install routes huma's error construction through the request-aware logger.
// The error body itself stays huma's default problem model.
func Install() {
	installOnce.Do(func() {
		newError := huma.NewError
		huma.NewErrorWithContext = func(hctx huma.Context, status int, msg string, errs ...error) huma.StatusError {
			ctx := context.Background()
			if hctx != nil {
				ctx = hctx.Context()
			}
			logWithStatus(ctx, status, msg, errors.Join(errs...))
			return newError(status, msg, errs...)
		}
	})
}

// NotFoundHandler emits a problem-details 404 response.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, msgNotFound, nil)
	}
}

// MethodNotAllowedHandler emits a problem-details 405 response listing the
// methods the matched path does support in the Allow header.
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if allow := allowedMethods(r); len(allow) > 0 {
			w.Header().Set("Allow", strings.Join(allow, ", "))
		}
		detail := fmt.Sprintf("method %s not allowed", r.Method)
		writeProblem(w, r, http.StatusMethodNotAllowed, detail, nil)
	}
}

// Recoverer converts panics into problem-details 500 responses. When the
// handler already started the response, the panic is only logged.
// http.ErrAbortHandler is re-panicked so net/http can abort the connection.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				var err error
				switch v := rec.(type) {
				case error:
					err = v
				default:
					err = fmt.Errorf("%v", v)
				}
				err = fmt.Errorf("%w\n%s", err, debug.Stack())
				if rw.wroteHeader {
					applog.LogError(r.Context(), "panic after response started", err)
					return
				}
				writeProblem(rw, r, http.StatusInternalServerError, msgInternalServerErr, err)
			}()
			next.ServeHTTP(rw, r)
		})
	}
}

// responseWriter records whether the response has been started.
type responseWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string, cause error) {
	ctx := r.Context()
	logWithStatus(ctx, status, detail, cause)

	schema := schemaURL(r)
	p := problem{
		Schema: schema,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}

	var (
		body        []byte
		contentType string
		err         error
	)
	if selectFormat(r.Header.Get("Accept")) {
		contentType = contentTypeProblemCBOR
		body, err = cbor.Marshal(p)
	} else {
		contentType = contentTypeProblemJSON
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		err = enc.Encode(p)
		body = buf.Bytes()
	}
	if err != nil {
		applog.LogError(ctx, "failed to encode problem", err, zap.Int("status", status))
		http.Error(w, http.StatusText(status), status)
		return
	}

	h := w.Header()
	ensureVary(h, "Origin", "Accept")
	h.Set("Link", "<"+schema+`>; rel="describedBy"`)
	h.Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		applog.LogError(ctx, "failed to write problem", err, zap.Int("status", status))
	}
}

// schemaURL builds the absolute URL of the ErrorModel schema served by huma.
func schemaURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/schemas/ErrorModel.json"
}

// ensureVary appends each value to the Vary header unless already listed.
func ensureVary(h http.Header, values ...string) {
	seen := make(map[string]struct{})
	for _, v := range h.Values("Vary") {
		for part := range strings.SplitSeq(v, ",") {
			seen[strings.ToLower(strings.TrimSpace(part))] = struct{}{}
		}
	}
	for _, v := range values {
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		h.Add("Vary", v)
	}
}

// mediaRange is one entry of an Accept header.
type mediaRange struct {
	typ     string
	subtype string
	q       float64
}

// parseAccept splits an Accept header into media ranges. Types are lowercased,
// a bare type is read as type/*, and a missing or invalid q defaults to 1.
func parseAccept(accept string) []mediaRange {
	var ranges []mediaRange
	for part := range strings.SplitSeq(accept, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		params := strings.Split(part, ";")
		mediaType := strings.ToLower(strings.TrimSpace(params[0]))
		mr := mediaRange{q: 1.0}
		if typ, sub, ok := strings.Cut(mediaType, "/"); ok {
			mr.typ, mr.subtype = strings.TrimSpace(typ), strings.TrimSpace(sub)
		} else {
			mr.typ, mr.subtype = mediaType, "*"
		}
		for _, param := range params[1:] {
			key, value, ok := strings.Cut(param, "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(key), "q") {
				continue
			}
			q, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil || q < 0 || q > 1 {
				q = 1.0
			}
			mr.q = q
		}
		ranges = append(ranges, mr)
	}
	return ranges
}

// specificity ranks how closely mr matches application/<subtype>, or -1 when
// it does not match at all.
func (mr mediaRange) specificity(subtype string) int {
	switch {
	case mr.typ == "*" && mr.subtype == "*":
		return 0
	case mr.typ != "application":
		return -1
	case mr.subtype == "*":
		return 1
	case strings.HasPrefix(mr.subtype, "*+"):
		if _, suffix, ok := strings.Cut(subtype, "+"); ok && suffix == mr.subtype[2:] {
			return 2
		}
		return -1
	case mr.subtype == subtype:
		return 3
	default:
		return -1
	}
}

// formatScore returns the q-value and specificity the Accept ranges assign to
// a format, checking both its problem+ and base media types. For each media
// type the most specific matching range decides its q-value. An exact match on
// the problem+ type ranks above an exact match on the base type.
func formatScore(ranges []mediaRange, suffix string) (float64, int) {
	bestQ, bestSpec := 0.0, -1
	for _, subtype := range []string{"problem+" + suffix, suffix} {
		spec, q := -1, 0.0
		for _, mr := range ranges {
			s := mr.specificity(subtype)
			if s > spec || (s == spec && mr.q > q) {
				spec, q = s, mr.q
			}
		}
		if spec < 0 || q <= 0 {
			continue
		}
		if spec == 3 && strings.HasPrefix(subtype, "problem+") {
			spec = 4
		}
		if q > bestQ || (q == bestQ && spec > bestSpec) {
			bestQ, bestSpec = q, spec
		}
	}
	return bestQ, bestSpec
}

// selectFormat reports whether the problem should be encoded as CBOR. The
// q-value decides first, specificity breaks ties, and JSON wins otherwise.
func selectFormat(accept string) bool {
	ranges := parseAccept(accept)
	if len(ranges) == 0 {
		return false
	}
	cborQ, cborSpec := formatScore(ranges, "cbor")
	jsonQ, jsonSpec := formatScore(ranges, "json")
	if cborQ <= 0 {
		return false
	}
	if cborQ != jsonQ {
		return cborQ > jsonQ
	}
	return cborSpec > jsonSpec
}

// allowedMethods inspects chi's routing context to discover allowed methods.
func allowedMethods(r *http.Request) []string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return nil
	}

	routePath := rctx.RoutePath
	if routePath == "" {
		if r.URL.RawPath != "" {
			routePath = r.URL.RawPath
		} else {
			routePath = r.URL.Path
		}
		if routePath == "" {
			routePath = "/"
		}
	}

	methods := []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	}
	allowed := make([]string, 0, len(methods))
	for _, method := range methods {
		if rctx.Routes.Match(chi.NewRouteContext(), method, routePath) {
			allowed = append(allowed, method)
		}
	}
	return allowed
}

func logWithStatus(ctx context.Context, status int, msg string, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if msg == "" {
		msg = "request failed"
	}
	fields := []zap.Field{zap.Int("status", status)}
	switch {
	case status >= 500:
		applog.LogError(ctx, msg, err, fields...)
	case status >= 400:
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		applog.LogWarn(ctx, msg, fields...)
	default:
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		applog.LogInfo(ctx, msg, fields...)
	}
}
