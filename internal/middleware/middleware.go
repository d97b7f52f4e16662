// Package middleware provides the HTTP middleware of the employees API.
// Request metrics and logs are labelled with the API version and route
// template of the matched employees route.
package middleware

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/employees-api/internal/model"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// VersionNone labels requests outside the versioned /api/{version} tree.
const VersionNone = "none"

// Prometheus metrics.
var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "employees_http_requests_total",
			Help: "Total number of HTTP requests by API version, route and status",
		},
		[]string{"version", "method", "route", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "employees_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by API version and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"version", "method", "route"},
	)

	requestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "employees_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed by API version",
		},
		[]string{"version"},
	)

	panicsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "employees_http_panics_total",
			Help: "Total number of handler panics recovered by API version and route",
		},
		[]string{"version", "route"},
	)
)

// routeInfo describes the mux route a request matched.
type routeInfo struct {
	template   string
	version    string
	employeeID string // empty outside /employees/{id}
}

// routeOf reads the matched route. Without a match the raw path stands in
// for the template.
func routeOf(r *http.Request) routeInfo {
	info := routeInfo{template: r.URL.Path}
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			info.template = tmpl
		}
	}
	info.version = apiVersion(info.template)
	info.employeeID = mux.Vars(r)["id"]
	return info
}

// apiVersion returns the version segment of an /api/{version}/ path.
func apiVersion(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/")
	if !ok {
		return VersionNone
	}
	version, _, _ := strings.Cut(rest, "/")
	if version == "" {
		return VersionNone
	}
	return version
}

// quietRoutes are polled by orchestrators and scrapers and log at debug.
var quietRoutes = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// responseWriter records the status code and body size of a response.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.written {
		return
	}
	rw.statusCode = code
	rw.written = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Hijack lets the events feed upgrade to a WebSocket through the wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Middleware is a function that wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Logging returns a middleware that logs one line per request with its API
// version, route and employee id. Server errors log at error level and
// quiet routes at debug.
func Logging(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			info := routeOf(r)
			fields := []zap.Field{
				zap.String("api_version", info.version),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", info.template),
				zap.Int("status", rw.statusCode),
				zap.Int("bytes", rw.bytes),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("request_id", RequestIDFromContext(r.Context())),
			}
			if info.employeeID != "" {
				fields = append(fields, zap.String("employee_id", info.employeeID))
			}

			switch {
			case rw.statusCode >= http.StatusInternalServerError:
				logger.Error("http request", fields...)
			case quietRoutes[info.template]:
				logger.Debug("http request", fields...)
			default:
				logger.Info("http request", fields...)
			}
		})
	}
}

// Recovery returns a middleware that turns a handler panic into the API's
// JSON 500 body.
func Recovery(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					info := routeOf(r)
					panicsTotal.WithLabelValues(info.version, info.template).Inc()
					logger.Error("panic recovered",
						zap.Any("error", err),
						zap.String("stack", string(debug.Stack())),
						zap.String("api_version", info.version),
						zap.String("route", info.template),
						zap.String("method", r.Method),
						zap.String("request_id", RequestIDFromContext(r.Context())),
					)
					writeInternalError(w)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID returns a middleware that keeps the caller's X-Request-ID or
// assigns a new one. The id is echoed in the response and stored in the
// request context.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext returns the request id stored by RequestID, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Metrics returns a middleware that records request counts and latencies
// per API version and route template.
func Metrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)
			info := routeOf(r)

			inFlight := requestsInFlight.WithLabelValues(info.version)
			inFlight.Inc()
			defer inFlight.Dec()

			next.ServeHTTP(rw, r)

			requestsTotal.WithLabelValues(info.version, r.Method, info.template, strconv.Itoa(rw.statusCode)).Inc()
			requestDuration.WithLabelValues(info.version, r.Method, info.template).Observe(time.Since(start).Seconds())
		})
	}
}

// corsPolicy holds the precomputed CORS response headers.
type corsPolicy struct {
	origins  map[string]bool
	wildcard bool
	methods  string
	headers  string
}

// allowOrigin sets the origin headers for an allowed origin. A wildcard
// policy echoes any origin without credentials, since browsers reject
// credentials combined with a wildcard.
func (p corsPolicy) allowOrigin(h http.Header, origin string) {
	switch {
	case origin == "":
	case p.wildcard:
		h.Set("Access-Control-Allow-Origin", origin)
	case p.origins[origin]:
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
	}
}

// CORS returns a middleware that handles Cross-Origin Resource Sharing and
// answers preflight requests with 204.
func CORS(allowedOrigins, allowedMethods, allowedHeaders []string) Middleware {
	policy := corsPolicy{
		origins: make(map[string]bool, len(allowedOrigins)),
		methods: strings.Join(allowedMethods, ", "),
		headers: strings.Join(allowedHeaders, ", "),
	}
	for _, origin := range allowedOrigins {
		policy.origins[origin] = true
	}
	policy.wildcard = policy.origins["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")
			policy.allowOrigin(h, r.Header.Get("Origin"))
			h.Set("Access-Control-Allow-Methods", policy.methods)
			h.Set("Access-Control-Allow-Headers", policy.headers)
			h.Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeInternalError writes the API's JSON error body for a recovered panic.
func writeInternalError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(model.ErrorResponse{Error: model.MsgInternalServerError})
}
