// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"net/http"
	"time"
)

// Middleware logs one access line per request. Health probes are logged at debug.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			logger := WithTraceContext(r.Context()).With().Str(FieldComponent, "http").Logger()
			ctx := logger.WithContext(r.Context())
			next.ServeHTTP(rec, r.WithContext(ctx))

			evt := logger.Info()
			switch {
			case rec.status >= 500:
				evt = logger.Error()
			case rec.status >= 400:
				evt = logger.Warn()
			case r.URL.Path == "/healthz":
				evt = logger.Debug()
			}
			evt.Str(FieldEvent, "request.handled").
				Str(FieldMethod, r.Method).
				Str(FieldPath, r.URL.Path).
				Int(FieldStatus, rec.status).
				Int("bytes", rec.bytes).
				Str(FieldRemoteAddr, r.RemoteAddr).
				Dur(FieldDuration, time.Since(start)).
				Msg("request handled")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
