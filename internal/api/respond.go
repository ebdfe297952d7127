// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/overlay"
)

// maxBodyBytes bounds request bodies. Overlay uploads are base64 data URLs,
// a third larger than the image ceiling.
const maxBodyBytes = overlay.MaxImageBytes*4/3 + 64*1024

var errBodyTooLarge = errors.New("request body too large")

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeBadRequest reports a client-side input problem.
func writeBadRequest(w http.ResponseWriter, err error) {
	writeErrorMessage(w, http.StatusBadRequest, err.Error())
}

func writeUnauthorized(w http.ResponseWriter) {
	writeErrorMessage(w, http.StatusUnauthorized, "unauthorized")
}

func writeForbidden(w http.ResponseWriter) {
	writeErrorMessage(w, http.StatusForbidden, "forbidden")
}

func writeNotFound(w http.ResponseWriter) {
	writeErrorMessage(w, http.StatusNotFound, "not found")
}

// writeInternal hides storage details behind a generic message; the cause is
// logged by the caller.
func writeInternal(w http.ResponseWriter) {
	writeErrorMessage(w, http.StatusInternalServerError, "internal server error")
}

// decodeBody reads a JSON object from r. An empty body decodes as {}.
func decodeBody(r *http.Request, v any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(raw) > maxBodyBytes {
		return errBodyTooLarge
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}
