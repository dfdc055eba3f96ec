// Package middleware provides HTTP middleware for the crop advisor API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// HeaderDeviceID identifies the calling device. Offline clients send it so that rate
// limits and logs follow the device rather than a shared NAT address.
const HeaderDeviceID = "X-Device-Id"

const maxDeviceIDLength = 64

type requestIDKey struct{}

type deviceIDKey struct{}

// RequestID propagates X-Request-Id, generating one when absent, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = "req_" + uuid.New().String()[:22]
		}
		w.Header().Set("X-Request-Id", requestID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		if deviceID := sanitizeDeviceID(r.Header.Get(HeaderDeviceID)); deviceID != "" {
			ctx = context.WithValue(ctx, deviceIDKey{}, deviceID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GetDeviceID retrieves the caller's device ID from the context, if it sent one.
func GetDeviceID(ctx context.Context) string {
	if id, ok := ctx.Value(deviceIDKey{}).(string); ok {
		return id
	}
	return ""
}

// sanitizeDeviceID keeps only printable ASCII without spaces and caps the length.
func sanitizeDeviceID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	var b strings.Builder
	for _, c := range raw {
		if c > ' ' && c < 0x7f {
			b.WriteRune(c)
		}
		if b.Len() == maxDeviceIDLength {
			break
		}
	}
	return b.String()
}
