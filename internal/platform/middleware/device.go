package middleware

import (
	"context"
	"net/http"

	"github.com/mssola/useragent"
)

// DeviceClass is a coarse split of the requesting device. Desktop browsers
// rarely resolve a usable GPS fix, so the location step surfaces its bypass
// affordance immediately for them instead of after the wait window.
type DeviceClass string

const (
	DeviceClassMobile  DeviceClass = "mobile"
	DeviceClassDesktop DeviceClass = "desktop"
	DeviceClassBot     DeviceClass = "bot"
	DeviceClassUnknown DeviceClass = "unknown"
)

type contextKeyDeviceClass struct{}

// GetDeviceClass retrieves the classified device from the context.
func GetDeviceClass(ctx context.Context) DeviceClass {
	if v, ok := ctx.Value(contextKeyDeviceClass{}).(DeviceClass); ok {
		return v
	}
	return DeviceClassUnknown
}

// WithDeviceClass injects a device class into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithDeviceClass(ctx context.Context, class DeviceClass) context.Context {
	return context.WithValue(ctx, contextKeyDeviceClass{}, class)
}

// Device classifies the User-Agent header and stores the result in the
// request context.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		class := ClassifyUserAgent(r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(WithDeviceClass(r.Context(), class)))
	})
}

// ClassifyUserAgent buckets a raw User-Agent string.
func ClassifyUserAgent(raw string) DeviceClass {
	if raw == "" {
		return DeviceClassUnknown
	}
	ua := useragent.New(raw)
	switch {
	case ua.Bot():
		return DeviceClassBot
	case ua.Mobile():
		return DeviceClassMobile
	default:
		return DeviceClassDesktop
	}
}
