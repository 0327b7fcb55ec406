package auth

import "context"

type contextKey string

const (
	contextKeyRole    contextKey = "auth.role"
	contextKeySubject contextKey = "auth.subject"
	contextKeyDevice  contextKey = "auth.device"
)

// WithIdentity stores auth identity details in context.
func WithIdentity(ctx context.Context, role Role, subject string) context.Context {
	ctx = context.WithValue(ctx, contextKeyRole, role)
	ctx = context.WithValue(ctx, contextKeySubject, subject)
	return ctx
}

// WithDevice stores the meter that signed an upload.
func WithDevice(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, contextKeyDevice, deviceID)
}

// RoleFromContext extracts role from context.
func RoleFromContext(ctx context.Context) Role {
	if ctx == nil {
		return ""
	}
	if role, ok := ctx.Value(contextKeyRole).(Role); ok {
		return role
	}
	return ""
}

// SubjectFromContext extracts subject from context.
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if subject, ok := ctx.Value(contextKeySubject).(string); ok {
		return subject
	}
	return ""
}

// DeviceFromContext returns the meter that signed the upload, if any.
func DeviceFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if deviceID, ok := ctx.Value(contextKeyDevice).(string); ok {
		return deviceID
	}
	return ""
}
