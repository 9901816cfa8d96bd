package events

import (
	"strconv"
	"time"
)

// Well-known event names used by the tracking helpers.
const (
	EventUserRegistered = "user_registered"
	EventUserLogin      = "user_login"
	EventAPIRequest     = "api_request"
	EventError          = "error"
	EventConversion     = "conversion"
	EventFeatureUsed    = "feature_used"
)

func (t *Tracker) TrackUserRegistration(userID, method string, opts ...TrackOption) {
	opts = append([]TrackOption{
		WithUser(userID),
		WithProperties(map[string]Value{"method": String(method)}),
	}, opts...)
	t.Track(EventUserRegistered, opts...)

	if t.store != nil {
		t.store.Inc("users_registered_total", "User registrations", map[string]string{"method": method})
	}
}

func (t *Tracker) TrackUserLogin(userID, sessionID string, opts ...TrackOption) {
	opts = append([]TrackOption{WithUser(userID), WithSession(sessionID)}, opts...)
	t.Track(EventUserLogin, opts...)

	if t.store != nil {
		t.store.Inc("user_logins_total", "User logins", nil)
	}
}

// TrackAPIRequest records a served request; the duration in milliseconds is
// the event value.
func (t *Tracker) TrackAPIRequest(endpoint, method string, status int, duration time.Duration, opts ...TrackOption) {
	ms := float64(duration) / float64(time.Millisecond)
	opts = append([]TrackOption{
		WithValue(ms),
		WithProperties(map[string]Value{
			"endpoint": String(endpoint),
			"method":   String(method),
			"status":   Int(status),
		}),
	}, opts...)
	t.Track(EventAPIRequest, opts...)

	if t.store != nil {
		t.store.Inc("api_requests_total", "API requests", map[string]string{
			"endpoint": endpoint,
			"method":   method,
			"status":   strconv.Itoa(status),
		})
		t.store.RecordHistogram("api_request_duration_ms", "API request duration", ms, map[string]string{
			"endpoint": endpoint,
			"method":   method,
		})
	}
}

func (t *Tracker) TrackError(errorType, message string, opts ...TrackOption) {
	opts = append([]TrackOption{
		WithProperties(map[string]Value{
			"error_type": String(errorType),
			"message":    String(message),
		}),
	}, opts...)
	t.Track(EventError, opts...)

	if t.store != nil {
		t.store.Inc("errors_total", "Application errors", map[string]string{"error_type": errorType})
	}
}

func (t *Tracker) TrackConversion(conversionType string, value float64, opts ...TrackOption) {
	opts = append([]TrackOption{
		WithValue(value),
		WithProperties(map[string]Value{"conversion_type": String(conversionType)}),
	}, opts...)
	t.Track(EventConversion, opts...)

	if t.store != nil {
		labels := map[string]string{"conversion_type": conversionType}
		t.store.Inc("conversions_total", "Conversions", labels)
		t.store.RecordHistogram("conversion_value", "Conversion value", value, labels)
	}
}

func (t *Tracker) TrackFeatureUsage(feature string, opts ...TrackOption) {
	opts = append([]TrackOption{
		WithProperties(map[string]Value{"feature": String(feature)}),
	}, opts...)
	t.Track(EventFeatureUsed, opts...)

	if t.store != nil {
		t.store.Inc("feature_usage_total", "Feature usage", map[string]string{"feature": feature})
	}
}
