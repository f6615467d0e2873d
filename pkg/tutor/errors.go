package tutor

import "errors"

// Custom error types for better error discrimination
var (
	// ErrSessionActive is returned when Start is called while a session is
	// already live.
	ErrSessionActive = errors.New("a live session is already active")

	// ErrMicUnavailable is returned when the microphone cannot be acquired
	ErrMicUnavailable = errors.New("microphone unavailable or permission denied")

	// ErrConnectionFailed is returned when the live connection cannot be
	// opened or breaks mid-session
	ErrConnectionFailed = errors.New("live connection failed")

	// ErrDecodeFailed marks a malformed audio payload; the chunk is dropped
	ErrDecodeFailed = errors.New("audio payload could not be decoded")

	// ErrInactivityTimeout marks a policy-driven teardown by the watchdog
	ErrInactivityTimeout = errors.New("session closed due to inactivity")

	// ErrSynthesisFailed is returned when TTS generation fails
	ErrSynthesisFailed = errors.New("speech synthesis failed")
)

// UserMessage converts a session error into user-facing guidance text. Raw
// errors never cross the session boundary.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrMicUnavailable):
		return "Microphone access is required. Please allow it in your system settings and try again."
	case errors.Is(err, ErrConnectionFailed):
		return "There was a connection problem. Please check your network and restart the discussion."
	case errors.Is(err, ErrInactivityTimeout):
		return "The session was closed automatically due to inactivity."
	case errors.Is(err, ErrSynthesisFailed):
		return "Audio playback could not be prepared. Please try again."
	default:
		return "Something went wrong talking to the AI service. Please try again shortly."
	}
}
