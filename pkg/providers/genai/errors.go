package genai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// APIError is a non-200 answer from the generateContent endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("genai api error (status %d): %s", e.StatusCode, e.Message)
}

// retryable reports whether a fresh attempt could plausibly succeed.
// Auth and validation failures never recover on their own.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return false
		}
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// UserMessage translates a provider failure into guidance a learner can act
// on without reading the raw error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case strings.Contains(apiErr.Message, "API key not valid"):
			return "Your Gemini API key is not valid. Please check it and try again."
		case apiErr.StatusCode == http.StatusForbidden:
			return "Permission denied. Please check your API key permissions."
		case apiErr.StatusCode == http.StatusTooManyRequests || strings.Contains(apiErr.Message, "quota"):
			return "The API usage quota has been exceeded. Please try again in a moment."
		}
		return "The AI server is not responding normally. Please try again in a moment."
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "The request timed out. Please try again."
		}
		return "The network connection is unstable. A stable Wi-Fi connection is recommended."
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The request timed out. Please try again."
	}

	return "The AI server is not responding normally. Please try again in a moment."
}
