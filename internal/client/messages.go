package client

import "errors"

// UserMessage renders err as text suitable for an end user. Login failures
// never reveal whether the account exists.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var ce *Error
	msg := ""
	if errors.As(err, &ce) {
		msg = ce.Message
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrSessionInvalidated),
		errors.Is(err, ErrNoActiveSession):
		return "Your session has expired. Please login again."
	case errors.Is(err, ErrForbidden):
		return "You don't have permission to access this resource."
	case errors.Is(err, ErrNotFound):
		return "The requested resource was not found."
	case errors.Is(err, ErrRateLimited):
		return "Too many requests. Please wait a moment and try again."
	case errors.Is(err, ErrValidation):
		if msg != "" {
			return msg
		}
		return "The request was rejected. Please check your input."
	case errors.Is(err, ErrServer):
		if msg == "" {
			msg = "internal error"
		}
		return "Server error: " + msg
	case errors.Is(err, ErrNetworkUnreachable):
		return "No response received from the server. Please check your network connection."
	case errors.Is(err, ErrProtocol):
		return "The server returned an unexpected response."
	default:
		return "An unexpected error occurred."
	}
}
