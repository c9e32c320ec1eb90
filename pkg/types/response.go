package types

import "github.com/laglue/storefront/pkg/enums"

type SuccessEnvelope struct {
	Data    any      `json:"data"`
	Notices []Notice `json:"notices,omitempty"`
}

// Notice is a short user-facing message the storefront shows as a toast.
type Notice struct {
	Level   enums.NoticeLevel `json:"level"`
	Message string            `json:"message"`
}

func NewNotice(level enums.NoticeLevel, message string) Notice {
	return Notice{Level: level, Message: message}
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
