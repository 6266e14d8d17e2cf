package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

// Error codes for different modules
const (
	// Success
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrUnauthorized    = 1003
	ErrForbidden       = 1004
	ErrConflict        = 1005
	ErrTooManyRequests = 1006
	ErrBadRequest      = 1007
	ErrServiceUnavail  = 1008

	// Auth errors (2000-2999)
	ErrAuthInvalidCredentials = 2000
	ErrAuthUserNotFound       = 2001
	ErrAuthEmailExists        = 2002
	ErrAuthAccountLocked      = 2003
	ErrAuthInvalidToken       = 2004
	ErrAuthTokenExpired       = 2005
	ErrAuthWeakPassword       = 2006
	ErrAuthInvalidEmail       = 2007

	// File errors (3000-3999)
	ErrFileNotFound         = 3000
	ErrFileDuplicate        = 3001
	ErrFileAlreadyVerified  = 3002
	ErrFileInvalidToken     = 3003
	ErrFileForbidden        = 3004
	ErrFileAlreadyShared    = 3005
	ErrFileRecipientUnknown = 3006
	ErrFileStorageFailed    = 3007
	ErrFileTooLarge         = 3008

	// Notification errors (4000-4999)
	ErrMailDeliveryFailed = 4000
)

// codeMap maps error codes to their details
var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	// Common errors
	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrUnauthorized:    {ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	ErrForbidden:       {ErrForbidden, http.StatusForbidden, "Forbidden"},
	ErrConflict:        {ErrConflict, http.StatusConflict, "Resource conflict"},
	ErrTooManyRequests: {ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests"},
	ErrBadRequest:      {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail:  {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},

	// Auth errors
	ErrAuthInvalidCredentials: {ErrAuthInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	ErrAuthUserNotFound:       {ErrAuthUserNotFound, http.StatusNotFound, "User not found"},
	ErrAuthEmailExists:        {ErrAuthEmailExists, http.StatusConflict, "Email already exists"},
	ErrAuthAccountLocked:      {ErrAuthAccountLocked, http.StatusForbidden, "Account locked due to too many failed attempts"},
	ErrAuthInvalidToken:       {ErrAuthInvalidToken, http.StatusUnauthorized, "Invalid or expired token"},
	ErrAuthTokenExpired:       {ErrAuthTokenExpired, http.StatusUnauthorized, "Token expired"},
	ErrAuthWeakPassword:       {ErrAuthWeakPassword, http.StatusBadRequest, "Password is too weak"},
	ErrAuthInvalidEmail:       {ErrAuthInvalidEmail, http.StatusBadRequest, "Invalid email format"},

	// File errors
	ErrFileNotFound:         {ErrFileNotFound, http.StatusNotFound, "File not found"},
	ErrFileDuplicate:        {ErrFileDuplicate, http.StatusConflict, "File already uploaded"},
	ErrFileAlreadyVerified:  {ErrFileAlreadyVerified, http.StatusBadRequest, "File already verified"},
	ErrFileInvalidToken:     {ErrFileInvalidToken, http.StatusNotFound, "Invalid or expired verification token"},
	ErrFileForbidden:        {ErrFileForbidden, http.StatusForbidden, "Not authorized to access this file"},
	ErrFileAlreadyShared:    {ErrFileAlreadyShared, http.StatusConflict, "File already shared with this user"},
	ErrFileRecipientUnknown: {ErrFileRecipientUnknown, http.StatusNotFound, "Recipient user not found"},
	ErrFileStorageFailed:    {ErrFileStorageFailed, http.StatusInternalServerError, "Storage operation failed"},
	ErrFileTooLarge:         {ErrFileTooLarge, http.StatusBadRequest, "File size exceeds limit"},

	// Notification errors
	ErrMailDeliveryFailed: {ErrMailDeliveryFailed, http.StatusBadGateway, "Failed to deliver notification email"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// IsSuccess checks if the code represents success
func IsSuccess(code int) bool {
	return code == Success
}

// IsClientError checks if the code represents a client error (4xx)
func IsClientError(code int) bool {
	status := GetHTTPStatus(code)
	return status >= 400 && status < 500
}

// IsServerError checks if the code represents a server error (5xx)
func IsServerError(code int) bool {
	return GetHTTPStatus(code) >= 500
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
