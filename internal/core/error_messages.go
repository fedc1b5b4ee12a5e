package core

// # Error Codes Reference
//
// User-facing errors carry a code support staff can look up. Codes are grouped
// by the pipeline stage that raised them:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large               Patterns: ErrFileTooLarge, "request body too large"
//	FILE002 - Unsupported format           Patterns: ErrUnsupportedFormat
//	FILE003 - File could not be parsed     Patterns: ErrParse
//	FILE004 - No file selected             Patterns: "no file provided"
//	FILE005 - No data rows in any sheet    Patterns: ErrEmptyWorkbook
//
// # Settings Errors (SET001-SET099)
//
//	SET001 - Filename settings rejected   Patterns: ErrInvalidFilenameSpec
//	SET002 - Render settings rejected     Patterns: ErrInvalidRenderSpec
//	SET003 - Sheet not found              Patterns: ErrSheetNotFound
//
// # Code Errors (QR001-QR099)
//
//	QR001 - Text too long for a QR code    Patterns: ErrEncoding
//	QR002 - Image could not be rendered    Patterns: ErrRender
//
// # Archive Errors (ZIP001-ZIP099)
//
//	ZIP001 - Archive could not be built    Patterns: ErrPackaging
//
// # Batch Errors (BAT001-BAT099)
//
//	BAT001 - System busy                   Patterns: ErrTooManyBatches
//	BAT002 - Session expired               Patterns: ErrSessionNotFound
//	BAT003 - Nothing generated yet         Patterns: ErrNoBatch
//	BAT004 - Code not found                Patterns: ErrCodeNotFound
//	BAT005 - Request cancelled             Patterns: context.Canceled
//	BAT006 - Request timed out             Patterns: context.DeadlineExceeded
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests            Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the application log for the original
// error when a user reports ERR000.
//
// Sentinel errors are matched with errors.Is first, in table order. Errors
// that arrive as plain text (for example from net/http) fall back to a
// case-insensitive substring match.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type sentinelMessage struct {
	target error
	msg    UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrFileTooLarge, UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the workbook or remove unused sheets",
		Code:    "FILE001",
	}},
	{ErrUnsupportedFormat, UserMessage{
		Message: "This file type is not supported",
		Action:  "Upload a .xlsx, .xlsm or .csv file",
		Code:    "FILE002",
	}},
	{ErrParse, UserMessage{
		Message: "The file could not be read",
		Action:  "Re-save the file from your spreadsheet application and try again",
		Code:    "FILE003",
	}},
	{ErrEmptyWorkbook, UserMessage{
		Message: "No sheet in this file has data rows",
		Action:  "Check that the file has a header row and at least one data row",
		Code:    "FILE005",
	}},
	{ErrInvalidFilenameSpec, UserMessage{
		Message: "The filename settings cannot be used",
		Action:  "Choose different columns or a separator without < > : \" / \\ | ? *",
		Code:    "SET001",
	}},
	{ErrInvalidRenderSpec, UserMessage{
		Message: "The image settings are out of range",
		Action:  "Use a module size of 1-20 and a border of 0-10",
		Code:    "SET002",
	}},
	{ErrSheetNotFound, UserMessage{
		Message: "Sheet not found",
		Action:  "Pick one of the sheets listed for this file",
		Code:    "SET003",
	}},
	{ErrEncoding, UserMessage{
		Message: "A URL is too long to fit in a QR code",
		Action:  "Shorten the URL or use a link shortener",
		Code:    "QR001",
	}},
	{ErrRender, UserMessage{
		Message: "A QR image could not be created",
		Action:  "Try a smaller output resolution",
		Code:    "QR002",
	}},
	{ErrPackaging, UserMessage{
		Message: "The download archive could not be built",
		Action:  "Please try again",
		Code:    "ZIP001",
	}},
	{ErrTooManyBatches, UserMessage{
		Message: "System is busy generating other batches",
		Action:  "Please wait a moment and try again",
		Code:    "BAT001",
	}},
	{ErrSessionNotFound, UserMessage{
		Message: "This workbook is no longer loaded",
		Action:  "Upload the file again",
		Code:    "BAT002",
	}},
	{ErrNoBatch, UserMessage{
		Message: "No QR codes have been generated yet",
		Action:  "Run a batch before downloading",
		Code:    "BAT003",
	}},
	{ErrCodeNotFound, UserMessage{
		Message: "QR code not found in the last batch",
		Action:  "Check the filename against the batch report",
		Code:    "BAT004",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "BAT005",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller sheet or fewer rows",
		Code:    "BAT006",
	}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns covers errors that do not wrap a sentinel. The first match
// wins, so specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the workbook or remove unused sheets",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a spreadsheet or CSV file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	err := fmt.Errorf("load %s: %w", name, ErrUnsupportedFormat)
//	msg := MapError(err)
//	// msg.Code == "FILE002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
