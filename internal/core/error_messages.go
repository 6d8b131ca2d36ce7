package core

// error_messages.go maps errors to user-facing messages with support codes.
//
// # Error Codes Reference
//
// Import aborts (matched with errors.Is; the message is the error's own text):
//
//	REQ001  - Import request not found
//	FILE002 - Only CSV and Excel files are supported
//	FILE004 - No PLM file attached to the request
//	FILE005 - No data found in the attached file
//	VAL004  - Missing required column (Structure Level, Number / Item Code)
//	VAL007  - No valid rows found in the attached file
//	BOM001  - Root item not found
//	CFG001  - Default company is not set
//	CFG002  - Default currency is not set for the company
//	IMP002  - Too many imports running
//
// Infrastructure errors (matched case-insensitively on the error text):
//
//	DB001   - "duplicate key": name already taken, usually two imports racing
//	DB003   - "foreign key": referenced record missing
//	DB004   - "connection refused"
//	DB005   - "connection reset"
//	DB006   - "timeout"
//	DB007   - "deadlock"
//	FILE001 - "file too large"
//	FILE003 - "invalid csv", "read xlsx", "read xls": file could not be parsed
//	ATT001  - "attachment not found": stored file is gone
//	IMP004  - "context canceled"
//	IMP005  - "context deadline exceeded"
//	RATE001 - "rate limit"
//	ERR000  - anything else; check the server log for the technical error

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// sentinelMessage pairs an error target with its code and action.
type sentinelMessage struct {
	target error
	code   string
	action string
}

var sentinelMessages = []sentinelMessage{
	{ErrRequestNotFound, "REQ001", "Check the import request id"},
	{ErrUnsupportedFile, "FILE002", "Attach a .csv, .xlsx or .xls file"},
	{ErrMissingAttachment, "FILE004", "Attach the PLM export to the request and try again"},
	{ErrNoData, "FILE005", "The file needs a header row and at least one data row"},
	{ErrMissingLevelColumn, "VAL004", "Add a Structure Level (or Level) column"},
	{ErrMissingItemCodeColumn, "VAL004", "Add a Number, Item Code or Code column"},
	{ErrNoValidRows, "VAL007", "Every row needs both a structure level and an item code"},
	{ErrRootItemNotFound, "BOM001", "Import items first, then import the BOM tree"},
	{ErrNoDefaultCompany, "CFG001", "Set IMPORT_DEFAULT_COMPANY"},
	{ErrNoDefaultCurrency, "CFG002", "Set IMPORT_DEFAULT_CURRENCY"},
	{ErrTooManyImports, "IMP002", "Please wait a moment and try again"},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is searched in order; the first match wins, so specific
// patterns come before general ones.
var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{
		Message: "A record with this name already exists",
		Action:  "Another import may have created it; run the import again",
		Code:    "DB001",
	}},
	{"foreign key", UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Import the items before importing the BOM tree",
		Code:    "DB003",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}},
	{"file too large", UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Split the parts list into smaller files",
		Code:    "FILE001",
	}},
	{"invalid csv", UserMessage{
		Message: "The attached file could not be read",
		Action:  "Re-export the parts list and attach it again",
		Code:    "FILE003",
	}},
	{"read xlsx", UserMessage{
		Message: "The attached file could not be read",
		Action:  "Re-export the parts list and attach it again",
		Code:    "FILE003",
	}},
	{"read xls", UserMessage{
		Message: "The attached file could not be read",
		Action:  "Re-export the parts list and attach it again",
		Code:    "FILE003",
	}},
	{"attachment not found", UserMessage{
		Message: "The attached file is no longer available",
		Action:  "Attach the file again",
		Code:    "ATT001",
	}},
	{"context canceled", UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "IMP004",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Import timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "IMP005",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "DB006",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-friendly message. Abort-class errors
// keep their own text, so the user sees e.g. "Root item BRK-1 not found.
// Please create the item first."
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return UserMessage{
				Message: sentence(innermost(err, sm.target).Error()),
				Action:  sm.action,
				Code:    sm.code,
			}
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

// innermost walks err's chain to the first link that matches target, so
// context added by callers ("import bom tree: ...") stays out of the message.
func innermost(err, target error) error {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if e == target {
			return e
		}
		if is, ok := e.(interface{ Is(error) bool }); ok && is.Is(target) {
			return e
		}
	}
	return err
}

// sentence upper-cases the first letter and ends the text with a period.
func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	s = string(r)
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return s
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError carries a technical error together with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
