package core

import (
	"errors"
	"fmt"
)

// Abort-class errors. Any of these stops an import before anything is
// persisted; their text is what the user sees.
var (
	ErrRequestNotFound       = errors.New("import request not found")
	ErrMissingAttachment     = errors.New("please attach a PLM file before importing")
	ErrUnsupportedFile       = errors.New("only CSV and Excel files are supported")
	ErrNoData                = errors.New("no data found in the attached file")
	ErrMissingItemCodeColumn = errors.New("missing required column: Number / Item Code")
	ErrMissingLevelColumn    = errors.New("missing required column: Structure Level")
	ErrNoValidRows           = errors.New("no valid rows found in the attached file")
	ErrRootItemNotFound      = errors.New("root item not found")
	ErrNoDefaultCompany      = errors.New("default company is not set")
	ErrNoDefaultCurrency     = errors.New("default currency is not set")
)

// ErrItemNotFound is returned by catalog maintenance for an unknown item code.
var ErrItemNotFound = errors.New("item not found")

// rootItemError names the missing root item and matches ErrRootItemNotFound.
type rootItemError struct{ code string }

func (e *rootItemError) Error() string {
	return fmt.Sprintf("root item %s not found. Please create the item first", e.code)
}

func (e *rootItemError) Is(target error) bool { return target == ErrRootItemNotFound }

// currencyError names the company lacking a currency and matches ErrNoDefaultCurrency.
type currencyError struct{ company string }

func (e *currencyError) Error() string {
	return fmt.Sprintf("default currency is not set for company %s", e.company)
}

func (e *currencyError) Is(target error) bool { return target == ErrNoDefaultCurrency }

// IsAbort reports whether err is one of the abort-class errors.
func IsAbort(err error) bool {
	for _, target := range []error{
		ErrMissingAttachment, ErrUnsupportedFile, ErrNoData,
		ErrMissingItemCodeColumn, ErrMissingLevelColumn, ErrNoValidRows,
		ErrRootItemNotFound, ErrNoDefaultCompany, ErrNoDefaultCurrency,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
