package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the migration pipeline.
var (
	// ErrInvalidArchive marks an upload that is not a well-formed ZIP container.
	ErrInvalidArchive = errors.New("invalid archive")
	// ErrEmptyArchive marks a well-formed archive with nothing importable in it.
	ErrEmptyArchive = errors.New("archive contains no importable files")
	// ErrUnparseableEntry marks a recognized entry whose content could not be decoded.
	ErrUnparseableEntry = errors.New("unparseable entry")
	// ErrTenantCreationFailed marks a failed remote tenant creation.
	ErrTenantCreationFailed = errors.New("tenant creation failed")
	// ErrEmptySelection marks an attempt to continue with zero selected files.
	ErrEmptySelection = errors.New("no files selected")
	// ErrInvalidTransition marks a wizard action not allowed in the current step.
	ErrInvalidTransition = errors.New("invalid wizard transition")
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
)

// Error carries a stable code and a message safe to show next to the control
// that triggered it.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// UserMessage returns the message without internal error details.
func (e *Error) UserMessage() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewInvalidArchiveError wraps a container decoding failure.
func NewInvalidArchiveError(cause error) error {
	return &Error{
		Code:    "INVALID_ARCHIVE",
		Message: "the uploaded file is not a valid ZIP archive",
		Err:     errors.Join(ErrInvalidArchive, cause),
	}
}

// NewEmptyArchiveError reports an archive without importable files.
func NewEmptyArchiveError() error {
	return &Error{
		Code:    "EMPTY_ARCHIVE",
		Message: "the archive contains no importable files",
		Err:     ErrEmptyArchive,
	}
}

// NewUnparseableEntryError wraps a per-file decoding failure.
func NewUnparseableEntryError(name string, cause error) error {
	return &Error{
		Code:    "UNPARSEABLE_ENTRY",
		Message: fmt.Sprintf("file '%s' could not be read", name),
		Err:     errors.Join(ErrUnparseableEntry, cause),
	}
}

// NewTenantCreationError wraps a failure of the tenant collaborator.
func NewTenantCreationError(name string, cause error) error {
	return &Error{
		Code:    "TENANT_CREATION_FAILED",
		Message: fmt.Sprintf("company '%s' could not be created", name),
		Err:     errors.Join(ErrTenantCreationFailed, cause),
	}
}

// NewEmptySelectionError reports a confirm with no files selected.
func NewEmptySelectionError() error {
	return &Error{
		Code:    "EMPTY_SELECTION",
		Message: "select at least one file to continue",
		Err:     ErrEmptySelection,
	}
}

// NewInvalidTransitionError reports an action issued from the wrong step.
func NewInvalidTransitionError(action, step string) error {
	return &Error{
		Code:    "INVALID_TRANSITION",
		Message: fmt.Sprintf("'%s' is not available in step '%s'", action, step),
		Err:     ErrInvalidTransition,
	}
}

func NewNotFoundError(resourceType, name string) error {
	return &Error{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s '%s' not found", resourceType, name),
		Err:     ErrNotFound,
	}
}

func NewInvalidInputError(message string) error {
	return &Error{
		Code:    "INVALID_INPUT",
		Message: message,
		Err:     ErrInvalidInput,
	}
}

func IsInvalidArchive(err error) bool       { return errors.Is(err, ErrInvalidArchive) }
func IsEmptyArchive(err error) bool         { return errors.Is(err, ErrEmptyArchive) }
func IsUnparseableEntry(err error) bool     { return errors.Is(err, ErrUnparseableEntry) }
func IsTenantCreationFailed(err error) bool { return errors.Is(err, ErrTenantCreationFailed) }
func IsEmptySelection(err error) bool       { return errors.Is(err, ErrEmptySelection) }
func IsInvalidTransition(err error) bool    { return errors.Is(err, ErrInvalidTransition) }
func IsNotFound(err error) bool             { return errors.Is(err, ErrNotFound) }
func IsInvalidInput(err error) bool         { return errors.Is(err, ErrInvalidInput) }

// UserMessage extracts the inline message of err, falling back to a generic one.
func UserMessage(err error) string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.UserMessage()
	}
	return "an error occurred"
}

// Detail returns the underlying cause of a domain error, without the sentinel
// it was joined with. Other errors are returned as their plain message.
func Detail(err error) string {
	var domainErr *Error
	if !errors.As(err, &domainErr) || domainErr.Err == nil {
		if err == nil {
			return ""
		}
		return err.Error()
	}

	joined, ok := domainErr.Err.(interface{ Unwrap() []error })
	if !ok {
		return domainErr.Message
	}
	for _, e := range joined.Unwrap() {
		if !isSentinel(e) {
			return e.Error()
		}
	}
	return domainErr.Message
}

func isSentinel(err error) bool {
	switch err {
	case ErrInvalidArchive, ErrEmptyArchive, ErrUnparseableEntry, ErrTenantCreationFailed,
		ErrEmptySelection, ErrInvalidTransition, ErrNotFound, ErrInvalidInput:
		return true
	}
	return false
}
