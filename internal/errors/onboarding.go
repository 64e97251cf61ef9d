package errors

var (
	ErrNotAuthenticated = &DomainError{
		Code:    CodeNotAuthenticated,
		Message: "you must be signed in",
	}
	ErrForbidden = &DomainError{
		Code:    CodeForbidden,
		Message: "access denied",
	}
	ErrApplicationNotFound = &DomainError{
		Code:    CodeNotFound,
		Message: "application not found",
	}
	ErrInvalidStatus = &DomainError{
		Code:    CodeInvalidStatus,
		Message: "status must be one of pending, approved, rejected",
	}
	ErrInvalidCredentials = &DomainError{
		Code:    CodeInvalidCredentials,
		Message: "invalid email or password",
	}
	ErrEmailTaken = &DomainError{
		Code:    CodeEmailTaken,
		Message: "email is already registered",
	}
)
