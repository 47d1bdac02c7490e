package handlers

// Common error message constants shared across handlers
const (
	ErrMsgInvalidRequestBody  = "Invalid request body"
	ErrMsgRequestBodyTooLarge = "Request body too large"
	ErrMsgInvalidCaseInstance = "Invalid case instance ID"
	ErrMsgInvalidCaseID       = "Invalid case ID"
	ErrMsgMissingSubjectID    = "subject_id is required"
	ErrMsgInvalidDate         = "Invalid date format (expected YYYY-MM-DD)"
	ErrMsgInvalidRunMode      = "Invalid run mode"
	ErrMsgUnauthorized        = "Unauthorized"
	ErrMsgInternal            = "Internal server error"
	ErrMsgDecisionNotFound    = "Decision not found"
)

// Error codes for failures outside the decision taxonomy
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeInternal        = "INTERNAL"
)

// API path constants
const (
	DecisionsAPIBasePath = "/api/v1/decisions"
	CasesAPIBasePath     = "/api/v1/cases"
	SubjectsAPIBasePath  = "/api/v1/subjects"
	AutomaticAPIBasePath = "/api/v1/automatic"
)

const (
	caseInstancePathParam = "caseInstanceId"
	caseIDPathParam       = "caseId"
	subjectIDQueryParam   = "subject_id"
	dateQueryParam        = "date"
	dateLayout            = "2006-01-02"
	maxRequestBodyBytes   = 64 << 10
)
