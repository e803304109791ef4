package costmodel

// ErrorKind identifies which boundary-facing error taxonomy an *Error
// belongs to, so callers can branch with errors.As instead of matching
// message text.
type ErrorKind int

const (
	// FailedToParseQuery means the GraphQL document was syntactically
	// invalid.
	FailedToParseQuery ErrorKind = iota
	// FailedToParseVariables means the variables JSON was invalid.
	FailedToParseVariables
	// QueryNotCosted means at least one top-level selection matched no
	// statement.
	QueryNotCosted
	// CostModelFail means a matched statement's when/cost expression raised
	// a terminal error.
	CostModelFail
	// CompileError is returned only from Compile; it wraps one or more DSL
	// syntax or semantic errors.
	CompileError
)

func (k ErrorKind) String() string {
	switch k {
	case FailedToParseQuery:
		return "FailedToParseQuery"
	case FailedToParseVariables:
		return "FailedToParseVariables"
	case QueryNotCosted:
		return "QueryNotCosted"
	case CostModelFail:
		return "CostModelFail"
	case CompileError:
		return "CompileError"
	default:
		return "UnknownError"
	}
}

// Error is the typed error returned at the costmodel package boundary.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
