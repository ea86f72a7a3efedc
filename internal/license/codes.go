package license

// Code is the protocol outcome of an activation attempt. Every activation
// response carries exactly one of these; they are first-class results, not
// errors.
type Code string

const (
	CodeMissingParams    Code = "MISSING_PARAMS"
	CodeInvalidDomain    Code = "INVALID_DOMAIN"
	CodeInvalidKey       Code = "INVALID_KEY"
	CodeRevoked          Code = "REVOKED"
	CodeExpired          Code = "EXPIRED"
	CodeDomainMismatch   Code = "DOMAIN_MISMATCH"
	CodeValid            Code = "VALID"
	CodeExpiredRequest   Code = "EXPIRED_REQUEST"
	CodeInvalidSignature Code = "INVALID_SIGNATURE"
	CodeServerError      Code = "SERVER_ERROR"
)

var codeMessages = map[Code]string{
	CodeMissingParams:    "license key and domain are required",
	CodeInvalidDomain:    "domain is not a valid hostname",
	CodeInvalidKey:       "license key is invalid",
	CodeRevoked:          "license has been revoked",
	CodeExpired:          "license has expired",
	CodeDomainMismatch:   "license is already activated on a different domain",
	CodeValid:            "license is valid for this domain",
	CodeExpiredRequest:   "request timestamp is outside the allowed window",
	CodeInvalidSignature: "request signature verification failed",
	CodeServerError:      "internal server error",
}

// Message returns the caller-facing message for the code.
func (c Code) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return string(c)
}

// OK reports whether the code is the success outcome.
func (c Code) OK() bool { return c == CodeValid }
