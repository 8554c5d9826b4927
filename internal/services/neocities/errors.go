package neocities

import (
	"encoding/json"
	"fmt"
)

// ErrorKind classifies failures surfaced by the gateway and the site catalog.
type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindAuth
	KindManifestParse
	KindLocalIO
	KindAPI
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "http request error"
	case KindAuth:
		return "authentication error"
	case KindManifestParse:
		return "site item list parse error"
	case KindLocalIO:
		return "local file read error"
	case KindAPI:
		return "api error"
	default:
		return fmt.Sprintf("unknown error kind %d", int(k))
	}
}

// Error is the single error type returned by this package and by internal/site.
// Kind is always one of the Kind* constants.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Sentinels for errors.Is matching on kind alone.
var (
	ErrNetwork       = &Error{Kind: KindNetwork}
	ErrAuth          = &Error{Kind: KindAuth}
	ErrManifestParse = &Error{Kind: KindManifestParse}
	ErrLocalIO       = &Error{Kind: KindLocalIO}
	ErrAPI           = &Error{Kind: KindAPI}
)

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// NetworkError wraps a transport or HTTP status failure.
func NetworkError(op string, err error) error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// ParseError wraps a malformed or schema-violating list response.
func ParseError(op string, err error) error {
	return &Error{Kind: KindManifestParse, Op: op, Err: err}
}

// LocalIOError wraps a failure to read a local file.
func LocalIOError(op string, err error) error {
	return &Error{Kind: KindLocalIO, Op: op, Err: err}
}

// ResultResponse is the envelope every API response carries.
type ResultResponse struct {
	Result    string `json:"result"`
	ErrorType string `json:"error_type,omitempty"`
	Message   string `json:"message,omitempty"`
}

// APIError is the detail carried by a KindAPI error.
type APIError struct {
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// CheckResult returns a KindAPI error when body is a {"result":"error"}
// envelope. Bodies that are not JSON objects are left for the caller to judge.
func CheckResult(body string) error {
	var res ResultResponse
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		return nil
	}
	if res.Result != "error" {
		return nil
	}
	return &Error{Kind: KindAPI, Op: "neocities", Err: &APIError{Type: res.ErrorType, Message: res.Message}}
}
