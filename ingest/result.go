package ingest

import "fmt"

// ResultCode is the outcome of one unit call.
type ResultCode int

const (
	OK ResultCode = iota
	ERROR
)

func (c ResultCode) String() string {
	if c == ERROR {
		return "ERROR"
	}
	return "OK"
}

// ErrorKind classifies failures for reporting.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	// KindUnitFatal is a failure that ended the unit's call early.
	KindUnitFatal
	// KindRecoverable is a per-item failure the unit carried on from.
	KindRecoverable
	// KindStore is a findings store failure.
	KindStore
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnitFatal:
		return "unit_fatal"
	case KindRecoverable:
		return "recoverable"
	case KindStore:
		return "store"
	default:
		return "none"
	}
}

// Result is returned from every unit call and pipeline step.
type Result struct {
	Code    ResultCode
	Kind    ErrorKind
	Message string
	Err     error
}

// Success returns an OK result.
func Success() Result {
	return Result{Code: OK}
}

// Failed returns an ERROR result of the given kind.
func Failed(kind ErrorKind, err error, msg string) Result {
	return Result{Code: ERROR, Kind: kind, Message: msg, Err: err}
}

func (r Result) IsOK() bool {
	return r.Code == OK
}

func (r Result) String() string {
	if r.IsOK() {
		return "OK"
	}
	if r.Err != nil {
		return fmt.Sprintf("ERROR(%s): %s: %v", r.Kind, r.Message, r.Err)
	}
	return fmt.Sprintf("ERROR(%s): %s", r.Kind, r.Message)
}
