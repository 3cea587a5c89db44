package core

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNone            ErrorKind = ""
	KindNoCredentials   ErrorKind = "no_credentials"
	KindRefreshFailed   ErrorKind = "refresh_failed"
	KindAPI             ErrorKind = "api_error"
	KindTransport       ErrorKind = "transport_failure"
	KindNoUsageData     ErrorKind = "no_usage_data"
	KindUnexpectedFault ErrorKind = "unexpected_fault"
)

// FetchError is a provider failure captured into ProviderUsage.Error.
// Error() is the user-visible message.
type FetchError struct {
	Kind   ErrorKind
	Status int
	Msg    string
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindRefreshFailed:
		return "Token refresh failed: " + causeText(e.Err)
	case KindTransport:
		return "Fetch failed: " + causeText(e.Err)
	case KindAPI:
		if e.Msg != "" {
			return e.Msg
		}
		return fmt.Sprintf("API %d", e.Status)
	}
	if e.Msg != "" {
		return e.Msg
	}
	return causeText(e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func causeText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func NoCredentials(msg string) error {
	if msg == "" {
		msg = "No credentials found"
	}
	return &FetchError{Kind: KindNoCredentials, Msg: msg}
}

func RefreshFailed(err error) error {
	return &FetchError{Kind: KindRefreshFailed, Err: err}
}

// APIStatus reports a non-2xx response. body, when non-empty, is appended
// to the message.
func APIStatus(status int, body string) error {
	e := &FetchError{Kind: KindAPI, Status: status}
	if body != "" {
		e.Msg = fmt.Sprintf("API %d: %s", status, body)
	}
	return e
}

// APIMessage reports a non-2xx response with a provider-specific meaning.
func APIMessage(status int, msg string) error {
	return &FetchError{Kind: KindAPI, Status: status, Msg: msg}
}

func Transport(err error) error {
	return &FetchError{Kind: KindTransport, Err: err}
}

func NoUsageData(msg string) error {
	return &FetchError{Kind: KindNoUsageData, Msg: msg}
}

// KindOf classifies err; errors outside the taxonomy are unexpected faults.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnexpectedFault
}
