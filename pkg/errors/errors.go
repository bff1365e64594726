package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// Code is the type representing a namespace error code.
type Code[MT any] struct {
	Code       uint16
	Name       string
	HTTPStatus int
}

// New creates a new error with the given code and the message
func (c Code[MT]) New(msg string, args ...any) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: fmt.Errorf(msg, args...),
	}
}

// Wrap creates a new Error with the given code and the cause error
func (c Code[MT]) Wrap(cause error) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: cause,
	}
}

func (c Code[MT]) String() string {
	return fmt.Sprintf("%s (%d)", c.Name, c.Code)
}

type Error interface {
	error
	Log() *log.Entry
	Code() uint16
	CodeName() string
	HTTPStatus() int
	Metadata() map[string]string
}

type TypedError[MT any] interface {
	Error
	WithMetadata(MT) TypedError[MT]
}

// ErrorImpl is the default concrete implementation of TypedError.
type ErrorImpl[MT any] struct {
	code     Code[MT]
	cause    error
	metadata MT
}

func (e *ErrorImpl[MT]) Log() *log.Entry {
	return log.WithField("name", e.code.Name).
		WithField("code", e.code.Code).
		WithField("metadata", e.metadata)
}

func (e *ErrorImpl[MT]) Metadata() map[string]string {
	// convert any metadata to map[string]string
	metadata := make(map[string]string)
	buf, err := json.Marshal(e.metadata)
	if err == nil {
		var genericMap map[string]any
		if err := json.Unmarshal(buf, &genericMap); err == nil {
			for k, v := range genericMap {
				vStr := ""
				if v != nil {
					vStr = fmt.Sprintf("%v", v)
				}
				metadata[k] = vStr
			}
		}
	}
	return metadata
}

func (e *ErrorImpl[MT]) HTTPStatus() int {
	return e.code.HTTPStatus
}

func (e *ErrorImpl[MT]) Code() uint16 {
	return e.code.Code
}

func (e *ErrorImpl[MT]) CodeName() string {
	return e.code.Name
}

// Error() implements the error interface.
func (e *ErrorImpl[MT]) Error() string {
	return fmt.Sprintf("%s: %s", e.code.String(), e.cause.Error())
}

func (e *ErrorImpl[MT]) WithMetadata(metadata MT) TypedError[MT] {
	e.metadata = metadata
	return e
}

type RateLimitMetadata struct {
	By     string `json:"by"` // "client" or "address"
	Client string `json:"client,omitempty"`
	Addr   string `json:"addr,omitempty"`
}

type InputMetadata struct {
	Field string `json:"field"`
	Addr  string `json:"addr,omitempty"`
}

type AmountMetadata struct {
	Asset  string `json:"asset"`
	Amount int64  `json:"amount"`
}

type TxMetadata struct {
	Txid string `json:"txid"`
}

var INTERNAL_ERROR = Code[map[string]any]{0, "INTERNAL_ERROR", http.StatusInternalServerError}

var INVALID_INPUT = Code[InputMetadata]{1, "INVALID_INPUT", http.StatusBadRequest}

var RATE_LIMITED = Code[RateLimitMetadata]{2, "RATE_LIMITED", http.StatusTooManyRequests}

var INSUFFICIENT_FUNDS = Code[AmountMetadata]{
	3,
	"INSUFFICIENT_FUNDS",
	http.StatusServiceUnavailable,
}

var INCOMPLETE_SIGNATURE = Code[TxMetadata]{
	4,
	"INCOMPLETE_SIGNATURE",
	http.StatusInternalServerError,
}

var RELAY_FAILURE = Code[TxMetadata]{5, "RELAY_FAILURE", http.StatusBadGateway}

var WALLET_UNAVAILABLE = Code[map[string]any]{
	6,
	"WALLET_UNAVAILABLE",
	http.StatusServiceUnavailable,
}

var STORAGE_UNAVAILABLE = Code[map[string]any]{
	7,
	"STORAGE_UNAVAILABLE",
	http.StatusInternalServerError,
}
