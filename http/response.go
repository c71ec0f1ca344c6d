package http

import (
	core "github.com/wesleyorama2/tether/internal/http"
)

// Result is the normalized outcome of one call.
type Result = core.Result

// Kind classifies the error that ended a call.
type Kind = core.Kind

// Severity ranks a classified error.
type Severity = core.Severity

// ErrorInfo is a classified error.
type ErrorInfo = core.ErrorInfo

// Error kinds, in classification order.
const (
	KindNone             = core.KindNone
	KindTimeout          = core.KindTimeout
	KindConnection       = core.KindConnection
	KindResponse         = core.KindResponse
	KindPayload          = core.KindPayload
	KindClient           = core.KindClient
	KindDecodeStructured = core.KindDecodeStructured
	KindDecodeText       = core.KindDecodeText
	KindValue            = core.KindValue
	KindIO               = core.KindIO
	KindNetwork          = core.KindNetwork
	KindAssertion        = core.KindAssertion
	KindCancelled        = core.KindCancelled
	KindUnexpected       = core.KindUnexpected
)

// Sentinel errors.
var (
	ErrPoolClosed   = core.ErrPoolClosed
	ErrInvalidValue = core.ErrInvalidValue
	ErrIntegrity    = core.ErrIntegrity
)

// Typed errors reported by the transport and decoders.
type (
	ResponseError = core.ResponseError
	PayloadError  = core.PayloadError
	DecodeError   = core.DecodeError
)
