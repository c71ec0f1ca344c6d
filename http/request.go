package http

import (
	core "github.com/wesleyorama2/tether/internal/http"
)

// Request describes one call. It is immutable once built.
type Request = core.Request

// RequestOption configures a Request.
type RequestOption = core.RequestOption

// Shape is the expected form of a response payload.
type Shape = core.Shape

// Supported response shapes.
const (
	ShapeJSON  = core.ShapeJSON
	ShapeText  = core.ShapeText
	ShapeBytes = core.ShapeBytes
)

// NewRequest creates a request. The method is upper-cased and the expected
// shape defaults to json.
var NewRequest = core.NewRequest

// Request options.
var (
	WithQuery          = core.WithQuery
	WithQueryParam     = core.WithQueryParam
	WithRequestHeader  = core.WithRequestHeader
	WithRequestHeaders = core.WithRequestHeaders
	WithJSON           = core.WithJSON
	WithData           = core.WithData
	WithBytes          = core.WithBytes
	WithForm           = core.WithForm
	WithShape          = core.WithShape
)
