package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Kind is a member of the error taxonomy.
type Kind int

const (
	KindNone Kind = iota
	KindTimeout
	KindConnection
	KindResponse
	KindPayload
	KindClient
	KindDecodeStructured
	KindDecodeText
	KindValue
	KindIO
	KindNetwork
	KindAssertion
	KindCancelled
	KindUnexpected
)

var kindNames = map[Kind]string{
	KindNone:             "None",
	KindTimeout:          "Timeout",
	KindConnection:       "ConnectionError",
	KindResponse:         "ResponseError",
	KindPayload:          "PayloadError",
	KindClient:           "ClientError",
	KindDecodeStructured: "DecodeError(structured)",
	KindDecodeText:       "DecodeError(text)",
	KindValue:            "ValueError",
	KindIO:               "IOError",
	KindNetwork:          "NetworkError",
	KindAssertion:        "AssertionError",
	KindCancelled:        "Cancelled",
	KindUnexpected:       "Unexpected",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Severity ranks a classified error.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

func (s Severity) level() zapcore.Level {
	switch s {
	case SeverityInfo:
		return zapcore.InfoLevel
	case SeverityWarning:
		return zapcore.WarnLevel
	default:
		// critical stays at error: development loggers panic on DPanic.
		return zapcore.ErrorLevel
	}
}

// ErrorInfo is a classified error record.
type ErrorInfo struct {
	Message  string
	Kind     Kind
	Severity Severity
	Context  string
	Err      error
}

func (i ErrorInfo) String() string {
	return fmt.Sprintf("[%s] %s", i.Context, i.Message)
}

type rule struct {
	kind     Kind
	severity Severity
	match    func(error) bool
}

// rules is evaluated top to bottom; the first match wins.
var rules = []rule{
	{KindTimeout, SeverityWarning, isTimeout},
	{KindConnection, SeverityError, isConnection},
	{KindResponse, SeverityError, isResponse},
	{KindPayload, SeverityError, isPayload},
	{KindClient, SeverityError, isClient},
	{KindDecodeStructured, SeverityError, isStructuredDecode},
	{KindDecodeText, SeverityError, isTextDecode},
	{KindValue, SeverityWarning, isValue},
	{KindIO, SeverityError, isIO},
	{KindNetwork, SeverityError, isNetwork},
	{KindAssertion, SeverityError, isIntegrity},
	{KindCancelled, SeverityCritical, isCancelled},
}

// Classifier maps errors onto the taxonomy and logs each classification.
type Classifier struct {
	logger *zap.Logger
}

// NewClassifier returns a classifier logging through logger. A nil logger
// disables logging.
func NewClassifier(logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{logger: logger}
}

// Classify translates err into an ErrorInfo and logs "[context] message" at
// the level mapped from its severity.
func (c *Classifier) Classify(err error, context string) ErrorInfo {
	info := classify(err)
	info.Context = context
	c.log(info)
	return info
}

func (c *Classifier) log(info ErrorInfo) {
	if c == nil || c.logger == nil {
		return
	}
	if ce := c.logger.Check(info.Severity.level(), info.String()); ce != nil {
		ce.Write(
			zap.String("kind", info.Kind.String()),
			zap.String("severity", info.Severity.String()),
		)
	}
}

func classify(err error) ErrorInfo {
	text := errorText(err)
	for _, r := range rules {
		if err != nil && safeMatch(r.match, err) {
			return ErrorInfo{
				Message:  r.kind.String() + ": " + text,
				Kind:     r.kind,
				Severity: r.severity,
				Err:      err,
			}
		}
	}
	return ErrorInfo{
		Message:  fmt.Sprintf("%s (%T): %s", KindUnexpected, err, text),
		Kind:     KindUnexpected,
		Severity: SeverityError,
		Err:      err,
	}
}

func safeMatch(match func(error) bool, err error) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return match(err)
}

func errorText(err error) (text string) {
	if err == nil {
		return "<nil>"
	}
	defer func() {
		if r := recover(); r != nil {
			text = fmt.Sprintf("%T (Error panicked: %v)", err, r)
		}
	}()
	return err.Error()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isConnection(err error) bool {
	if errors.Is(err, ErrPoolClosed) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var (
		unknownAuthority x509.UnknownAuthorityError
		hostname         x509.HostnameError
		invalidCert      x509.CertificateInvalidError
		verifyErr        *tls.CertificateVerificationError
		recordErr        tls.RecordHeaderError
	)
	return errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostname) ||
		errors.As(err, &invalidCert) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr)
}

func isResponse(err error) bool {
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return true
	}
	return strings.Contains(err.Error(), "malformed HTTP")
}

func isPayload(err error) bool {
	var payloadErr *PayloadError
	return errors.As(err, &payloadErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

func isClient(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Op != "parse"
}

func isStructuredDecode(err error) bool {
	var decErr *DecodeError
	if errors.As(err, &decErr) && decErr.Shape == ShapeJSON {
		return true
	}
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func isTextDecode(err error) bool {
	var decErr *DecodeError
	return errors.As(err, &decErr) && decErr.Shape == ShapeText
}

func isValue(err error) bool {
	if errors.Is(err, ErrInvalidValue) {
		return true
	}
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Op == "parse"
}

func isIO(err error) bool {
	var (
		pathErr    *os.PathError
		syscallErr *os.SyscallError
		errno      syscall.Errno
	)
	return errors.As(err, &pathErr) ||
		errors.As(err, &syscallErr) ||
		errors.As(err, &errno) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, io.ErrShortWrite)
}

func isNetwork(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isIntegrity(err error) bool {
	return errors.Is(err, ErrIntegrity)
}

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}
