package metrics

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"syscall"
)

// Labels used as keys of Stats.Errors for requests that never produced a response.
const (
	LabelTimeout           = "Timeout"
	LabelCanceled          = "Canceled"
	LabelConnectionRefused = "Connection refused"
	LabelConnectionReset   = "Connection reset"
	LabelDNS               = "DNS lookup failed"
	LabelTLS               = "TLS error"
	LabelConnection        = "Connection error"
	LabelConnectionClosed  = "Connection closed"
	LabelTransport         = "Transport error"
)

// TransportErrorName walks the wrapped chain of a failed round trip and
// returns the label it is counted under. net/http wraps everything in a
// *url.Error, so the concrete type of err alone says nothing useful.
func TransportErrorName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return LabelTimeout
	case errors.Is(err, context.Canceled):
		return LabelCanceled
	case errors.Is(err, syscall.ECONNREFUSED):
		return LabelConnectionRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return LabelConnectionReset
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return LabelDNS
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return LabelTimeout
	}
	var certErr *tls.CertificateVerificationError
	var headerErr tls.RecordHeaderError
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &certErr) || errors.As(err, &headerErr) || errors.As(err, &unknownAuthority) {
		return LabelTLS
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return LabelConnection
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return LabelConnectionClosed
	}
	return LabelTransport
}
