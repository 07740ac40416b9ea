package tcp

import (
	"crypto/tls"
	"crypto/x509"
	"log/slog"
	"math"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultBufferSize       = 8192
	MinBufferSize           = 1
	MaxBufferSize           = math.MaxUint16
	DefaultPollInterval     = 500 * time.Millisecond
	DefaultKeepAlivePeriod  = 3 * time.Minute
	DefaultHandshakeTimeout = 10 * time.Second
)

type options struct {
	timeout            time.Duration
	bufferSize         int
	pollInterval       time.Duration
	keepAlivePeriod    time.Duration
	handshakeTimeout   time.Duration
	readPool           bool
	certFile           string
	keyFile            string
	certificates       []tls.Certificate
	clientCAs          *x509.CertPool
	clientCertRequired bool
	minTLSVersion      uint16
	logger             *slog.Logger
}

func defaultOptions() options {
	return options{
		bufferSize:       DefaultBufferSize,
		pollInterval:     DefaultPollInterval,
		keepAlivePeriod:  DefaultKeepAlivePeriod,
		handshakeTimeout: DefaultHandshakeTimeout,
		minTLSVersion:    tls.VersionTLS12,
	}
}

func (o *options) check() error {
	if err := checkTimeout(o.timeout); err != nil {
		return err
	}

	if err := checkBufferSize(o.bufferSize); err != nil {
		return err
	}

	if o.handshakeTimeout <= 0 {
		return errors.Wrapf(ErrInvalidTimeout, "handshake timeout [%s] <= 0", o.handshakeTimeout)
	}

	if o.certFile != "" || o.keyFile != "" {
		cert, err := tls.LoadX509KeyPair(o.certFile, o.keyFile)
		if err != nil {
			return errors.Wrapf(err, "tcp: load key pair [%s] [%s]", o.certFile, o.keyFile)
		}
		o.certificates = append(o.certificates, cert)
		o.certFile, o.keyFile = "", ""
	}

	if o.clientCertRequired && len(o.certificates) == 0 {
		return errors.WithStack(ErrNoCertificate)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}

	return nil
}

func checkTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return errors.Wrapf(ErrInvalidTimeout, "timeout [%s] < 0", timeout)
	}
	return nil
}

func checkBufferSize(size int) error {
	if size < MinBufferSize {
		return errors.Wrapf(ErrInvalidBufferSize, "buffer size [%d] < [%d]", size, MinBufferSize)
	}
	if size > MaxBufferSize {
		return errors.Wrapf(ErrInvalidBufferSize, "buffer size [%d] > [%d]", size, MaxBufferSize)
	}
	return nil
}

func (o *options) encrypted() bool {
	return len(o.certificates) > 0
}

func (o *options) tlsConfig(clientCertRequired bool) *tls.Config {
	if !o.encrypted() {
		return nil
	}

	cfg := &tls.Config{
		Certificates: o.certificates,
		MinVersion:   o.minTLSVersion,
		ClientCAs:    o.clientCAs,
	}

	if clientCertRequired {
		if o.clientCAs != nil {
			cfg.ClientAuth = tls.RequireAndVerifyClientCert
		} else {
			cfg.ClientAuth = tls.RequireAnyClientCert
		}
	}

	return cfg
}

type Option func(o *options)

// WithTimeout bounds every read, write and TLS handshake. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

func WithBufferSize(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// WithPollInterval sets the dead connection sweep period. A value <= 0
// disables the sweep.
func WithPollInterval(interval time.Duration) Option {
	return func(o *options) {
		o.pollInterval = interval
	}
}

func WithKeepAlivePeriod(period time.Duration) Option {
	return func(o *options) {
		o.keepAlivePeriod = period
	}
}

// WithHandshakeTimeout bounds the TLS handshake when no timeout is set.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.handshakeTimeout = timeout
	}
}

// WithReadPool makes the receive loop borrow its buffers from bytespool. Data
// subscribers must then copy anything they keep past the callback.
func WithReadPool() Option {
	return func(o *options) {
		o.readPool = true
	}
}

// WithCertFile loads a PEM key pair at construction and enables TLS.
func WithCertFile(certFile, keyFile string) Option {
	return func(o *options) {
		o.certFile = certFile
		o.keyFile = keyFile
	}
}

func WithCertificate(cert tls.Certificate) Option {
	return func(o *options) {
		o.certificates = append(o.certificates, cert)
	}
}

func WithClientCAs(pool *x509.CertPool) Option {
	return func(o *options) {
		o.clientCAs = pool
	}
}

func WithClientCertRequired(required bool) Option {
	return func(o *options) {
		o.clientCertRequired = required
	}
}

func WithMinTLSVersion(version uint16) Option {
	return func(o *options) {
		o.minTLSVersion = version
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
