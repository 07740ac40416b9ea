package tcp

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(e *DataEvent) {
	_ = e.Conn.Send(context.Background(), e.Bytes())
}

func clientConfig(leaf *x509.Certificate) *tls.Config {
	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	return &tls.Config{RootCAs: pool, ServerName: "127.0.0.1", MinVersion: tls.VersionTLS12}
}

func TestTLSRoundTrip(t *testing.T) {
	cert, leaf := selfSigned(t, "server")

	s := newServer(t, WithCertificate(cert))
	r := record(s)
	s.Events().Data.Hook(echo)
	run(t, s)
	require.True(t, s.Encrypted())

	client := dialTLS(t, s, clientConfig(leaf))
	c := waitConn(t, r.openedCh)
	assert.True(t, c.Encrypted())
	state, ok := c.ConnectionState()
	require.True(t, ok)
	assert.True(t, state.HandshakeComplete)

	_, err := client.Write([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 5)
	require.NoError(t, client.SetReadDeadline(time.Now().Add(waitFor)))
	_, err = io.ReadFull(client, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	c.Disconnect()
	waitConn(t, r.closedCh)

	// the peer receives close_notify, not a truncated stream
	_, err = client.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestTLSHandshakeFailureIsolated(t *testing.T) {
	cert, leaf := selfSigned(t, "server")

	s := newServer(t, WithCertificate(cert))
	r := record(s)
	s.Events().Data.Hook(echo)
	run(t, s)

	good := dialTLS(t, s, clientConfig(leaf))
	c := waitConn(t, r.openedCh)

	bad, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer bad.Close()
	_, err = bad.Write([]byte("GET / HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	e := waitFault(t, r.faultCh)
	require.NotNil(t, e.Conn)
	assert.NotSame(t, c, e.Conn)
	assert.Error(t, e.Err)

	_, err = good.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	require.NoError(t, good.SetReadDeadline(time.Now().Add(waitFor)))
	_, err = io.ReadFull(good, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	time.Sleep(50 * time.Millisecond)
	opened, closed, _ := r.counts()
	assert.Equal(t, 1, opened)
	assert.Zero(t, closed)
	assert.Equal(t, 1, s.ConnNum())
}

func TestTLSHandshakeTimeout(t *testing.T) {
	cert, _ := selfSigned(t, "server")

	s := newServer(t, WithCertificate(cert), WithHandshakeTimeout(100*time.Millisecond))
	r := record(s)
	run(t, s)

	// never says hello
	dial(t, s)

	e := waitFault(t, r.faultCh)
	require.NotNil(t, e.Conn)
	assert.ErrorIs(t, e.Err, context.DeadlineExceeded)

	opened, _, _ := r.counts()
	assert.Zero(t, opened)
	assert.Zero(t, s.ConnNum())
}

func TestTLSClientCertRequired(t *testing.T) {
	cert, leaf := selfSigned(t, "server")
	clientCert, clientLeaf := selfSigned(t, "client")

	cas := x509.NewCertPool()
	cas.AddCert(clientLeaf)

	s := newServer(t, WithCertificate(cert), WithClientCAs(cas), WithClientCertRequired(true))
	r := record(s)
	run(t, s)
	require.True(t, s.ClientCertRequired())

	cfg := clientConfig(leaf)
	cfg.Certificates = []tls.Certificate{clientCert}
	dialTLS(t, s, cfg)

	c := waitConn(t, r.openedCh)
	state, ok := c.ConnectionState()
	require.True(t, ok)
	require.Len(t, state.PeerCertificates, 1)
	assert.Equal(t, "client", state.PeerCertificates[0].Subject.CommonName)

	// without a certificate the server side handshake fails
	raw, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer raw.Close()
	anon := tls.Client(raw, clientConfig(leaf))
	_ = anon.SetDeadline(time.Now().Add(waitFor))
	_ = anon.Handshake()
	_, _ = anon.Read(make([]byte, 1))

	e := waitFault(t, r.faultCh)
	require.NotNil(t, e.Conn)
	assert.NotSame(t, c, e.Conn)
	assert.ErrorContains(t, e.Err, "certificate")

	opened, _, _ := r.counts()
	assert.Equal(t, 1, opened)
}
