package tcp

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 3 * time.Second

type recorder struct {
	mu     sync.Mutex
	opened []*Conn
	closed []*Conn
	data   map[*Conn][]byte
	faults []*FaultEvent
	order  map[*Conn][]string

	openedCh chan *Conn
	closedCh chan *Conn
	faultCh  chan *FaultEvent
}

func record(s *Server) *recorder {
	r := &recorder{
		data:     make(map[*Conn][]byte),
		order:    make(map[*Conn][]string),
		openedCh: make(chan *Conn, 1024),
		closedCh: make(chan *Conn, 1024),
		faultCh:  make(chan *FaultEvent, 1024),
	}

	s.Events().Opened.Hook(func(c *Conn) {
		r.mu.Lock()
		r.opened = append(r.opened, c)
		r.order[c] = append(r.order[c], "opened")
		r.mu.Unlock()
		r.openedCh <- c
	})
	s.Events().Closed.Hook(func(c *Conn) {
		r.mu.Lock()
		r.closed = append(r.closed, c)
		r.order[c] = append(r.order[c], "closed")
		r.mu.Unlock()
		r.closedCh <- c
	})
	s.Events().Data.Hook(func(e *DataEvent) {
		r.mu.Lock()
		r.data[e.Conn] = append(r.data[e.Conn], e.Bytes()...)
		if o := r.order[e.Conn]; len(o) == 0 || o[len(o)-1] != "data" {
			r.order[e.Conn] = append(o, "data")
		}
		r.mu.Unlock()
	})
	s.Events().Fault.Hook(func(e *FaultEvent) {
		r.mu.Lock()
		r.faults = append(r.faults, e)
		r.mu.Unlock()
		r.faultCh <- e
	})

	return r
}

func (r *recorder) received(c *Conn) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.data[c]...)
}

func (r *recorder) counts() (opened, closed, faults int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.opened), len(r.closed), len(r.faults)
}

func (r *recorder) events(c *Conn) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order[c]...)
}

func waitConn(t *testing.T, ch <-chan *Conn) *Conn {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for conn event")
		return nil
	}
}

func waitFault(t *testing.T, ch <-chan *FaultEvent) *FaultEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for fault event")
		return nil
	}
}

func newServer(t *testing.T, opt ...Option) *Server {
	t.Helper()
	s, err := NewServer("test", "127.0.0.1", 0, opt...)
	require.NoError(t, err)
	return s
}

// run starts s in the background and stops it when the test ends.
func run(t *testing.T, s *Server) <-chan error {
	t.Helper()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start(context.Background())
	}()
	require.Eventually(t, s.IsRunning, waitFor, 5*time.Millisecond)

	t.Cleanup(func() {
		s.Stop()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(waitFor):
			t.Error("server did not stop")
		}
	})

	return errCh
}

func dial(t *testing.T, s *Server) *net.TCPConn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", s.Addr(), waitFor)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn.(*net.TCPConn)
}

func dialTLS(t *testing.T, s *Server, cfg *tls.Config) *tls.Conn {
	t.Helper()
	d := &net.Dialer{Timeout: waitFor}
	conn, err := tls.DialWithDialer(d, "tcp", s.Addr(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func selfSigned(t *testing.T, cn string) (tls.Certificate, *x509.Certificate) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}, leaf
}
