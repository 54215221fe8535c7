package ws_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LLIEPJIOK/service-mesh/wsclient/pkg/ws"
)

const waitTimeout = 5 * time.Second

type endEvent struct {
	conn ws.Connection
	end  ws.EndType
}

// recorder собирает события колбэков в порядке их вызова.
type recorder struct {
	opened   chan ws.Connection
	ended    chan endEvent
	messages chan string

	mu     sync.Mutex
	events []string
}

func newRecorder() *recorder {
	return &recorder{
		opened:   make(chan ws.Connection, 16),
		ended:    make(chan endEvent, 16),
		messages: make(chan string, 64),
	}
}

func (r *recorder) record(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) onOpen(c ws.Connection) {
	r.record("open")
	r.opened <- c
}

func (r *recorder) onEnded(c ws.Connection, end ws.EndType) {
	r.record("ended:" + end.String())
	r.ended <- endEvent{conn: c, end: end}
}

func (r *recorder) onMessage(_ ws.Connection, msg string) {
	r.record("message:" + msg)
	r.messages <- msg
}

func (r *recorder) connect(t *testing.T, client *ws.Client, url, label string) ws.Connection {
	t.Helper()

	conn, err := client.Connect(url, label, r.onOpen, r.onEnded, r.onMessage)
	require.NoError(t, err)
	require.True(t, conn.Valid())

	return conn
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting for "+what)
		var zero T
		return zero
	}
}

// generateTestCA создаёт CA сертификат для тестов
func generateTestCA(t *testing.T) (caCertPEM []byte, caCert *x509.Certificate, caKey *ecdsa.PrivateKey) {
	t.Helper()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	caTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Test CA"},
			CommonName:   "Test CA",
		},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
	}

	caCertDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	require.NoError(t, err)

	caCert, err = x509.ParseCertificate(caCertDER)
	require.NoError(t, err)

	caCertPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caCertDER})

	return caCertPEM, caCert, caKey
}

// generateSignedCert создаёт сертификат для 127.0.0.1, подписанный CA
func generateSignedCert(
	t *testing.T,
	id string,
	caCert *x509.Certificate,
	caKey *ecdsa.PrivateKey,
) (certPEM, keyPEM []byte) {
	t.Helper()

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			Organization: []string{"Test Org"},
			CommonName:   id,
		},
		IPAddresses: []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:    []string{"localhost"},
		NotBefore:   time.Now().Add(-time.Minute),
		NotAfter:    time.Now().Add(time.Hour),
		KeyUsage:    x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{
			x509.ExtKeyUsageServerAuth,
			x509.ExtKeyUsageClientAuth,
		},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, caCert, &privateKey.PublicKey, caKey)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	require.NoError(t, err)
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	return certPEM, keyPEM
}
