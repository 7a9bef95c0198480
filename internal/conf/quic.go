package conf

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"
)

type QUIC struct {
	// Connection settings
	MaxIdleTimeout  int `yaml:"max_idle_timeout"`  // Maximum idle timeout in seconds (default: 30)
	KeepAlivePeriod int `yaml:"keep_alive_period"` // Keep-alive period in seconds (default: 10)

	// Flow control settings
	InitialStreamReceiveWindow int64 `yaml:"initial_stream_receive_window"` // Initial stream receive window (default: 2 MB)
	MaxStreamReceiveWindow     int64 `yaml:"max_stream_receive_window"`     // Maximum stream receive window (default: 12 MB)

	// TLS settings
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // Skip TLS verification (default: true; the cookie authenticates)
	ServerName         string `yaml:"server_name"`          // Server name for TLS verification
}

func (q *QUIC) setDefaults(role string) {
	if q.MaxIdleTimeout == 0 {
		q.MaxIdleTimeout = 30
	}
	if q.KeepAlivePeriod == 0 {
		q.KeepAlivePeriod = 10
	}
	if q.InitialStreamReceiveWindow == 0 {
		q.InitialStreamReceiveWindow = 2 * 1024 * 1024
	}
	if q.MaxStreamReceiveWindow == 0 {
		q.MaxStreamReceiveWindow = 12 * 1024 * 1024
	}
	if role == "client" && q.ServerName == "" {
		// The carrier certificate is throwaway; authentication comes from
		// the obfuscation layer above it.
		q.InsecureSkipVerify = true
	}
}

func (q *QUIC) validate() []error {
	var errors []error

	if q.MaxIdleTimeout < 1 || q.MaxIdleTimeout > 600 {
		errors = append(errors, fmt.Errorf("QUIC max_idle_timeout must be between 1-600 seconds"))
	}
	if q.KeepAlivePeriod < 1 || q.KeepAlivePeriod > 60 {
		errors = append(errors, fmt.Errorf("QUIC keep_alive_period must be between 1-60 seconds"))
	}
	if q.InitialStreamReceiveWindow < 64*1024 {
		errors = append(errors, fmt.Errorf("QUIC initial_stream_receive_window must be >= 64 KB"))
	}
	if q.MaxStreamReceiveWindow < q.InitialStreamReceiveWindow {
		errors = append(errors, fmt.Errorf("QUIC max_stream_receive_window must be >= initial_stream_receive_window"))
	}

	return errors
}

// Certificate validity period for self-signed certificates
const certValidityDays = 365

// GenerateTLSConfig builds the TLS configuration for the QUIC carrier. The
// server side uses a fresh self-signed certificate on every start.
func (q *QUIC) GenerateTLSConfig(role string) (*tls.Config, error) {
	if role == "server" {
		cert, err := generateSelfSignedCert()
		if err != nil {
			return nil, fmt.Errorf("failed to generate self-signed certificate: %w", err)
		}

		return &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{"geph5-quic"},
			MinVersion:   tls.VersionTLS13,
		}, nil
	}

	tlsConfig := &tls.Config{
		NextProtos:         []string{"geph5-quic"},
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: q.InsecureSkipVerify,
	}
	if q.ServerName != "" {
		tlsConfig.ServerName = q.ServerName
	}

	return tlsConfig, nil
}

func generateSelfSignedCert() (tls.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(certValidityDays * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, err
	}

	return tlsCert, nil
}
