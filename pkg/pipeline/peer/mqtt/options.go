package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"
)

// TLSOptions holds TLS configuration that can be marshaled from JSON/YAML
type TLSOptions struct {
	InsecureSkipVerify bool   `json:"insecureSkipVerify"`
	ServerName         string `json:"serverName,omitempty"`
	CAFile             string `json:"caFile,omitempty"`
	CertFile           string `json:"certFile,omitempty"`
	KeyFile            string `json:"keyFile,omitempty"`
	CACert             string `json:"caCert,omitempty"`
	ClientCert         string `json:"clientCert,omitempty"`
	ClientKey          string `json:"clientKey,omitempty"`
}

// ClientOptions are the paho client settings a peer config may set
type ClientOptions struct {
	TLS                  *TLSOptions `json:"tls,omitempty"`
	ClientID             string      `json:"clientID"`
	Username             string      `json:"username"`
	Password             string      `json:"password"`
	KeepAlive            int64       `json:"keepAlive,omitempty"` // seconds
	ConnectTimeout       duration    `json:"connectTimeout,omitempty"`
	MaxReconnectInterval duration    `json:"maxReconnectInterval,omitempty"`
	CleanSession         bool        `json:"cleanSession"`
	Order                bool        `json:"order"`
	AutoReconnect        bool        `json:"autoReconnect"`
	ResumeSubs           bool        `json:"resumeSubs"`
}

// duration reads "5s" style strings from JSON
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

func createTLSConfig(tlsOpts *TLSOptions) (*tls.Config, error) {
	if tlsOpts == nil {
		return nil, nil
	}

	config := &tls.Config{
		InsecureSkipVerify: tlsOpts.InsecureSkipVerify,
		ServerName:         tlsOpts.ServerName,
	}

	if tlsOpts.CAFile != "" || tlsOpts.CACert != "" {
		caCert := []byte(tlsOpts.CACert)
		if tlsOpts.CAFile != "" {
			var err error
			if caCert, err = os.ReadFile(tlsOpts.CAFile); err != nil {
				return nil, fmt.Errorf("failed to read CA file: %w", err)
			}
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		config.RootCAs = caCertPool
	}

	var (
		cert tls.Certificate
		err  error
	)
	switch {
	case tlsOpts.CertFile != "" && tlsOpts.KeyFile != "":
		cert, err = tls.LoadX509KeyPair(tlsOpts.CertFile, tlsOpts.KeyFile)
	case tlsOpts.ClientCert != "" && tlsOpts.ClientKey != "":
		cert, err = tls.X509KeyPair([]byte(tlsOpts.ClientCert), []byte(tlsOpts.ClientKey))
	default:
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}
	config.Certificates = []tls.Certificate{cert}

	return config, nil
}
