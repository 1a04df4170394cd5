package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/graybus/ebus-bridge/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for a connection attempt.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval when the config leaves it unset.
	defaultKeepAlive = 60 * time.Second

	// inboundQueueSize bounds the queue of received messages awaiting Drain.
	inboundQueueSize = 256

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Protocol version identifiers as used by the MQTT CONNECT packet.
const (
	protocolMQTT31  = 3 // MQTT 3.1
	protocolMQTT311 = 4 // MQTT 3.1.1
)

// buildClientOptions creates paho MQTT options from the bridge config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// depending on TLS settings)
//   - Client ID and authentication credentials
//   - Protocol version (3.1 or 3.1.1)
//   - TLS configuration (CA bundle or directory, client certificate)
//   - Clean session mode
//
// Automatic reconnection is deliberately disabled: the bridge runs its own
// reconnect schedule and needs to observe every connection loss.
//
// Returns ErrInvalidParams (wrapped) when TLS material cannot be loaded,
// since retrying with the same files cannot succeed.
func buildClientOptions(cfg config.MQTTConfig) (*pahomqtt.ClientOptions, error) {
	opts := pahomqtt.NewClientOptions()

	useTLS := cfg.TLS.CAFile != "" || cfg.TLS.CertFile != ""

	scheme := "tcp"
	if useTLS {
		scheme = "ssl"
	}
	brokerURL := fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
	opts.AddBroker(brokerURL)

	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	switch cfg.Version {
	case "3.1.1":
		opts.SetProtocolVersion(protocolMQTT311)
	default:
		opts.SetProtocolVersion(protocolMQTT31)
	}

	// Clean session - start fresh on connect (no persistent session on broker)
	opts.SetCleanSession(true)

	// The bridge owns the reconnect schedule.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectTimeout(defaultConnectTimeout)

	keepAlive := defaultKeepAlive
	if cfg.Broker.KeepAlive > 0 {
		keepAlive = time.Duration(cfg.Broker.KeepAlive) * time.Second
	}
	opts.SetKeepAlive(keepAlive)

	if useTLS {
		tlsConfig, err := buildTLSConfig(cfg.TLS)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	return opts, nil
}

// buildTLSConfig assembles the TLS client configuration.
//
// CAFile may name a certificate bundle file, or a directory of certificates
// when the path ends with a path separator.
func buildTLSConfig(cfg config.MQTTTLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tlsMinVersion,
		InsecureSkipVerify: cfg.Insecure, //nolint:gosec // operator opt-in for self-signed brokers
	}

	if cfg.CAFile != "" {
		pool := x509.NewCertPool()
		if strings.HasSuffix(cfg.CAFile, string(os.PathSeparator)) || strings.HasSuffix(cfg.CAFile, "/") {
			entries, err := os.ReadDir(cfg.CAFile)
			if err != nil {
				return nil, fmt.Errorf("%w: reading CA directory: %w", ErrInvalidParams, err)
			}
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				pem, err := os.ReadFile(filepath.Join(cfg.CAFile, entry.Name()))
				if err != nil {
					return nil, fmt.Errorf("%w: reading CA certificate %s: %w", ErrInvalidParams, entry.Name(), err)
				}
				pool.AppendCertsFromPEM(pem)
			}
		} else {
			pem, err := os.ReadFile(cfg.CAFile)
			if err != nil {
				return nil, fmt.Errorf("%w: reading CA file: %w", ErrInvalidParams, err)
			}
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("%w: no certificates found in %s", ErrInvalidParams, cfg.CAFile)
			}
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: loading client certificate: %w", ErrInvalidParams, err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}
