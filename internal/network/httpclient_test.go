package network

import (
	"crypto/tls"
	"crypto/x509"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewDefaultClientConfig(t *testing.T) {
	config := NewDefaultClientConfig()

	assert.Equal(t, DefaultRequestTimeout, config.RequestTimeout)
	assert.Equal(t, DefaultMaxIdleConnsPerHost, config.MaxIdleConnsPerHost)
	assert.Zero(t, config.ResponseHeaderTimeout)
	assert.True(t, config.ForceHTTP2)
	assert.NotNil(t, config.Logger)
}

func TestConfigureTLS(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		tlsConfig := configureTLS(NewDefaultClientConfig())
		assert.Equal(t, uint16(requiredMinTLSVersion), tlsConfig.MinVersion)
		assert.Equal(t, defaultSecureCipherSuites, tlsConfig.CipherSuites)
		assert.NotNil(t, tlsConfig.ClientSessionCache)
		assert.False(t, tlsConfig.InsecureSkipVerify)
	})

	t.Run("custom config is cloned and hardened", func(t *testing.T) {
		custom := &tls.Config{ServerName: "nvd.internal", MinVersion: tls.VersionTLS10}
		config := NewDefaultClientConfig()
		config.TLSConfig = custom

		tlsConfig := configureTLS(config)
		assert.Equal(t, "nvd.internal", tlsConfig.ServerName)
		assert.Equal(t, uint16(requiredMinTLSVersion), tlsConfig.MinVersion)
		assert.NotSame(t, custom, tlsConfig)
		assert.Equal(t, uint16(tls.VersionTLS10), custom.MinVersion, "caller's config must not change")
	})

	t.Run("explicit TLS 1.3 is kept", func(t *testing.T) {
		config := NewDefaultClientConfig()
		config.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS13}
		assert.Equal(t, uint16(tls.VersionTLS13), configureTLS(config).MinVersion)
	})
}

func TestNewHTTPTransport(t *testing.T) {
	t.Run("http2 enabled", func(t *testing.T) {
		transport := NewHTTPTransport(nil)
		assert.Contains(t, transport.TLSNextProto, "h2")
		assert.NotNil(t, transport.Proxy)
	})

	t.Run("http1 only", func(t *testing.T) {
		config := NewDefaultClientConfig()
		config.ForceHTTP2 = false
		transport := NewHTTPTransport(config)
		assert.Equal(t, []string{"http/1.1"}, transport.TLSClientConfig.NextProtos)
	})
}

func TestNewAPIClient_Timeout(t *testing.T) {
	assert.Equal(t, 5*time.Second, NewAPIClient(5*time.Second, zap.NewNop()).Timeout)
	assert.Equal(t, DefaultRequestTimeout, NewAPIClient(0, nil).Timeout)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	_, err := NewAPIClient(50*time.Millisecond, nil).Get(server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Client.Timeout exceeded")
}

func TestNewClient_TLSRoundTrip(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	pool := x509.NewCertPool()
	pool.AddCert(server.Certificate())

	config := NewDefaultClientConfig()
	config.TLSConfig = &tls.Config{RootCAs: pool}
	client := NewClient(config)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}
