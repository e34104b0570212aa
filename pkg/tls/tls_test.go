package tls

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func writePair(t *testing.T) (cert, key string) {
	t.Helper()
	dir := t.TempDir()
	cert, key = filepath.Join(dir, "server.crt"), filepath.Join(dir, "server.key")
	if err := GenerateSelfSigned(cert, key, "btprof.local", "10.0.0.5"); err != nil {
		t.Fatalf("GenerateSelfSigned: %v", err)
	}
	return cert, key
}

func TestServerAndClientConfig(t *testing.T) {
	cert, key := writePair(t)

	serverCfg, err := ServerConfig(cert, key, "")
	if err != nil {
		t.Fatalf("ServerConfig: %v", err)
	}
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	srv.TLS = serverCfg
	srv.StartTLS()
	defer srv.Close()

	clientCfg, err := ClientConfig(cert, "", "")
	if err != nil {
		t.Fatalf("ClientConfig: %v", err)
	}
	client := &http.Client{Transport: &http.Transport{TLSClientConfig: clientCfg}}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET over TLS: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestMutualTLSRequiresClientCert(t *testing.T) {
	cert, key := writePair(t)

	serverCfg, err := ServerConfig(cert, key, cert)
	if err != nil {
		t.Fatalf("ServerConfig: %v", err)
	}
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.TLS = serverCfg
	srv.StartTLS()
	defer srv.Close()

	anonymous, err := ClientConfig(cert, "", "")
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{Transport: &http.Transport{TLSClientConfig: anonymous}}
	if resp, err := client.Get(srv.URL); err == nil {
		resp.Body.Close()
		t.Fatal("request without client certificate should fail")
	}

	withCert, err := ClientConfig(cert, cert, key)
	if err != nil {
		t.Fatal(err)
	}
	client = &http.Client{Transport: &http.Transport{TLSClientConfig: withCert}}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("request with client certificate: %v", err)
	}
	resp.Body.Close()
}

func TestConfigErrors(t *testing.T) {
	if _, err := ServerConfig("", "", ""); !errors.Is(err, ErrIncompleteKeyPair) {
		t.Errorf("ServerConfig without files: %v", err)
	}
	if _, err := ClientConfig("", "cert.pem", ""); !errors.Is(err, ErrIncompleteKeyPair) {
		t.Errorf("ClientConfig with half a pair: %v", err)
	}
	if _, err := ClientConfig(filepath.Join(t.TempDir(), "missing.pem"), "", ""); err == nil {
		t.Error("missing CA file should fail")
	}
}
