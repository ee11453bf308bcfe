package runtime

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/itemgrid/itemgrid/internal/app/domain/item"
	"github.com/itemgrid/itemgrid/internal/config"
)

func writePublicKey(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "public.pem")
	block := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	if err := os.WriteFile(path, block, 0o600); err != nil {
		t.Fatalf("write public key: %v", err)
	}
	return path
}

func signTestToken(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": "user-1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestLoadPublicKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := writePublicKey(t, key)

	if _, err := loadPublicKey(path); err != nil {
		t.Fatalf("load public key: %v", err)
	}
}

func TestLoadPublicKeyMissingFile(t *testing.T) {
	if _, err := loadPublicKey(filepath.Join(t.TempDir(), "absent.pem")); err == nil {
		t.Fatal("expected error for missing key file")
	}
}

func TestLoadPublicKeyMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pem")
	if err := os.WriteFile(path, []byte("not a key"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if _, err := loadPublicKey(path); err == nil {
		t.Fatal("expected error for malformed key file")
	}
}

func TestBuildStoreDefaultsToMemory(t *testing.T) {
	store, db, client, err := buildStore(&config.Config{})
	if err != nil {
		t.Fatalf("build store: %v", err)
	}
	if store == nil {
		t.Fatal("expected a store")
	}
	if db != nil || client != nil {
		t.Fatal("memory store should not open connections")
	}
}

func TestBuildStoreUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = "etcd"
	if _, _, _, err := buildStore(cfg); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenDatabaseRequiresDSN(t *testing.T) {
	if _, err := openDatabase(config.DatabaseConfig{Driver: "postgres"}); err == nil {
		t.Fatal("expected error for missing dsn")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0

	gw, err := NewApplicationWithConfig(cfg)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	if err := gw.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestGatewayHandlerServesItems(t *testing.T) {
	auditPath := filepath.Join(t.TempDir(), "audit.log")
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Audit.LogFile = auditPath

	gw, err := NewApplicationWithConfig(cfg)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if err := gw.App().Start(context.Background()); err != nil {
		t.Fatalf("start services: %v", err)
	}
	t.Cleanup(func() { gw.Shutdown(context.Background()) })

	server := httptest.NewServer(gw.Handler())
	defer server.Close()

	body := bytes.NewBufferString(`{"attributes":{"name":"alpha"}}`)
	resp, err := http.Post(server.URL+"/items", "application/json", body)
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Trace-ID") == "" {
		t.Fatal("expected trace id header from the middleware chain")
	}
	var created item.Item
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode created item: %v", err)
	}
	resp.Body.Close()
	if created.ID == "" {
		t.Fatal("expected an assigned item id")
	}

	resp, err = http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", resp.StatusCode)
	}
	var health struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	resp.Body.Close()
	if health.Services["items"] != "running" || health.Services["http"] != "running" {
		t.Fatalf("unexpected service statuses: %v", health.Services)
	}

	data, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected audit entries on disk")
	}
}

func TestGatewayAuthEnforced(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Auth.Enabled = true
	cfg.Auth.PublicKeyFile = writePublicKey(t, key)

	gw, err := NewApplicationWithConfig(cfg)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	server := httptest.NewServer(gw.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/items")
	if err != nil {
		t.Fatalf("anonymous request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous request, got %d", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, server.URL+"/items", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, key))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authenticated request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for authenticated request, got %d", resp.StatusCode)
	}
}

func TestGatewayAuthMissingKeyFile(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Enabled = true
	cfg.Auth.PublicKeyFile = filepath.Join(t.TempDir(), "absent.pem")

	if _, err := NewApplicationWithConfig(cfg); err == nil {
		t.Fatal("expected error for missing public key file")
	}
}
