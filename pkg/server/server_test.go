package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func setupTestServer(t *testing.T) (*Server, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "navdb-server-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	config := &Config{
		Host:           "localhost",
		Port:           0,
		DataDir:        tmpDir,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: 10 * 1024 * 1024,
		EnableCORS:     true,
		AllowedOrigins: []string{"*"},
		EnableLogging:  false,
		EnableGraphQL:  true,
	}

	srv, err := New(config)
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}

	return srv, func() { os.RemoveAll(tmpDir) }
}

func makeRequest(t *testing.T, srv *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth("admin", "admin")

	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	var response map[string]interface{}
	if rr.Body.Len() > 0 {
		if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return rr, response
}

func TestHealthEndpoint(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/_health", nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestUnauthenticatedRequestIsRejected(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/v1/databases/shop", nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestDatabaseAndCollectionLifecycle(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	rr, resp := makeRequest(t, srv, http.MethodPost, "/v1/databases/shop", nil)
	if rr.Code != http.StatusOK || resp["ok"] != true {
		t.Fatalf("create database: status=%d resp=%v", rr.Code, resp)
	}

	rr, resp = makeRequest(t, srv, http.MethodPost, "/v1/databases/shop/collections/items", nil)
	if rr.Code != http.StatusOK || resp["ok"] != true {
		t.Fatalf("create collection: status=%d resp=%v", rr.Code, resp)
	}

	rr, resp = makeRequest(t, srv, http.MethodDelete, "/v1/databases/shop/collections/items", nil)
	if rr.Code != http.StatusOK || resp["ok"] != true {
		t.Fatalf("drop collection: status=%d resp=%v", rr.Code, resp)
	}

	rr, resp = makeRequest(t, srv, http.MethodDelete, "/v1/databases/shop", nil)
	if rr.Code != http.StatusOK || resp["ok"] != true {
		t.Fatalf("drop database: status=%d resp=%v", rr.Code, resp)
	}
}

func TestInsertAndFindRoundTrip(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	makeRequest(t, srv, http.MethodPost, "/v1/databases/shop", nil)
	makeRequest(t, srv, http.MethodPost, "/v1/databases/shop/collections/items", nil)

	rr, resp := makeRequest(t, srv, http.MethodPost, "/v1/databases/shop/collections/items/documents", map[string]interface{}{
		"document": map[string]interface{}{"_id": "sku-1", "name": "widget", "price": 9.99},
	})
	if rr.Code != http.StatusOK || resp["ok"] != true {
		t.Fatalf("insert: status=%d resp=%v", rr.Code, resp)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/databases/shop/collections/items/documents", nil)
	req.SetBasicAuth("admin", "admin")
	rr2 := httptest.NewRecorder()
	srv.router.ServeHTTP(rr2, req)

	var found map[string]interface{}
	if err := json.NewDecoder(rr2.Body).Decode(&found); err != nil {
		t.Fatalf("decode find response: %v", err)
	}
	if found["ok"] != true {
		t.Fatalf("find failed: %v", found)
	}
	docs, ok := found["result"].([]interface{})
	if !ok || len(docs) != 1 {
		t.Fatalf("find result = %+v", found["result"])
	}
}

func TestUpdateAndDeleteRespectAllFlag(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	makeRequest(t, srv, http.MethodPost, "/v1/databases/shop", nil)
	makeRequest(t, srv, http.MethodPost, "/v1/databases/shop/collections/items", nil)
	makeRequest(t, srv, http.MethodPost, "/v1/databases/shop/collections/items/documents", map[string]interface{}{
		"documents": []map[string]interface{}{
			{"_id": "a", "category": "tools"},
			{"_id": "b", "category": "tools"},
		},
	})

	rr, resp := makeRequest(t, srv, http.MethodPatch, "/v1/databases/shop/collections/items/documents?many=true", map[string]interface{}{
		"filter": map[string]interface{}{"category": "tools"},
		"update": map[string]interface{}{"$set": map[string]interface{}{"category": "hardware"}},
	})
	if rr.Code != http.StatusOK || resp["ok"] != true || resp["result"] != float64(2) {
		t.Fatalf("update many: status=%d resp=%v", rr.Code, resp)
	}

	rr, resp = makeRequest(t, srv, http.MethodDelete, "/v1/databases/shop/collections/items/documents?many=true", map[string]interface{}{
		"filter": map[string]interface{}{"category": "hardware"},
	})
	if rr.Code != http.StatusOK || resp["ok"] != true || resp["result"] != float64(2) {
		t.Fatalf("delete many: status=%d resp=%v", rr.Code, resp)
	}
}

func TestBackupAndRestoreEndpoints(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	makeRequest(t, srv, http.MethodPost, "/v1/databases/shop", nil)
	makeRequest(t, srv, http.MethodPost, "/v1/databases/shop/collections/items", nil)
	makeRequest(t, srv, http.MethodPost, "/v1/databases/shop/collections/items/documents", map[string]interface{}{
		"document": map[string]interface{}{"_id": "a"},
	})

	rr, resp := makeRequest(t, srv, http.MethodPost, "/v1/backups/shop", nil)
	if rr.Code != http.StatusOK || resp["ok"] != true {
		t.Fatalf("backup: status=%d resp=%v", rr.Code, resp)
	}

	makeRequest(t, srv, http.MethodDelete, "/v1/databases/shop", nil)

	rr, resp = makeRequest(t, srv, http.MethodPost, "/v1/restores/shop", nil)
	if rr.Code != http.StatusOK || resp["ok"] != true {
		t.Fatalf("restore: status=%d resp=%v", rr.Code, resp)
	}
}

func TestReadOnlyRoleIsDeniedWrites(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	makeRequest(t, srv, http.MethodPost, "/v1/databases/shop", nil)

	if err := srv.AuthManager().CreateUser("viewer", "viewer", "read"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/databases/shop/collections/items", nil)
	req.SetBasicAuth("viewer", "viewer")
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}
