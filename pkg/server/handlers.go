package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/navdb/navdb/pkg/auth"
	"github.com/navdb/navdb/pkg/database"
	"github.com/navdb/navdb/pkg/document"
	"github.com/navdb/navdb/pkg/engine"
	"github.com/navdb/navdb/pkg/query"
)

// authenticate verifies HTTP Basic credentials and attaches the
// resulting auth.Principal to the request context, where both REST
// handlers and the GraphQL handler can recover it.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing credentials")
			return
		}
		role, err := s.authManager.Authenticate(username, password)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		principal := auth.Principal{Username: username, Role: role}
		ctx := auth.NewContext(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) session(r *http.Request) *engine.Session {
	principal, _ := auth.FromContext(r.Context())
	return s.engine.NewSession(principal)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"ok": false, "error": message})
}

func statusFor(err error) int {
	if errors.Is(err, auth.ErrPermissionDenied) {
		return http.StatusForbidden
	}
	var dbErr *database.Error
	if errors.As(err, &dbErr) {
		switch dbErr.Kind {
		case database.KindNotFound:
			return http.StatusNotFound
		case database.KindConflict, database.KindProtocol:
			return http.StatusConflict
		case database.KindValidation:
			return http.StatusBadRequest
		case database.KindFatalTransaction, database.KindIO:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

func decodeBody(r *http.Request, target interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	defer r.Body.Close()
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, target)
}

func docsToMaps(docs []*document.Document) []map[string]interface{} {
	out := make([]map[string]interface{}, len(docs))
	for i, d := range docs {
		out[i] = d.ToMap()
	}
	return out
}

// selectDatabase executes a use_db operation for the {db} path param
// before dispatching the rest of the handler's operation.
func selectDatabase(sess *engine.Session, r *http.Request) error {
	_, err := sess.Execute(&query.Operation{Kind: query.KindUseDB, Name: chi.URLParam(r, "db")})
	return err
}
