package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/navdb/navdb/pkg/document"
	"github.com/navdb/navdb/pkg/query"
)

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, op *query.Operation) {
	sess := s.session(r)
	if op.Kind != query.KindCreateDB && op.Kind != query.KindDropDB && op.Kind != query.KindBackup && op.Kind != query.KindRestore {
		if err := selectDatabase(sess, r); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
	}
	result, err := sess.Execute(op)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeSuccess(w, result)
}

func (s *Server) handleCreateDatabase(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, &query.Operation{Kind: query.KindCreateDB, Name: chi.URLParam(r, "db")})
}

func (s *Server) handleDropDatabase(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, &query.Operation{Kind: query.KindDropDB, Name: chi.URLParam(r, "db")})
}

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, &query.Operation{Kind: query.KindCreateCollection, Name: chi.URLParam(r, "coll")})
}

func (s *Server) handleDropCollection(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, &query.Operation{Kind: query.KindDropCollection, Name: chi.URLParam(r, "coll")})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Document  map[string]interface{}   `json:"document"`
		Documents []map[string]interface{} `json:"documents"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	coll := chi.URLParam(r, "coll")
	if body.Documents != nil {
		s.dispatch(w, r, &query.Operation{Kind: query.KindInsertMany, Collection: coll, Documents: body.Documents})
		return
	}
	s.dispatch(w, r, &query.Operation{Kind: query.KindInsert, Collection: coll, Document: body.Document})
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	filter := map[string]interface{}{}
	if raw := r.URL.Query().Get("filter"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filter); err != nil {
			writeError(w, http.StatusBadRequest, "invalid filter: "+err.Error())
			return
		}
	}
	sess := s.session(r)
	if err := selectDatabase(sess, r); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	result, err := sess.Execute(&query.Operation{Kind: query.KindFind, Collection: chi.URLParam(r, "coll"), Filter: filter})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeSuccess(w, docsToMaps(result.([]*document.Document)))
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	filter := map[string]interface{}{}
	if raw := r.URL.Query().Get("filter"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filter); err != nil {
			writeError(w, http.StatusBadRequest, "invalid filter: "+err.Error())
			return
		}
	}
	sess := s.session(r)
	if err := selectDatabase(sess, r); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	result, err := sess.Execute(&query.Operation{Kind: query.KindFind, Collection: chi.URLParam(r, "coll"), Filter: filter})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeSuccess(w, map[string]interface{}{"count": len(result.([]*document.Document))})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Filter map[string]interface{} `json:"filter"`
		Update map[string]interface{} `json:"update"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	many := r.URL.Query().Get("many") == "true"
	s.dispatch(w, r, &query.Operation{
		Kind:       query.KindUpdate,
		Collection: chi.URLParam(r, "coll"),
		Filter:     body.Filter,
		Update:     body.Update,
		All:        many,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Filter map[string]interface{} `json:"filter"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	many := r.URL.Query().Get("many") == "true"
	s.dispatch(w, r, &query.Operation{
		Kind:       query.KindDelete,
		Collection: chi.URLParam(r, "coll"),
		Filter:     body.Filter,
		All:        many,
	})
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body: "+err.Error())
		return
	}
	stages, err := document.ParseArray(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pipeline JSON: "+err.Error())
		return
	}
	sess := s.session(r)
	if err := selectDatabase(sess, r); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	result, err := sess.Execute(&query.Operation{Kind: query.KindAggregate, Collection: chi.URLParam(r, "coll"), Pipeline: stages})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeSuccess(w, docsToMaps(result.([]*document.Document)))
}

func (s *Server) handleCreateIndex(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Field string `json:"field"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	s.dispatch(w, r, &query.Operation{Kind: query.KindCreateIndex, Collection: chi.URLParam(r, "coll"), Field: body.Field})
}

func (s *Server) handleListIndexes(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, &query.Operation{Kind: query.KindListIndexes, Collection: chi.URLParam(r, "coll")})
}

func (s *Server) handleEnableIndexing(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enable bool `json:"enable"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	s.dispatch(w, r, &query.Operation{Kind: query.KindEnableIndexing, Collection: chi.URLParam(r, "coll"), Enable: body.Enable})
}

func (s *Server) handleBeginTx(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, &query.Operation{Kind: query.KindBeginTx})
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, &query.Operation{Kind: query.KindCommit})
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, &query.Operation{Kind: query.KindRollback})
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	result, err := sess.Execute(&query.Operation{Kind: query.KindBackup, Name: chi.URLParam(r, "db")})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeSuccess(w, map[string]interface{}{"archive": result})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	if _, err := sess.Execute(&query.Operation{Kind: query.KindRestore, Name: chi.URLParam(r, "db")}); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeSuccess(w, nil)
}

