// Package plusdomainstest provides an in-memory activities API for tests.
package plusdomainstest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/delegate/internal/idptest"
	"github.com/aussiebroadwan/delegate/pkg/httpx"
	"github.com/aussiebroadwan/delegate/pkg/idx"
	"github.com/aussiebroadwan/delegate/pkg/plusdomains"
	"github.com/aussiebroadwan/delegate/pkg/slogx"
)

// Server stores inserted activities and authorizes callers against an
// idptest.Server.
type Server struct {
	srv *httptest.Server
	idp *idptest.Server

	mu         sync.Mutex
	activities map[string]plusdomains.Activity
	order      []string
	requests   int
}

// New starts a Server and stops it when the test ends.
func New(t testing.TB, idp *idptest.Server) *Server {
	t.Helper()

	s := &Server{
		idp:        idp,
		activities: make(map[string]plusdomains.Activity),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /people/{userId}/activities", s.insert)
	mux.HandleFunc("GET /activities/{activityId}", s.get)

	s.srv = httptest.NewServer(slogx.HTTPMiddleware(slogx.Discard())(mux))
	t.Cleanup(s.srv.Close)
	return s
}

// URL is the API base URL.
func (s *Server) URL() string { return s.srv.URL }

// Requests counts authorized and unauthorized calls alike.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Inserted returns stored activities in insertion order.
func (s *Server) Inserted() []plusdomains.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]plusdomains.Activity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.activities[id])
	}
	return out
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request, scopes ...string) (idptest.Grant, bool) {
	s.mu.Lock()
	s.requests++
	s.mu.Unlock()

	grant, ok := s.idp.Authorize(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authError", "Invalid Credentials")
		return idptest.Grant{}, false
	}

	have := make(map[string]bool, len(grant.Scopes))
	for _, sc := range grant.Scopes {
		have[sc] = true
	}
	for _, sc := range scopes {
		if !have[sc] {
			writeError(w, http.StatusForbidden, "PERMISSION_DENIED", "insufficientPermissions", "Insufficient Permission")
			return idptest.Grant{}, false
		}
	}
	return grant, true
}

func (s *Server) insert(w http.ResponseWriter, r *http.Request) {
	grant, ok := s.authorize(w, r, plusdomains.ScopePlusStreamWrite)
	if !ok {
		return
	}

	userID := r.PathValue("userId")
	if userID == plusdomains.UserMe {
		userID = grant.Subject
	}
	if userID == "" || userID != grant.Subject {
		writeError(w, http.StatusForbidden, "PERMISSION_DENIED", "forbidden", "Cannot post as another user")
		return
	}

	var in plusdomains.Activity
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "parseError", "Parse Error")
		return
	}
	if in.Object == nil || in.Object.OriginalContent == "" {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "required", "Required field: object.originalContent")
		return
	}
	if in.Access == nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "required", "Required field: access")
		return
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	id := idx.New().String()

	out := in
	out.Kind = "plus#activity"
	out.ID = id
	out.Title = in.Object.OriginalContent
	out.Verb = "post"
	out.Published = now
	out.Updated = now
	out.URL = fmt.Sprintf("https://plus.google.com/%s/posts/%s", userID, id)
	out.Actor = &plusdomains.Actor{ID: userID, DisplayName: userID}
	obj := *in.Object
	obj.ObjectType = "note"
	obj.Content = obj.OriginalContent
	out.Object = &obj
	acl := *in.Access
	acl.Kind = "plus#acl"
	if acl.DomainRestricted {
		acl.Description = "Domain"
	}
	out.Access = &acl

	s.mu.Lock()
	s.activities[id] = out
	s.order = append(s.order, id)
	s.mu.Unlock()

	httpx.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, plusdomains.ScopePlusMe); !ok {
		return
	}

	s.mu.Lock()
	a, ok := s.activities[r.PathValue("activityId")]
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "notFound", "Not Found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a)
}

func writeError(w http.ResponseWriter, code int, status, reason, msg string) {
	httpx.WriteJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
			"status":  status,
			"errors": []map[string]string{
				{"domain": "global", "reason": reason, "message": msg},
			},
		},
	})
}
