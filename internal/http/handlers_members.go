package http

import (
	"net/http"

	"payback/internal/core"
	"payback/internal/services"
)

// memberBodyLimit bounds JSON and urlencoded member payloads.
const memberBodyLimit = 16 << 10

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.ledger.ListMembers(r.Context())
	if err != nil {
		writeError(w, r, "list_members", err)
		return
	}
	if members == nil {
		members = []core.Member{}
	}
	NewJSONResponse().Body(members).Write(w)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r, memberBodyLimit)
	if err := parser.Parse(); err != nil {
		writeError(w, r, "add_member", err)
		return
	}

	member, err := s.ledger.AddMember(r.Context(), services.AddMemberCommand{
		Name:  parser.Get("name"),
		Email: optional(parser.Get("email")),
	})
	if err != nil {
		writeError(w, r, "add_member", err)
		return
	}
	s.mutated("add_member")
	NewJSONResponse().Status(http.StatusCreated).Body(member).Write(w)
}

func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, "delete_member", err)
		return
	}
	if err := s.ledger.DeleteMember(r.Context(), id); err != nil {
		writeError(w, r, "delete_member", err)
		return
	}
	s.mutated("delete_member")
	NewJSONResponse().Body(SuccessBody{Success: true}).Write(w)
}
