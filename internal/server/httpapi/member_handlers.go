package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/kitchensink/internal/server/models"
	"github.com/dmitrijs2005/kitchensink/internal/server/services"
	"github.com/gorilla/mux"
)

type memberRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

type memberResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type pageResponse struct {
	Content       []memberResponse `json:"content"`
	Page          int              `json:"page"`
	Size          int              `json:"size"`
	TotalElements int64            `json:"totalElements"`
	TotalPages    int              `json:"totalPages"`
	Last          bool             `json:"last"`
}

func toMemberResponse(m *models.Member) memberResponse {
	return memberResponse{
		ID:          m.ID,
		Name:        m.Name,
		Email:       m.Email,
		PhoneNumber: m.PhoneNumber,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func (req memberRequest) input() services.MemberInput {
	return services.MemberInput{Name: req.Name, Email: req.Email, PhoneNumber: req.PhoneNumber}
}

func queryInt(r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func queryString(r *http.Request, name, def string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	return def
}

func (s *HTTPServer) handleListMembers(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(r, "page", 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "page must be an integer")
		return
	}
	size, ok := queryInt(r, "size", services.DefaultPageSize)
	if !ok {
		writeError(w, http.StatusBadRequest, "size must be an integer")
		return
	}

	p, err := s.members.List(r.Context(), services.ListQuery{
		Page:      page,
		Size:      size,
		SortBy:    queryString(r, "sortBy", string(models.SortByName)),
		Direction: queryString(r, "direction", "asc"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := pageResponse{
		Content:       make([]memberResponse, 0, len(p.Content)),
		Page:          p.Page,
		Size:          p.Size,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages(),
		Last:          p.Last(),
	}
	for i := range p.Content {
		out.Content = append(out.Content, toMemberResponse(&p.Content[i]))
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: out})
}

func (s *HTTPServer) handleGetMember(w http.ResponseWriter, r *http.Request) {
	m, err := s.members.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: toMemberResponse(m)})
}

func (s *HTTPServer) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	m, err := s.members.Create(r.Context(), req.input())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, apiResponse{Success: true, Message: "Member created successfully", Data: toMemberResponse(m)})
}

func (s *HTTPServer) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	m, err := s.members.Update(r.Context(), mux.Vars(r)["id"], req.input())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Member updated successfully", Data: toMemberResponse(m)})
}

func (s *HTTPServer) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	if err := s.members.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Member deleted successfully"})
}
