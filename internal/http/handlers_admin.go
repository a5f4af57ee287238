package http

import (
	"net/http"
	"strings"

	"livrocaixa/internal/core"
)

type nameRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

type activeRequest struct {
	Active *bool `json:"active"`
}

func (req activeRequest) value() (bool, error) {
	if req.Active == nil {
		return false, &core.ValidationError{Field: "active", Reason: "Informe se o registro está ativo."}
	}
	return *req.Active, nil
}

// onlyActive is true unless the caller asks for ?all=true. Forms list the
// active records; the admin pages list everything.
func onlyActive(r *http.Request) bool {
	return !QueryBool(r.URL.Query(), "all")
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.deps.Admin.ListAccounts(r.Context(), onlyActive(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]accountJSON, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountView(a))
	}
	NewResponse().JSON(map[string]any{"accounts": out}).Write(w)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.deps.Admin.CreateAccount(r.Context(), sanitizeInput(req.Name))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(accountView(a)).Write(w)
}

func (s *Server) handleSetAccountActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	active, err := req.value()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Admin.SetAccountActive(r.Context(), r.PathValue("id"), active); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Admin.DeleteAccount(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.deps.Admin.ListCategories(r.Context(), onlyActive(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kind := core.Kind(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("kind"))))
	out := make([]categoryJSON, 0, len(categories))
	for _, c := range categories {
		if kind != "" && c.Kind != kind {
			continue
		}
		out = append(out, categoryView(c))
	}
	NewResponse().JSON(map[string]any{"categories": out}).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	kind := core.Kind(strings.ToLower(strings.TrimSpace(req.Kind)))
	c, err := s.deps.Admin.CreateCategory(r.Context(), sanitizeInput(req.Name), kind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(categoryView(c)).Write(w)
}

func (s *Server) handleSetCategoryActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	active, err := req.value()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Admin.SetCategoryActive(r.Context(), r.PathValue("id"), active); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Admin.DeleteCategory(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
