package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quest-forge/quest-engine/internal/models"
)

// Catalog handlers

func (s *Server) handleListLabs(w http.ResponseWriter, r *http.Request) {
	labs := s.catalog.Labs()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"labs":  labs,
		"total": len(labs),
	})
}

func (s *Server) handleGetLab(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "lab id is required")
		return
	}

	lab := s.catalog.Lab(id)
	if lab == nil {
		respondError(w, http.StatusNotFound, "not_found", "lab not found")
		return
	}

	respondJSON(w, http.StatusOK, lab)
}

// handleGetEffectiveLab resolves a lab with optional quest and template
// overlays applied, selected via ?quest= and ?template= query parameters.
func (s *Server) handleGetEffectiveLab(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "lab id is required")
		return
	}

	lab := s.catalog.Lab(id)
	if lab == nil {
		respondError(w, http.StatusNotFound, "not_found", "lab not found")
		return
	}

	var quest *models.Quest
	if questID := r.URL.Query().Get("quest"); questID != "" {
		quest = s.catalog.Quest(questID)
		if quest == nil {
			respondError(w, http.StatusNotFound, "not_found", "quest not found")
			return
		}
	}

	var template *models.Template
	if templateID := r.URL.Query().Get("template"); templateID != "" {
		template = s.catalog.Template(templateID)
		if template == nil {
			respondError(w, http.StatusNotFound, "not_found", "template not found")
			return
		}
	}

	respondJSON(w, http.StatusOK, s.resolver.Resolve(lab, quest, template))
}

func (s *Server) handleGetQuest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "quest id is required")
		return
	}

	quest := s.catalog.Quest(id)
	if quest == nil {
		respondError(w, http.StatusNotFound, "not_found", "quest not found")
		return
	}

	respondJSON(w, http.StatusOK, quest)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "template id is required")
		return
	}

	template := s.catalog.Template(id)
	if template == nil {
		respondError(w, http.StatusNotFound, "not_found", "template not found")
		return
	}

	respondJSON(w, http.StatusOK, template)
}
