package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"poimap-server/middleware"
	"poimap-server/models"
	"poimap-server/services"
)

type CategoryHandler struct {
	categoryService *services.CategoryService
}

func NewCategoryHandler(categoryService *services.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categoryService.List(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, categories)
}

func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var input models.Category
	if err := decodeJSON(w, r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}
	category, err := h.categoryService.Create(r.Context(), input)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, category)
}

func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var input models.Category
	if err := decodeJSON(w, r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}
	category, err := h.categoryService.Update(r.Context(), mux.Vars(r)["id"], input)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, category)
}

func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.categoryService.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
