package handlers

import (
	"net/http"

	"poimap-server/middleware"
	"poimap-server/services"
)

type MapHandler struct {
	pointService *services.PointService
}

func NewMapHandler(pointService *services.PointService) *MapHandler {
	return &MapHandler{pointService: pointService}
}

type LayersResponse struct {
	Layers []services.Layer `json:"layers"`
	Total  int              `json:"total"`
}

// GetLayers serves GET /map/layers?category=&status=&q=&bbox=
func (h *MapHandler) GetLayers(w http.ResponseWriter, r *http.Request) {
	statuses, err := queryStatuses(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	bbox, err := queryBBox(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	layers, err := h.pointService.Layers(r.Context(), services.LayerFilter{
		Enabled:  queryList(r, "category"),
		Statuses: statuses,
		Query:    r.URL.Query().Get("q"),
		BBox:     bbox,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	total := 0
	for _, l := range layers {
		total += l.Count
	}
	middleware.WriteJSON(w, http.StatusOK, LayersResponse{Layers: layers, Total: total})
}
