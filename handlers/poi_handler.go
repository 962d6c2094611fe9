package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"poimap-server/middleware"
	"poimap-server/models"
	"poimap-server/services"
	"poimap-server/utils/errors"
)

type POIHandler struct {
	pointService *services.PointService
}

type NearbyPOIResponse struct {
	NearbyPOIs []services.NearbyPoint `json:"nearby_pois"`
	Count      int                    `json:"count"`
	Lat        float64                `json:"lat"`
	Lon        float64                `json:"lon"`
	Radius     float64                `json:"radius"`
}

func NewPOIHandler(pointService *services.PointService) *POIHandler {
	return &POIHandler{pointService: pointService}
}

// ListPOIs serves GET /pois?category=&status=&q=&bbox=&include_deleted=&mine=&limit=&offset=
func (h *POIHandler) ListPOIs(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	result, err := h.pointService.List(r.Context(), filter)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

func listFilter(r *http.Request) (services.ListFilter, error) {
	var (
		f   services.ListFilter
		err error
	)
	f.Categories = queryList(r, "category")
	f.Query = r.URL.Query().Get("q")
	if f.Statuses, err = queryStatuses(r); err != nil {
		return f, err
	}
	if f.BBox, err = queryBBox(r); err != nil {
		return f, err
	}
	if f.IncludeDeleted, err = queryBool(r, "include_deleted"); err != nil {
		return f, err
	}
	if f.Mine, err = queryBool(r, "mine"); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func (h *POIHandler) GetNearbyPOIs(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "lat", true)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	lon, err := queryFloat(r, "lon", true)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	radius, err := queryFloat(r, "radius", false)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	category := r.URL.Query().Get("category")

	pois, err := h.pointService.Nearby(r.Context(), lat, lon, radius, category)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, NearbyPOIResponse{
		NearbyPOIs: pois,
		Count:      len(pois),
		Lat:        lat,
		Lon:        lon,
		Radius:     services.NearbyRadius(radius),
	})
}

func (h *POIHandler) GetPOI(w http.ResponseWriter, r *http.Request) {
	point, err := h.pointService.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, point)
}

func (h *POIHandler) CreatePOI(w http.ResponseWriter, r *http.Request) {
	var input models.PointInput
	if err := decodeJSON(w, r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}
	point, err := h.pointService.Create(r.Context(), input)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, point)
}

func (h *POIHandler) UpdatePOI(w http.ResponseWriter, r *http.Request) {
	var input models.PointInput
	if err := decodeJSON(w, r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}
	point, err := h.pointService.Update(r.Context(), mux.Vars(r)["id"], input)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, point)
}

func (h *POIHandler) DeletePOI(w http.ResponseWriter, r *http.Request) {
	if err := h.pointService.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reviewInput struct {
	Note string `json:"note"`
}

// reviewNote reads the optional {"note": "..."} body of approve and reject.
func reviewNote(w http.ResponseWriter, r *http.Request) (string, error) {
	var input reviewInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&input); err != nil && err != io.EOF {
		return "", errors.ErrInvalidInput.WithDetails(err.Error())
	}
	return input.Note, nil
}

func (h *POIHandler) ApprovePOI(w http.ResponseWriter, r *http.Request) {
	note, err := reviewNote(w, r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	point, err := h.pointService.Approve(r.Context(), mux.Vars(r)["id"], note)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, point)
}

func (h *POIHandler) RejectPOI(w http.ResponseWriter, r *http.Request) {
	note, err := reviewNote(w, r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	point, err := h.pointService.Reject(r.Context(), mux.Vars(r)["id"], note)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, point)
}

func (h *POIHandler) HidePOI(w http.ResponseWriter, r *http.Request) {
	h.setHidden(w, r, true)
}

func (h *POIHandler) UnhidePOI(w http.ResponseWriter, r *http.Request) {
	h.setHidden(w, r, false)
}

func (h *POIHandler) setHidden(w http.ResponseWriter, r *http.Request, hidden bool) {
	point, err := h.pointService.SetHidden(r.Context(), mux.Vars(r)["id"], hidden)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, point)
}

func (h *POIHandler) RestorePOI(w http.ResponseWriter, r *http.Request) {
	point, err := h.pointService.Restore(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, point)
}

func (h *POIHandler) PurgePOI(w http.ResponseWriter, r *http.Request) {
	if err := h.pointService.Purge(r.Context(), mux.Vars(r)["id"]); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
