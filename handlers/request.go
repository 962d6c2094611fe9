package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"poimap-server/models"
	"poimap-server/utils/errors"
	"poimap-server/utils/geo"
)

const maxBodyBytes = 8 << 20

// decodeJSON reads a JSON body into v. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errors.ErrInvalidInput.WithDetails("request body is empty")
		}
		return errors.ErrInvalidInput.WithDetails(err.Error())
	}
	return nil
}

// queryList accepts both ?k=a,b and ?k=a&k=b.
func queryList(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.URL.Query()[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func queryStatuses(r *http.Request) ([]models.PointStatus, error) {
	var out []models.PointStatus
	for _, s := range queryList(r, "status") {
		status := models.PointStatus(strings.ToLower(s))
		if !status.Valid() {
			return nil, errors.ErrInvalidInput.WithDetails("unknown status " + s)
		}
		out = append(out, status)
	}
	return out, nil
}

func queryBBox(r *http.Request) (*geo.BBox, error) {
	raw := r.URL.Query().Get("bbox")
	if raw == "" {
		return nil, nil
	}
	box, err := geo.ParseBBox(raw)
	if err != nil {
		return nil, errors.ErrInvalidInput.WithDetails(err.Error())
	}
	return &box, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.ErrInvalidInput.WithDetails(key + " must be a boolean")
	}
	return v, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.ErrInvalidInput.WithDetails(key + " must be a non-negative integer")
	}
	return v, nil
}

func queryFloat(r *http.Request, key string, required bool) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		if required {
			return 0, errors.ErrInvalidInput.WithDetails(key + " is required")
		}
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.ErrInvalidInput.WithDetails(key + " must be a number")
	}
	return v, nil
}
