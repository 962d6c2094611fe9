package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"poimap-server/models"
	"poimap-server/utils/geo"
)

func TestNormalizePoint(t *testing.T) {
	in := NormalizePoint(models.PointInput{
		Name:     "  Praça   da  Sé ",
		Category: " parques ",
		Website:  " https://x.org ",
		Tags:     []string{" centro ", "", "Centro", "história"},
	})
	assert.Equal(t, "Praça da Sé", in.Name)
	assert.Equal(t, "parques", in.Category)
	assert.Equal(t, "https://x.org", in.Website)
	assert.Equal(t, []string{"centro", "história"}, in.Tags)
}

func TestValidatePoint(t *testing.T) {
	bbox := geo.BBox{MinLat: -33.75, MinLon: -73.99, MaxLat: 5.27, MaxLon: -34.79}
	base := models.PointInput{Name: "Praça da Sé", Category: "parques", Lat: -23.55, Lon: -46.63}

	cases := []struct {
		name   string
		mutate func(*models.PointInput)
		field  string
	}{
		{"valid", func(*models.PointInput) {}, ""},
		{"short name", func(in *models.PointInput) { in.Name = "Sé" }, "name"},
		{"long name", func(in *models.PointInput) { in.Name = strings.Repeat("a", 101) }, "name"},
		{"no category", func(in *models.PointInput) { in.Category = "" }, "category"},
		{"out of range", func(in *models.PointInput) { in.Lat = -91 }, "location"},
		{"null island", func(in *models.PointInput) { in.Lat, in.Lon = 0, 0 }, "location"},
		{"outside bbox", func(in *models.PointInput) { in.Lat, in.Lon = 48.85, 2.35 }, "location"},
		{"short description", func(in *models.PointInput) { in.Description = "curta" }, "description"},
		{"ok description", func(in *models.PointInput) { in.Description = "uma descrição longa" }, ""},
		{"long address", func(in *models.PointInput) { in.Address = strings.Repeat("r", 201) }, "address"},
		{"bad phone", func(in *models.PointInput) { in.Phone = "12ab" }, "phone"},
		{"ok phone", func(in *models.PointInput) { in.Phone = "+55 (11) 3149-5959" }, ""},
		{"bad website", func(in *models.PointInput) { in.Website = "ftp://x.org" }, "website"},
		{"ok website", func(in *models.PointInput) { in.Website = "HTTPS://masp.org.br/visite" }, ""},
		{"too many tags", func(in *models.PointInput) { in.Tags = make([]string, 21) }, "tags"},
		{"long tag", func(in *models.PointInput) { in.Tags = []string{strings.Repeat("t", 41)} }, "tags"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			fields := ValidatePoint(in, bbox)
			if tc.field == "" {
				assert.Empty(t, fields)
				return
			}
			assert.Contains(t, fields, tc.field)
			assert.Len(t, fields, 1)
		})
	}
}

func TestValidateCredentials(t *testing.T) {
	assert.Empty(t, ValidateCredentials("maria.silva", "123456"))
	assert.Contains(t, ValidateCredentials("ma", "123456"), "username")
	assert.Contains(t, ValidateCredentials("maria silva", "123456"), "username")
	assert.Contains(t, ValidateCredentials("maria", "12345"), "password")
}
