package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"poimap-server/models"
	"poimap-server/utils/geo"
	"poimap-server/utils/textnorm"
)

const (
	minNameLen        = 3
	maxNameLen        = 100
	minDescriptionLen = 10
	maxDescriptionLen = 1000
	maxAddressLen     = 200
	maxTags           = 20
	maxTagLen         = 40
	minPasswordLen    = 6
)

var (
	phonePattern    = regexp.MustCompile(`^\+?[0-9()\-\s]{8,20}$`)
	websitePattern  = regexp.MustCompile(`(?i)^https?://[^\s/$.?#].[^\s]*$`)
	colorPattern    = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	slugPattern     = regexp.MustCompile(`^[a-z0-9-]{2,40}$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,50}$`)
)

// NormalizePoint trims every field, collapses whitespace in the name and
// drops empty or repeated tags.
func NormalizePoint(in models.PointInput) models.PointInput {
	in.Name = textnorm.CollapseSpaces(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	in.Address = strings.TrimSpace(in.Address)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Website = strings.TrimSpace(in.Website)

	seen := make(map[string]bool, len(in.Tags))
	tags := make([]string, 0, len(in.Tags))
	for _, tag := range in.Tags {
		tag = textnorm.CollapseSpaces(tag)
		key := textnorm.Fold(tag)
		if tag == "" || seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, tag)
	}
	in.Tags = tags
	return in
}

// ValidatePoint returns one message per invalid field; an empty map means valid.
func ValidatePoint(in models.PointInput, bbox geo.BBox) map[string]string {
	fields := map[string]string{}

	if n := utf8.RuneCountInString(in.Name); n < minNameLen || n > maxNameLen {
		fields["name"] = fmt.Sprintf("must be between %d and %d characters", minNameLen, maxNameLen)
	}
	if in.Category == "" {
		fields["category"] = "is required"
	}
	switch {
	case !geo.ValidLatLon(in.Lat, in.Lon):
		fields["location"] = "latitude must be within [-90,90] and longitude within [-180,180]"
	case in.Lat == 0 && in.Lon == 0:
		fields["location"] = "is required"
	case !bbox.Contains(in.Lat, in.Lon):
		fields["location"] = "is outside the supported area " + bbox.String()
	}
	if in.Description != "" {
		if n := utf8.RuneCountInString(in.Description); n < minDescriptionLen || n > maxDescriptionLen {
			fields["description"] = fmt.Sprintf("must be between %d and %d characters", minDescriptionLen, maxDescriptionLen)
		}
	}
	if utf8.RuneCountInString(in.Address) > maxAddressLen {
		fields["address"] = fmt.Sprintf("must be at most %d characters", maxAddressLen)
	}
	if in.Phone != "" && !phonePattern.MatchString(in.Phone) {
		fields["phone"] = "is not a valid phone number"
	}
	if in.Website != "" && !websitePattern.MatchString(in.Website) {
		fields["website"] = "must be an http or https URL"
	}
	if len(in.Tags) > maxTags {
		fields["tags"] = fmt.Sprintf("at most %d tags", maxTags)
	} else {
		for _, tag := range in.Tags {
			if utf8.RuneCountInString(tag) > maxTagLen {
				fields["tags"] = fmt.Sprintf("each tag must be at most %d characters", maxTagLen)
				break
			}
		}
	}
	return fields
}

func NormalizeCategory(c models.Category) models.Category {
	c.ID = strings.ToLower(strings.TrimSpace(c.ID))
	c.Name = textnorm.CollapseSpaces(c.Name)
	c.Color = strings.ToLower(strings.TrimSpace(c.Color))
	c.Icon = strings.TrimSpace(c.Icon)
	return c
}

func ValidateCategory(c models.Category) map[string]string {
	fields := map[string]string{}
	switch {
	case !slugPattern.MatchString(c.ID):
		fields["id"] = "must be 2-40 lowercase letters, digits or dashes"
	case c.ID == UncategorizedID:
		fields["id"] = "is reserved"
	}
	if n := utf8.RuneCountInString(c.Name); n < 2 || n > 60 {
		fields["name"] = "must be between 2 and 60 characters"
	}
	if !colorPattern.MatchString(c.Color) {
		fields["color"] = "must look like #rrggbb"
	}
	return fields
}

func ValidateCredentials(username, password string) map[string]string {
	fields := map[string]string{}
	if !usernamePattern.MatchString(username) {
		fields["username"] = "must be 3-50 letters, digits, dots, dashes or underscores"
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		fields["password"] = fmt.Sprintf("must be at least %d characters", minPasswordLen)
	}
	return fields
}
