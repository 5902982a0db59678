package services

import (
	"strings"

	"yojana-backend/internal/models"
)

const linkSeparator = " | "

// ParseLinks turns "label: url | label: url" into labelled links. Segments
// without a colon, or with an empty label or url, are skipped.
func ParseLinks(raw string) []models.SchemeLink {
	links := []models.SchemeLink{}
	if raw == "" {
		return links
	}

	for _, part := range strings.Split(raw, linkSeparator) {
		label, url, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		label = strings.TrimSpace(label)
		url = strings.TrimSpace(url)
		if label == "" || url == "" {
			continue
		}
		links = append(links, models.SchemeLink{Label: label, URL: url})
	}

	return links
}

// PrepareSchemes returns a copy of results with ParsedLinks filled in.
func PrepareSchemes(results []models.Scheme) []models.Scheme {
	if len(results) == 0 {
		return nil
	}
	out := make([]models.Scheme, len(results))
	for i, s := range results {
		s.ParsedLinks = ParseLinks(s.Links)
		out[i] = s
	}
	return out
}
