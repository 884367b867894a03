package utils

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und)

// NormalizeDisplayName squashes whitespace and title-cases a synced profile
// name so downstream display never sees raw account-service formatting.
func NormalizeDisplayName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return name
	}
	return titleCaser.String(name)
}
