package resolver

import (
	"regexp"
	"strings"

	"github.com/outreachly/drip-engine/internal/model"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_]+)\s*\}\}`)

// RenderTemplate substitutes lead placeholders into a step template.
// Matching is case-insensitive and an unknown or empty field renders as an
// empty string, never as the literal placeholder. Pure function, so the
// substitution table below is the complete behavior.
func RenderTemplate(content string, lead *model.Lead) string {
	return placeholderPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := strings.ToLower(placeholderPattern.FindStringSubmatch(match)[1])
		if lead == nil {
			return ""
		}
		switch name {
		case "first", "first_name", "firstname":
			return lead.FirstName
		case "last", "last_name", "lastname":
			return lead.LastName
		case "phone":
			return lead.Phone
		default:
			return ""
		}
	})
}
