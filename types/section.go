package types

import "time"

// SectionVisibility toggles whether a section of the public site is shown.
type SectionVisibility struct {
	ID          string     `json:"id" db:"id"`
	SectionName string     `json:"section_name" db:"section_name"`
	IsVisible   bool       `json:"is_visible" db:"is_visible"`
	UpdatedAt   *time.Time `json:"updated_at" db:"updated_at"`
	UpdatedBy   *string    `json:"updated_by" db:"updated_by"`
}

// DefaultSections lists the sections every site has, in display order.
var DefaultSections = []string{
	"about",
	"skills",
	"experience",
	"portfolio",
	"blog",
	"newsletter",
	"contact",
}

// DefaultVisibility reports the initial visibility of a section. Blog and
// newsletter start hidden.
func DefaultVisibility(section string) bool {
	return section != "blog" && section != "newsletter"
}
