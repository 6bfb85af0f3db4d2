package project

import (
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Titles used by the editor.
const (
	DefaultTitle  = "My React Project"
	NewTitle      = "New Project"
	UntitledTitle = "Untitled"

	maxTitleLength = 120
)

// Project is a persisted multi-file preview project.
type Project struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Title     string     `json:"title"`
	Files     Files      `json:"files"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Record is the raw stored shape, including the legacy single-file fields.
type Record struct {
	ID        string
	OwnerID   string
	Title     string
	Files     *Files
	JSX       string
	CSS       string
	CreatedAt *time.Time
	UpdatedAt *time.Time
}

// Project converts a stored record into a loadable project. Records without
// files fall back to the legacy component/stylesheet pair.
func (r Record) Project() Project {
	var files Files
	if r.Files != nil && r.Files.Len() > 0 {
		files = Normalize(*r.Files)
	} else {
		files = FromLegacy(r.JSX, r.CSS)
	}

	title := r.Title
	if strings.TrimSpace(title) == "" {
		title = UntitledTitle
	}

	return Project{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Title:     title,
		Files:     files,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// New returns an unsaved project seeded with the starter files.
func New(ownerID string) Project {
	return Project{
		OwnerID: ownerID,
		Title:   NewTitle,
		Files:   DefaultFiles(),
	}
}

var titlePolicy = bluemonday.StrictPolicy()

// SanitizeTitle strips markup and control whitespace from a user title.
func SanitizeTitle(title string) string {
	clean := html.UnescapeString(titlePolicy.Sanitize(title))
	clean = strings.Join(strings.Fields(clean), " ")
	if utf8.RuneCountInString(clean) > maxTitleLength {
		runes := []rune(clean)
		clean = string(runes[:maxTitleLength])
	}
	if clean == "" {
		return UntitledTitle
	}
	return clean
}
