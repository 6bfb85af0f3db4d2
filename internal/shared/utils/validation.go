package utils

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
)

// Size limits (in bytes)
const (
	MaxFileSize     = 512 * 1024 // a single project file
	MaxProjectFiles = 32
	MaxTitleLength  = 120
	MaxIDLength     = 128
)

// SourcePatterns lists the file names a project may hold.
var SourcePatterns = []string{"*.html", "*.{js,jsx,ts,tsx,mjs}", "*.{css,json,md,txt,svg}"}

// SafeIDPattern allows alphanumeric, hyphens, underscores
var SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateFileName checks a project file name: flat, no traversal, and
// matching one of SourcePatterns.
func ValidateFileName(name string) error {
	if name == "" {
		return fmt.Errorf("file name is required")
	}
	if len(name) > MaxIDLength || strings.ContainsAny(name, `/\`) || path.Clean(name) != name || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid file name %q", name)
	}
	for _, pattern := range SourcePatterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return nil
		}
	}
	return fmt.Errorf("unsupported file type %q", name)
}

// ValidateFileContent checks size and that the content is UTF-8 text.
func ValidateFileContent(name, content string) error {
	if len(content) > MaxFileSize {
		return fmt.Errorf("%s: size %d bytes exceeds maximum %d bytes", name, len(content), MaxFileSize)
	}
	if !utf8.ValidString(content) {
		return fmt.Errorf("%s: content is not valid UTF-8", name)
	}
	if !IsText([]byte(content)) {
		return fmt.Errorf("%s: content is not text", name)
	}
	return nil
}

// IsText reports whether data sniffs as a text format.
func IsText(data []byte) bool {
	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") {
			return true
		}
	}
	return false
}

// ValidateID checks an identifier path parameter.
func ValidateID(id, fieldName string) error {
	if id == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%s exceeds maximum length of %d", fieldName, MaxIDLength)
	}
	if !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}
	return nil
}

// ValidateSize checks a raw payload against limit.
func ValidateSize(data []byte, limit int) error {
	if len(data) > limit {
		return fmt.Errorf("payload size %d bytes exceeds maximum %d bytes", len(data), limit)
	}
	return nil
}
