package remotecache

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeRecordNotFound      = "RECORD_NOT_FOUND"
	TextCodeFinderNotRegistered = "FINDER_NOT_REGISTERED"
)

// ArgumentError reports an accessor or registration call with malformed arguments.
type ArgumentError struct {
	Name    string
	Message string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("remotecache: invalid arguments for %s: %s", e.Name, e.Message)
}

// NewRecordNotFound builds the error strict accessors return for an empty result.
func NewRecordNotFound(entity string, attrs Attributes) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("%s not found", entity), goerrors.CategoryNotFound).
		WithTextCode(TextCodeRecordNotFound).
		WithMetadata(map[string]any{
			"entity":     entity,
			"attributes": map[string]any(attrs),
		})
}

// NewFinderNotRegistered builds the error the dispatcher returns when no
// accessor was registered for the attribute set.
func NewFinderNotRegistered(entity, accessor string, names []string) *goerrors.Error {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	msg := fmt.Sprintf("no finder registered on %s for attributes [%s]", entity, strings.Join(sorted, ", "))
	return goerrors.New(msg, goerrors.CategoryBadInput).
		WithTextCode(TextCodeFinderNotRegistered).
		WithMetadata(map[string]any{
			"entity":     entity,
			"accessor":   accessor,
			"attributes": sorted,
		})
}

// IsRecordNotFound reports whether err was raised by a strict accessor.
func IsRecordNotFound(err error) bool {
	return hasTextCode(err, TextCodeRecordNotFound)
}

// IsFinderNotRegistered reports whether err names an unregistered attribute set.
func IsFinderNotRegistered(err error) bool {
	return hasTextCode(err, TextCodeFinderNotRegistered)
}

func hasTextCode(err error, code string) bool {
	var e *goerrors.Error
	if !errors.As(err, &e) {
		return false
	}
	return e.TextCode == code
}
