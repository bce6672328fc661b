package connector

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Category tells the two permission catalogs apart.
type Category int

const (
	CategoryITRole Category = iota + 1
	CategoryRequestRight
)

const (
	prefixRole    = "role"
	prefixRequest = "request"
)

func (c Category) String() string {
	switch c {
	case CategoryITRole:
		return prefixRole
	case CategoryRequestRight:
		return prefixRequest
	}
	return "unknown"
}

// Label is the human readable description attached to catalog entries.
func (c Category) Label() string {
	switch c {
	case CategoryITRole:
		return "IT role"
	case CategoryRequestRight:
		return "Request right"
	}
	return ""
}

// PermissionID identifies one entry of one catalog. Its wire form is
// "<category>:<id>", e.g. "role:1" or "request:2".
type PermissionID struct {
	Category Category
	ID       int64
}

func (p PermissionID) String() string {
	return p.Category.String() + ":" + strconv.FormatInt(p.ID, 10)
}

// ParsePermissionID parses the wire form, splitting on the first colon.
func ParsePermissionID(s string) (PermissionID, error) {
	prefix, rest, ok := strings.Cut(s, ":")
	if !ok {
		return PermissionID{}, fmt.Errorf("%w: %q has no category", ErrInvalidPermissionID, s)
	}

	var cat Category
	switch prefix {
	case prefixRole:
		cat = CategoryITRole
	case prefixRequest:
		cat = CategoryRequestRight
	default:
		return PermissionID{}, fmt.Errorf("%w: %w %q", ErrInvalidPermissionID, ErrUnknownCategory, prefix)
	}

	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return PermissionID{}, fmt.Errorf("%w: %q: %v", ErrInvalidPermissionID, s, err)
	}
	return PermissionID{Category: cat, ID: id}, nil
}

// ParsePermissionIDs parses every id, stopping at the first malformed one.
// Well-formed ids of an unknown category are not an error; they are
// returned in skipped.
func ParsePermissionIDs(ids []string) (parsed []PermissionID, skipped []string, err error) {
	parsed = make([]PermissionID, 0, len(ids))
	for _, s := range ids {
		p, perr := ParsePermissionID(s)
		switch {
		case errors.Is(perr, ErrUnknownCategory):
			if _, rest, _ := strings.Cut(s, ":"); !isNumeric(rest) {
				return nil, nil, perr
			}
			skipped = append(skipped, s)
		case perr != nil:
			return nil, nil, perr
		default:
			parsed = append(parsed, p)
		}
	}
	return parsed, skipped, nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}
