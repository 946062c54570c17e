package packaging

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTag is returned when a compatibility tag string is malformed.
var ErrInvalidTag = errors.New("invalid tag")

// Tag is a PEP 425 compatibility tag: interpreter, ABI and platform.
type Tag struct {
	Interpreter string
	ABI         string
	Platform    string
}

func (t Tag) String() string {
	return t.Interpreter + "-" + t.ABI + "-" + t.Platform
}

// ParseTag expands a possibly compressed tag string such as
// "py2.py3-none-any" into its individual tags. Components are lowercased.
func ParseTag(s string) ([]Tag, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTag, s)
	}
	var tags []Tag
	for _, interp := range strings.Split(parts[0], ".") {
		for _, abi := range strings.Split(parts[1], ".") {
			for _, plat := range strings.Split(parts[2], ".") {
				tags = append(tags, Tag{
					Interpreter: strings.ToLower(interp),
					ABI:         strings.ToLower(abi),
					Platform:    strings.ToLower(plat),
				})
			}
		}
	}
	return tags, nil
}

// SupportedTags is an ordered list of tags an environment accepts, most
// specific first, with a position index for fast lookups.
type SupportedTags struct {
	tags  []Tag
	index map[Tag]int
}

// NewSupportedTags builds a SupportedTags from an ordered tag list.
// When a tag appears more than once its first position wins.
func NewSupportedTags(tags []Tag) *SupportedTags {
	st := &SupportedTags{tags: tags, index: make(map[Tag]int, len(tags))}
	for i, t := range tags {
		if _, dup := st.index[t]; !dup {
			st.index[t] = i
		}
	}
	return st
}

// ParseSupportedTags parses tag strings (as recorded in a scenario's
// environment snapshot) into a SupportedTags, keeping their order.
func ParseSupportedTags(strs []string) (*SupportedTags, error) {
	var tags []Tag
	for _, s := range strs {
		ts, err := ParseTag(s)
		if err != nil {
			return nil, err
		}
		tags = append(tags, ts...)
	}
	return NewSupportedTags(tags), nil
}

// Len returns the number of supported tags.
func (s *SupportedTags) Len() int { return len(s.tags) }

// Tags returns the ordered tag list.
func (s *SupportedTags) Tags() []Tag { return s.tags }

// BestIndex returns the lowest position in s of any tag in candidates.
// ok is false when none of the candidates is supported.
func (s *SupportedTags) BestIndex(candidates []Tag) (idx int, ok bool) {
	idx = len(s.tags)
	for _, t := range candidates {
		if i, found := s.index[t]; found && i < idx {
			idx, ok = i, true
		}
	}
	return idx, ok
}
