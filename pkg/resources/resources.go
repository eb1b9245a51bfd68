package resources

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Type identifies the value shape of a resource.
type Type string

const (
	TypeScalar Type = "scalar"
	TypeRanges Type = "ranges"
	TypeSet    Type = "set"
)

// Range is a closed interval of integers.
type Range struct {
	Begin uint64 `json:"begin"`
	End   uint64 `json:"end"`
}

// Resource is a single named value.
type Resource struct {
	Name   string   `json:"name"`
	Type   Type     `json:"type"`
	Scalar float64  `json:"scalar,omitempty"`
	Ranges []Range  `json:"ranges,omitempty"`
	Set    []string `json:"set,omitempty"`
}

// Resources is a multiset of named resources. At most one entry exists per
// name; operations keep that normal form.
type Resources []Resource

// Scalar builds a scalar resource.
func Scalar(name string, value float64) Resource {
	return Resource{Name: name, Type: TypeScalar, Scalar: value}
}

// Ranges builds a range-set resource from begin/end pairs.
func Ranges(name string, ranges ...Range) Resource {
	return Resource{Name: name, Type: TypeRanges, Ranges: normalizeRanges(ranges)}
}

// Set builds a labelled-set resource.
func Set(name string, items ...string) Resource {
	return Resource{Name: name, Type: TypeSet, Set: normalizeSet(items)}
}

// Parse parses the textual form, e.g. "cpus:1;mem:1024;ports:[31000-32000]".
func Parse(s string) (Resources, error) {
	var out Resources
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("malformed resource %q: expected name:value", part)
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" {
			return nil, fmt.Errorf("malformed resource %q: empty name", part)
		}

		var r Resource
		switch {
		case strings.HasPrefix(value, "["):
			ranges, err := parseRanges(value)
			if err != nil {
				return nil, fmt.Errorf("malformed ranges for %q: %w", name, err)
			}
			r = Ranges(name, ranges...)
		case strings.HasPrefix(value, "{"):
			items, err := parseSet(value)
			if err != nil {
				return nil, fmt.Errorf("malformed set for %q: %w", name, err)
			}
			r = Set(name, items...)
		default:
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed scalar for %q: %w", name, err)
			}
			if v < 0 {
				return nil, fmt.Errorf("negative scalar for %q", name)
			}
			r = Scalar(name, v)
		}
		out = out.Plus(r)
	}
	return out, nil
}

func parseRanges(value string) ([]Range, error) {
	if !strings.HasSuffix(value, "]") {
		return nil, fmt.Errorf("missing closing bracket in %q", value)
	}
	inner := strings.TrimSpace(value[1 : len(value)-1])
	if inner == "" {
		return nil, nil
	}
	var ranges []Range
	for _, item := range strings.Split(inner, ",") {
		begin, end, ok := strings.Cut(strings.TrimSpace(item), "-")
		if !ok {
			return nil, fmt.Errorf("range %q is not of the form begin-end", item)
		}
		b, err := strconv.ParseUint(strings.TrimSpace(begin), 10, 64)
		if err != nil {
			return nil, err
		}
		e, err := strconv.ParseUint(strings.TrimSpace(end), 10, 64)
		if err != nil {
			return nil, err
		}
		if e < b {
			return nil, fmt.Errorf("range %q ends before it begins", item)
		}
		ranges = append(ranges, Range{Begin: b, End: e})
	}
	return ranges, nil
}

func parseSet(value string) ([]string, error) {
	if !strings.HasSuffix(value, "}") {
		return nil, fmt.Errorf("missing closing brace in %q", value)
	}
	inner := strings.TrimSpace(value[1 : len(value)-1])
	if inner == "" {
		return nil, nil
	}
	var items []string
	for _, item := range strings.Split(inner, ",") {
		items = append(items, strings.TrimSpace(item))
	}
	return items, nil
}

// Get returns the resource with the given name.
func (rs Resources) Get(name string) (Resource, bool) {
	for _, r := range rs {
		if r.Name == name {
			return r, true
		}
	}
	return Resource{}, false
}

// GetScalar returns the value of the named scalar, or def if the name is
// absent or not a scalar.
func (rs Resources) GetScalar(name string, def float64) float64 {
	if r, ok := rs.Get(name); ok && r.Type == TypeScalar {
		return r.Scalar
	}
	return def
}

// Plus returns a copy of rs with r added in.
func (rs Resources) Plus(r Resource) Resources {
	out := make(Resources, 0, len(rs)+1)
	merged := false
	for _, existing := range rs {
		if existing.Name == r.Name {
			if existing.Type != r.Type {
				panic(fmt.Sprintf("resources: adding %s %s to %s %s",
					r.Type, r.Name, existing.Type, existing.Name))
			}
			out = append(out, addResource(existing, r))
			merged = true
		} else {
			out = append(out, existing)
		}
	}
	if !merged {
		out = append(out, r)
	}
	return out
}

// Add returns the commutative sum of two vectors.
func (rs Resources) Add(other Resources) Resources {
	out := rs
	for _, r := range other {
		out = out.Plus(r)
	}
	return out
}

// Minus returns a copy of rs with r taken out. Subtracting below zero is a
// programmer error and panics.
func (rs Resources) Minus(r Resource) Resources {
	out := make(Resources, 0, len(rs))
	found := false
	for _, existing := range rs {
		if existing.Name == r.Name {
			if existing.Type != r.Type {
				panic(fmt.Sprintf("resources: subtracting %s %s from %s %s",
					r.Type, r.Name, existing.Type, existing.Name))
			}
			out = append(out, subtractResource(existing, r))
			found = true
		} else {
			out = append(out, existing)
		}
	}
	if !found {
		panic(fmt.Sprintf("resources: subtracting absent resource %s", r.Name))
	}
	return out
}

// Subtract returns rs minus other.
func (rs Resources) Subtract(other Resources) Resources {
	out := rs
	for _, r := range other {
		out = out.Minus(r)
	}
	return out
}

func addResource(a, b Resource) Resource {
	switch a.Type {
	case TypeScalar:
		a.Scalar += b.Scalar
	case TypeRanges:
		a.Ranges = normalizeRanges(append(append([]Range{}, a.Ranges...), b.Ranges...))
	case TypeSet:
		a.Set = normalizeSet(append(append([]string{}, a.Set...), b.Set...))
	}
	return a
}

func subtractResource(a, b Resource) Resource {
	switch a.Type {
	case TypeScalar:
		if b.Scalar > a.Scalar {
			panic(fmt.Sprintf("resources: %s underflow (%v - %v)", a.Name, a.Scalar, b.Scalar))
		}
		a.Scalar -= b.Scalar
	case TypeRanges:
		a.Ranges = subtractRanges(a.Ranges, b.Ranges)
	case TypeSet:
		a.Set = subtractSet(a.Set, b.Set)
	}
	return a
}

// normalizeRanges sorts and coalesces overlapping or adjacent intervals.
func normalizeRanges(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}
	sorted := append([]Range{}, ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Begin < sorted[j].Begin })

	out := []Range{sorted[0]}
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		if r.Begin <= last.End+1 {
			if r.End > last.End {
				last.End = r.End
			}
		} else {
			out = append(out, r)
		}
	}
	return out
}

func subtractRanges(a, b []Range) []Range {
	out := append([]Range{}, normalizeRanges(a)...)
	for _, sub := range normalizeRanges(b) {
		var next []Range
		for _, r := range out {
			if sub.End < r.Begin || sub.Begin > r.End {
				next = append(next, r)
				continue
			}
			if sub.Begin > r.Begin {
				next = append(next, Range{Begin: r.Begin, End: sub.Begin - 1})
			}
			if sub.End < r.End {
				next = append(next, Range{Begin: sub.End + 1, End: r.End})
			}
		}
		out = next
	}
	return out
}

func normalizeSet(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	sort.Strings(out)
	return out
}

func subtractSet(a, b []string) []string {
	remove := make(map[string]bool, len(b))
	for _, item := range b {
		remove[item] = true
	}
	var out []string
	for _, item := range a {
		if !remove[item] {
			out = append(out, item)
		}
	}
	return out
}

// String renders the textual form.
func (rs Resources) String() string {
	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, ";")
}

func (r Resource) String() string {
	switch r.Type {
	case TypeRanges:
		items := make([]string, 0, len(r.Ranges))
		for _, rng := range r.Ranges {
			items = append(items, fmt.Sprintf("%d-%d", rng.Begin, rng.End))
		}
		return fmt.Sprintf("%s:[%s]", r.Name, strings.Join(items, ","))
	case TypeSet:
		return fmt.Sprintf("%s:{%s}", r.Name, strings.Join(r.Set, ","))
	default:
		return fmt.Sprintf("%s:%s", r.Name, strconv.FormatFloat(r.Scalar, 'f', -1, 64))
	}
}
