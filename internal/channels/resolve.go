package channels

import "strings"

// Alias maps a free-text name onto a brand.
type Alias struct {
	Alias string `json:"alias"`
	Brand string `json:"brand"`
}

type aliasEntry struct {
	key   string
	brand string
}

// Resolver maps free-text channel names (a store sign, a user's guess) onto
// known brands. Lookup is exact brand name, then exact alias, then the first
// alias contained in the input, in alias table order.
type Resolver struct {
	brands  map[string]string
	aliases map[string]string
	ordered []aliasEntry
}

// NewResolver builds the lowercase lookup tables once.
func NewResolver(brands []string, aliases []Alias) *Resolver {
	r := &Resolver{
		brands:  make(map[string]string, len(brands)),
		aliases: make(map[string]string, len(aliases)),
		ordered: make([]aliasEntry, 0, len(aliases)),
	}
	for _, b := range brands {
		key := normalize(b)
		if key == "" {
			continue
		}
		if _, dup := r.brands[key]; !dup {
			r.brands[key] = b
		}
	}
	for _, a := range aliases {
		key := normalize(a.Alias)
		if key == "" || a.Brand == "" {
			continue
		}
		if _, dup := r.aliases[key]; dup {
			continue
		}
		r.aliases[key] = a.Brand
		r.ordered = append(r.ordered, aliasEntry{key: key, brand: a.Brand})
	}
	return r
}

// Resolve returns the brand for input, or false when nothing matches.
func (r *Resolver) Resolve(input string) (string, bool) {
	key := normalize(input)
	if key == "" {
		return "", false
	}
	if b, ok := r.brands[key]; ok {
		return b, true
	}
	if b, ok := r.aliases[key]; ok {
		return b, true
	}
	for _, a := range r.ordered {
		if strings.Contains(key, a.key) {
			return a.brand, true
		}
	}
	return "", false
}

// ResolveAll resolves every input, dropping unknown names and duplicates.
// Order follows the first occurrence of each brand.
func (r *Resolver) ResolveAll(inputs []string) []string {
	seen := make(map[string]bool, len(inputs))
	out := make([]string, 0, len(inputs))
	for _, in := range inputs {
		b, ok := r.Resolve(in)
		if !ok || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
