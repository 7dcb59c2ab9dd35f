package ingest

import (
	"github.com/joaquim-lab/chipstage/internal/catalog"
	"github.com/joaquim-lab/chipstage/pkg/valuebag"
)

// Combined merges the parameter and metadata bags into one lookup surface:
// the first alias pattern that matches any key in the combined
// {parameters ∪ metadata} bag determines the value.
func Combined(params, meta valuebag.Bag) valuebag.Bag {
	out := make(valuebag.Bag, len(params)+len(meta))
	for k, v := range params {
		out[k] = v
	}
	for k, v := range meta {
		out[k] = v
	}
	return out
}

// ResolveField looks up a canonical field's value in the combined bag via
// the global alias map, trying each alias pattern in order against every
// source key, falling back to a direct normalized-name match.
func ResolveField(canonical string, combined valuebag.Bag, aliases catalog.AliasMap) (valuebag.Value, bool) {
	for _, re := range aliases[canonical] {
		for key, v := range combined {
			if re.MatchString(valuebag.NormalizeKey(key)) {
				return v, true
			}
		}
	}
	if v, ok := combined.Lookup(valuebag.NormalizeKey(canonical)); ok {
		return v, true
	}
	return valuebag.Value{}, false
}
