// Package catalog implements C1, the schema catalog: it loads the
// declarative procedure catalog and answers what columns, parameters, and
// metadata a procedure requires, with what types and aliases.
package catalog

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/joaquim-lab/chipstage/pkg/stageerr"
	"github.com/joaquim-lab/chipstage/pkg/table"
	"gopkg.in/yaml.v2"
)

// Field is one declared parameter, metadata, or data-column field.
type Field struct {
	Name     string
	Type     table.ColumnType
	Required bool
}

// ProcSpec is the declared schema for one procedure.
type ProcSpec struct {
	Name       string
	Parameters map[string]Field
	Metadata   map[string]Field
	Data       map[string]Field
}

// DataColumns returns the procedure's declared data columns as ColumnDefs,
// in a stable order (sorted by name) so generated schemas are deterministic.
func (p ProcSpec) DataColumns() []table.ColumnDef {
	names := make([]string, 0, len(p.Data))
	for n := range p.Data {
		names = append(names, n)
	}
	sort.Strings(names)
	defs := make([]table.ColumnDef, 0, len(names))
	for _, n := range names {
		defs = append(defs, table.ColumnDef{Name: n, Type: p.Data[n].Type})
	}
	return defs
}

// AliasMap pairs each canonical manifest field with an ordered list of
// compiled source-name patterns; the first pattern matching any key in the
// combined parameter+metadata bag determines the alias resolution.
type AliasMap map[string][]*regexp.Regexp

// Catalog is the immutable, shared-read-only result of loading the
// procedure catalog.
type Catalog struct {
	procedures map[string]ProcSpec
	aliases    AliasMap
	rawAliases map[string][]string
	strict     bool // strict-mode policy for unknown procedures
}

// rawCatalog mirrors the catalog YAML document shape.
type rawCatalog struct {
	Procedures        map[string]rawProcedure `yaml:"procedures"`
	ManifestColumnMap map[string][]string      `yaml:"ManifestColumnMap"`
}

type rawProcedure struct {
	Parameters map[string]rawField `yaml:"Parameters"`
	Metadata   map[string]rawField `yaml:"Metadata"`
	Data       map[string]rawField `yaml:"Data"`
}

// rawField supports both the short form (a bare type name) and the long
// form ({type, required}); yaml.v2 unmarshals scalars and maps into the
// same node, so UnmarshalYAML dispatches on the node's kind.
type rawField struct {
	Type     string
	Required bool
}

func (f *rawField) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var short string
	if err := unmarshal(&short); err == nil {
		f.Type = short
		f.Required = false
		return nil
	}
	var long struct {
		Type     string `yaml:"type"`
		Required bool   `yaml:"required"`
	}
	if err := unmarshal(&long); err != nil {
		return err
	}
	f.Type = long.Type
	f.Required = long.Required
	return nil
}

// EnrichedFields lists the fixed columns the enrichment stage adds to
// every measurement record, which count as "known" for the purposes of
// the catalog closure invariant even though no procedure declares them.
var EnrichedFields = map[string]bool{
	"identity":          true,
	"procedure":         true,
	"start_time_utc":    true,
	"source_file_path":  true,
	"illuminated":       true,
	"wavelength":        true,
	"source_voltage":    true,
	"chip_group":        true,
	"chip_number":       true,
	"sample_id":         true,
	"procedure_version": true,
}

// Load parses a catalog document from path and validates it: unknown
// declared types and alias references to undeclared canonical fields both
// fail as *stageerr.Error with CodeInvalidCatalog, before any file is
// touched (this is fatal at run start, never per-file).
func Load(path string, strict bool) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, stageerr.InvalidCatalog("load", "cannot read catalog file").Wrap(err).With("path", path)
	}
	return Parse(data, strict)
}

// Parse parses catalog YAML content already read into memory.
func Parse(data []byte, strict bool) (*Catalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, stageerr.InvalidCatalog("parse", "malformed catalog YAML").Wrap(err)
	}

	procedures := make(map[string]ProcSpec, len(raw.Procedures))
	for name, rp := range raw.Procedures {
		spec := ProcSpec{Name: name}
		var err error
		if spec.Parameters, err = convertFields(rp.Parameters); err != nil {
			return nil, stageerr.InvalidCatalog("parse", fmt.Sprintf("procedure %q Parameters: %v", name, err))
		}
		if spec.Metadata, err = convertFields(rp.Metadata); err != nil {
			return nil, stageerr.InvalidCatalog("parse", fmt.Sprintf("procedure %q Metadata: %v", name, err))
		}
		if spec.Data, err = convertFields(rp.Data); err != nil {
			return nil, stageerr.InvalidCatalog("parse", fmt.Sprintf("procedure %q Data: %v", name, err))
		}
		procedures[name] = spec
	}

	aliases := make(AliasMap, len(raw.ManifestColumnMap))
	for canonical, patterns := range raw.ManifestColumnMap {
		compiled := make([]*regexp.Regexp, 0, len(patterns))
		for _, p := range patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, stageerr.InvalidCatalog("parse", fmt.Sprintf("alias pattern %q for %q: %v", p, canonical, err))
			}
			compiled = append(compiled, re)
		}
		aliases[canonical] = compiled
	}

	cat := &Catalog{
		procedures: procedures,
		aliases:    aliases,
		rawAliases: raw.ManifestColumnMap,
		strict:     strict,
	}

	if err := cat.checkClosure(); err != nil {
		return nil, err
	}
	return cat, nil
}

// checkClosure enforces the catalog-closure invariant: every alias-map
// canonical field name is either declared in some procedure's
// Parameters/Metadata, or is a known enriched field.
func (c *Catalog) checkClosure() error {
	for canonical := range c.rawAliases {
		if EnrichedFields[canonical] {
			continue
		}
		declared := false
		for _, spec := range c.procedures {
			if _, ok := spec.Parameters[canonical]; ok {
				declared = true
				break
			}
			if _, ok := spec.Metadata[canonical]; ok {
				declared = true
				break
			}
		}
		if !declared {
			return stageerr.InvalidCatalog("closure", fmt.Sprintf("alias map references undeclared canonical field %q", canonical))
		}
	}
	return nil
}

func convertFields(raw map[string]rawField) (map[string]Field, error) {
	out := make(map[string]Field, len(raw))
	for name, rf := range raw {
		typ, ok := table.ParseColumnType(rf.Type)
		if !ok {
			return nil, fmt.Errorf("unknown type %q for field %q", rf.Type, name)
		}
		out[name] = Field{Name: name, Type: typ, Required: rf.Required}
	}
	return out, nil
}

// SpecOf returns the declared schema for a procedure. Unknown procedures
// return a sentinel empty spec with ok=false; the caller decides per
// strict/permissive policy whether that is acceptable.
func (c *Catalog) SpecOf(procedure string) (ProcSpec, bool) {
	spec, ok := c.procedures[procedure]
	if !ok {
		return ProcSpec{Name: procedure}, false
	}
	return spec, true
}

// Strict reports whether unknown procedures should be rejected.
func (c *Catalog) Strict() bool { return c.strict }

// Aliases exposes the compiled global alias map.
func (c *Catalog) Aliases() AliasMap { return c.aliases }
