// Package payer loads the EPS payer registry: per-payer identifiers, filename
// template and ordered document-type keyword rules.
package payer

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/eps-docsorter/constants"
	"github.com/joseph-ayodele/eps-docsorter/internal/classify"
	"github.com/joseph-ayodele/eps-docsorter/internal/common"
	"github.com/joseph-ayodele/eps-docsorter/internal/naming"
)

//go:embed payers.yaml
var builtinRegistry []byte

// Profile is one payer's naming and classification configuration.
type Profile struct {
	Name             string
	NumericID        string
	Prefix           string
	Suffix           string
	FilenameTemplate string
	Rules            classify.Rules
}

// Filename renders the payer's canonical filename for a merged document.
func (p Profile) Filename(docType constants.DocumentType, invoice string) (string, error) {
	return naming.Render(p.FilenameTemplate, naming.Fields{
		FileType: docType,
		NIT:      p.NumericID,
		Prefix:   p.Prefix,
		Suffix:   p.Suffix,
		Invoice:  invoice,
	})
}

// CanonicalNames maps every final filename the payer can produce for invoice
// back to its document type.
func (p Profile) CanonicalNames(invoice string) (map[string]constants.DocumentType, error) {
	out := make(map[string]constants.DocumentType, len(p.Rules))
	for _, r := range p.Rules {
		name, err := p.Filename(r.Type, invoice)
		if err != nil {
			return nil, err
		}
		out[name] = r.Type
	}
	return out, nil
}

// Registry is an immutable, ordered set of payer profiles.
type Registry struct {
	order  []string
	byName map[string]Profile
}

// Builtin returns the registry embedded in the binary.
func Builtin() (*Registry, error) {
	return Parse(builtinRegistry, "builtin")
}

// Load reads a registry from path, or the built-in one when path is empty.
// JSON files are accepted as well since JSON parses as YAML.
func Load(path string) (*Registry, error) {
	path = common.CleanPath(path)
	if path == "" {
		return Builtin()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.NewAppError(common.KindConfig, path, "read payer registry", err)
	}
	return Parse(data, path)
}

// Parse decodes and validates a registry document. source only labels errors.
func Parse(data []byte, source string) (*Registry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, common.NewAppError(common.KindConfig, source, "parse payer registry", err)
	}
	if err := validateNode(&doc); err != nil {
		return nil, common.NewAppError(common.KindConfig, source, "invalid payer registry", err)
	}

	root := doc.Content[0]
	payers := mappingValue(root, "payers")
	reg := &Registry{byName: make(map[string]Profile)}
	for i := 0; i+1 < len(payers.Content); i += 2 {
		name := strings.TrimSpace(payers.Content[i].Value)
		p, err := buildProfile(name, payers.Content[i+1])
		if err != nil {
			return nil, common.NewAppError(common.KindConfig, source, "invalid payer "+name, err)
		}
		key := strings.ToUpper(name)
		if _, dup := reg.byName[key]; dup {
			return nil, common.NewAppError(common.KindConfig, source, "duplicate payer "+name, common.ErrInvalidInput)
		}
		reg.order = append(reg.order, name)
		reg.byName[key] = p
	}
	return reg, nil
}

// Lookup finds a payer by name, ignoring case and surrounding whitespace.
func (r *Registry) Lookup(name string) (Profile, error) {
	p, ok := r.byName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, common.NewAppError(common.KindConfig, "",
			fmt.Sprintf("unknown payer %q (known: %s)", name, strings.Join(r.Names(), ", ")), common.ErrNotFound)
	}
	return p, nil
}

// Names lists payers in registry order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func buildProfile(name string, n *yaml.Node) (Profile, error) {
	p := Profile{
		Name:             name,
		NumericID:        strings.TrimSpace(scalar(mappingValue(n, "numeric_id"))),
		Prefix:           scalar(mappingValue(n, "prefix")),
		Suffix:           scalar(mappingValue(n, "suffix")),
		FilenameTemplate: strings.TrimSpace(scalar(mappingValue(n, "filename_template"))),
	}

	v := common.NewValidator()
	v.Field("numeric_id", p.NumericID, common.Required, common.Digits)
	v.Field("prefix", p.Prefix, common.MaxLength(16))
	v.Field("suffix", p.Suffix, common.MaxLength(16))
	if err := v.Err(name); err != nil {
		return Profile{}, err
	}
	if err := naming.Validate(p.FilenameTemplate); err != nil {
		return Profile{}, err
	}

	types := mappingValue(n, "types")
	seen := make(map[constants.DocumentType]bool)
	for i := 0; i+1 < len(types.Content); i += 2 {
		t := constants.ParseDocumentType(types.Content[i].Value)
		if t.IsZero() {
			return Profile{}, fmt.Errorf("line %d: empty document type", types.Content[i].Line)
		}
		if seen[t] {
			return Profile{}, fmt.Errorf("line %d: document type %s listed twice", types.Content[i].Line, t)
		}
		seen[t] = true

		rule := classify.Rule{Type: t}
		for _, kw := range types.Content[i+1].Content {
			if s := strings.TrimSpace(kw.Value); s != "" {
				rule.Keywords = append(rule.Keywords, s)
			}
		}
		p.Rules = append(p.Rules, rule)
	}

	if err := checkCanonicalCollisions(p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// checkCanonicalCollisions rejects templates that would give two types the
// same filename, since merged documents would then overwrite each other.
func checkCanonicalCollisions(p Profile) error {
	names, err := p.CanonicalNames("0")
	if err != nil {
		return err
	}
	if len(names) == len(p.Rules) {
		return nil
	}
	types := p.Rules.Types()
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return fmt.Errorf("filename template %q does not distinguish document types %v", p.FilenameTemplate, types)
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func scalar(n *yaml.Node) string {
	if n == nil {
		return ""
	}
	return n.Value
}
