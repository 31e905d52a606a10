package io

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	perrors "github.com/matzehuels/mprscape/pkg/errors"
	"github.com/matzehuels/mprscape/pkg/recon"
	"github.com/matzehuels/mprscape/pkg/tree"
)

// Format is a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatOf infers the document format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", perrors.New(perrors.ErrCodeUnsupported, "unsupported document extension %q (want .json, .toml, .yaml)", filepath.Ext(path))
}

// TreeDoc is the serialized form of a [tree.Tree].
type TreeDoc struct {
	Root     string              `json:"root" toml:"root" yaml:"root"`
	Children map[string][]string `json:"children,omitempty" toml:"children,omitempty" yaml:"children,omitempty"`
}

// TreeDocOf serializes t.
func TreeDocOf(t *tree.Tree) TreeDoc {
	d := TreeDoc{Root: t.Name(t.Root())}
	cm := t.ChildMap()
	if len(cm) > 0 {
		d.Children = make(map[string][]string, len(cm))
		for k, v := range cm {
			d.Children[k] = []string{v[0], v[1]}
		}
	}
	return d
}

// Tree builds the tree. Malformed documents are STRUCTURAL errors.
func (d TreeDoc) Tree() (*tree.Tree, error) {
	if err := perrors.ValidateNodeName(d.Root); err != nil {
		return nil, err
	}
	children := make(map[string][2]string, len(d.Children))
	for _, parent := range slices.Sorted(maps.Keys(d.Children)) {
		kids := d.Children[parent]
		if len(kids) != 2 {
			return nil, perrors.Wrap(perrors.ErrCodeStructural, tree.ErrNotBinary, "node %q has %d children", parent, len(kids))
		}
		for _, n := range append([]string{parent}, kids...) {
			if err := perrors.ValidateNodeName(n); err != nil {
				return nil, err
			}
		}
		children[parent] = [2]string{kids[0], kids[1]}
	}
	return tree.Build(d.Root, children)
}

// ProblemDoc is the serialized form of a [recon.Problem].
type ProblemDoc struct {
	Host     TreeDoc           `json:"host" toml:"host" yaml:"host"`
	Parasite TreeDoc           `json:"parasite" toml:"parasite" yaml:"parasite"`
	Tips     map[string]string `json:"tips" toml:"tips" yaml:"tips"`
	Costs    *recon.Costs      `json:"costs,omitempty" toml:"costs,omitempty" yaml:"costs,omitempty"`
}

// ProblemDocOf serializes p.
func ProblemDocOf(p recon.Problem) ProblemDoc {
	costs := p.Costs
	return ProblemDoc{
		Host:     TreeDocOf(p.Host),
		Parasite: TreeDocOf(p.Parasite),
		Tips:     map[string]string(p.Tips),
		Costs:    &costs,
	}
}

// Problem builds and validates the problem.
func (d ProblemDoc) Problem() (recon.Problem, error) {
	host, err := d.Host.Tree()
	if err != nil {
		return recon.Problem{}, fmt.Errorf("host tree: %w", err)
	}
	para, err := d.Parasite.Tree()
	if err != nil {
		return recon.Problem{}, fmt.Errorf("parasite tree: %w", err)
	}
	p := recon.Problem{Host: host, Parasite: para, Tips: tree.TipMapping(d.Tips), Costs: recon.DefaultCosts()}
	if d.Costs != nil {
		p.Costs = *d.Costs
	}
	if _, err := p.Validate(); err != nil {
		return recon.Problem{}, err
	}
	return p, nil
}

// ReadProblem decodes a problem document in format f from r.
func ReadProblem(r io.Reader, f Format) (recon.Problem, error) {
	var doc ProblemDoc
	if err := decode(r, f, &doc); err != nil {
		return recon.Problem{}, err
	}
	return doc.Problem()
}

// WriteProblem encodes p as a document in format f.
func WriteProblem(w io.Writer, f Format, p recon.Problem) error {
	return encode(w, f, ProblemDocOf(p))
}

// ImportProblem reads a problem document from path, choosing the codec by
// extension.
func ImportProblem(path string) (recon.Problem, error) {
	f, err := FormatOf(path)
	if err != nil {
		return recon.Problem{}, err
	}
	file, err := open(path)
	if err != nil {
		return recon.Problem{}, err
	}
	defer file.Close()
	p, err := ReadProblem(file, f)
	if err != nil {
		return recon.Problem{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ExportProblem writes p to path, choosing the codec by extension.
func ExportProblem(p recon.Problem, path string) error {
	f, err := FormatOf(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := WriteProblem(&buf, f, p); err != nil {
		return err
	}
	if err := perrors.ValidatePath(path); err != nil {
		return err
	}
	return writeFile(path, buf.Bytes())
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

// Decode decodes any document in format f from r into v.
func Decode(r io.Reader, f Format, v any) error { return decode(r, f, v) }

func decode(r io.Reader, f Format, v any) error {
	var err error
	switch f {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		err = dec.Decode(v)
	case FormatTOML:
		var md toml.MetaData
		if md, err = toml.NewDecoder(r).Decode(v); err == nil {
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				err = fmt.Errorf("unknown key %q", undecoded[0].String())
			}
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		err = dec.Decode(v)
	default:
		return perrors.New(perrors.ErrCodeUnsupported, "unsupported format %q", f)
	}
	if err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "decode %s", f)
	}
	return nil
}

func encode(w io.Writer, f Format, v any) error {
	var err error
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(v)
	case FormatTOML:
		err = toml.NewEncoder(w).Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err = enc.Encode(v); err == nil {
			err = enc.Close()
		}
	default:
		return perrors.New(perrors.ErrCodeUnsupported, "unsupported format %q", f)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", f, err)
	}
	return nil
}

func open(path string) (*os.File, error) {
	if err := perrors.ValidatePath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, perrors.Wrap(perrors.ErrCodeFileNotFound, err, "%s does not exist", path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
