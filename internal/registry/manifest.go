package registry

import (
	"fmt"
	"io/fs"
	stdpath "path"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/log"
	"github.com/zjrosen/kindhub/internal/schema"
)

// ManifestFile is the root structure of a kinds manifest.
type ManifestFile struct {
	Kinds []KindDefinition `yaml:"kinds"`
}

// KindDefinition declares one kind in YAML.
type KindDefinition struct {
	Kind       string             `yaml:"kind"`
	EntityType string             `yaml:"entity_type"`
	Spec       Ref                `yaml:"spec"`
	Status     Ref                `yaml:"status"`
	Metadata   Ref                `yaml:"metadata"`
	Runtime    *RuntimeRef        `yaml:"runtime"`
	Schema     *schema.Definition `yaml:"schema"`
	// Override replaces an already registered kind instead of adding one.
	Override bool `yaml:"override"`
}

// ParseManifest decodes a manifest document.
func ParseManifest(data []byte) (*ManifestFile, error) {
	var file ManifestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &file, nil
}

// Entry resolves the definition into an Entry. An inline schema wins over
// spec.validator; runtime and family are looked up in the catalog.
func (d KindDefinition) Entry(cat *Catalog) (Entry, error) {
	t, err := entity.ParseEntityType(d.EntityType)
	if err != nil {
		return Entry{}, fmt.Errorf("kind %q: %w", d.Kind, err)
	}

	e := Entry{
		Kind:       d.Kind,
		EntityType: t,
		Spec:       d.Spec,
		Status:     d.Status,
		Metadata:   d.Metadata,
		Runtime:    d.Runtime,
	}

	switch {
	case d.Schema != nil:
		def := *d.Schema
		if def.Name == "" {
			def.Name = d.Kind
		}
		if e.Schema, err = def.Build(); err != nil {
			return Entry{}, fmt.Errorf("kind %q: %w", d.Kind, err)
		}
		e.Spec.Validator = e.Schema.Name()
	case d.Spec.Validator != "":
		if e.Schema, err = cat.Schema(d.Spec.Validator); err != nil {
			return Entry{}, fmt.Errorf("kind %q: %w", d.Kind, err)
		}
	}

	if d.Runtime != nil {
		rb, err := cat.Runtime(d.Runtime.Locator)
		if err != nil {
			return Entry{}, fmt.Errorf("kind %q: %w", d.Kind, err)
		}
		e.NewRuntime = rb.NewRuntime
		e.Family = rb.Family

		if fl := d.Runtime.FamilyLocator; fl != "" && fl != d.Runtime.Locator {
			fb, err := cat.Runtime(fl)
			if err != nil {
				return Entry{}, fmt.Errorf("kind %q family: %w", d.Kind, err)
			}
			e.Family = fb.Family
		}
	}
	return e, nil
}

// Apply registers every definition of the manifest into r.
func (m *ManifestFile) Apply(cat *Catalog, r *Registry) error {
	for _, d := range m.Kinds {
		e, err := d.Entry(cat)
		if err != nil {
			return err
		}
		if d.Override {
			err = r.Update(e)
		} else {
			err = r.Register(e)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// LoadManifests walks fsys for *.yaml and *.yml manifests and applies them
// to r in lexical path order. It returns the number of kinds applied.
func LoadManifests(fsys fs.FS, cat *Catalog, r *Registry) (int, error) {
	applied := 0
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := stdpath.Ext(path); ext != ".yaml" && ext != ".yml" {
			return nil
		}

		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		file, err := ParseManifest(content)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := file.Apply(cat, r); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		log.Debug(log.CatRegistry, "Loaded kind manifest", "path", path, "kinds", len(file.Kinds))
		applied += len(file.Kinds)
		return nil
	})
	if err != nil {
		return applied, fmt.Errorf("load kind manifests: %w", err)
	}
	return applied, nil
}

// Manifests returns a Module that loads the kind manifests of fsys through
// cat. Place it after the modules whose kinds the manifests override.
func Manifests(fsys fs.FS, cat *Catalog) Module {
	return ModuleFunc(func(r *Registry) error {
		n, err := LoadManifests(fsys, cat, r)
		if err != nil {
			return err
		}
		log.Debug(log.CatRegistry, "Loaded kind manifests", "kinds", n)
		return nil
	})
}
