package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Load reads every CUE file under dir, unifies them into one instance,
// and compiles the module and template declarations found at the top
// level. Fails on the first error; a manifest is either whole or
// unusable.
func Load(dir string) (*Manifest, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("manifest directory not found: %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("manifest directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	files, err := findCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", formatCUEError(err))
	}
	return Compile(value)
}

// Compile builds a manifest from an already-unified CUE value. Exposed
// separately so tests and embedded manifests can skip the loader.
func Compile(value cue.Value) (*Manifest, error) {
	m := &Manifest{
		Modules:   make(map[string]*ModuleSpec),
		Templates: make(map[string]*TemplateSpec),
	}

	modulesVal := value.LookupPath(cue.ParsePath("module"))
	if modulesVal.Exists() {
		iter, err := modulesVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			spec, err := CompileModule(iter.Value())
			if err != nil {
				return nil, fmt.Errorf("module.%s: %w", iter.Label(), err)
			}
			m.Modules[spec.Name] = spec
		}
	}

	templatesVal := value.LookupPath(cue.ParsePath("template"))
	if templatesVal.Exists() {
		iter, err := templatesVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			spec, err := CompileTemplate(iter.Value())
			if err != nil {
				return nil, fmt.Errorf("template.%s: %w", iter.Label(), err)
			}
			for _, entry := range spec.Entries {
				if entry.ModuleName == "" {
					continue
				}
				if _, ok := m.Modules[entry.ModuleName]; !ok {
					return nil, fmt.Errorf("template.%s: unknown module %q", spec.Name, entry.ModuleName)
				}
			}
			if spec.Initializer != nil {
				if _, ok := m.Modules[spec.Initializer.ModuleName]; !ok {
					return nil, fmt.Errorf("template.%s: initializer targets unknown module %q", spec.Name, spec.Initializer.ModuleName)
				}
			}
			m.Templates[spec.Name] = spec
		}
	}

	if len(m.Modules) == 0 && len(m.Templates) == 0 {
		return nil, fmt.Errorf("no modules or templates found in manifest")
	}
	return m, nil
}

func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
