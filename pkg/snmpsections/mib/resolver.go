// Package mib resolves symbolic MIB object names for section definitions.
//
// It wraps gosmi, which keeps its module table in package-global state, so
// Init should be called once at startup before any Resolve.
package mib

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/sleepinggenius2/gosmi"
)

var numericOID = regexp.MustCompile(`^\.?[0-9]+(\.[0-9]+)*$`)

// Resolver translates "MODULE::object[.instance]" into dotted numeric form.
type Resolver struct {
	logger *slog.Logger
	cache  sync.Map // name → numeric OID
}

// New returns a Resolver. Call Init before resolving symbolic names.
func New(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Resolver{logger: logger}
}

// Init loads modules from paths into gosmi.
func (r *Resolver) Init(paths, modules []string) error {
	gosmi.Init()
	for _, p := range paths {
		gosmi.AppendPath(p)
		r.logger.Debug("mib: path added", "path", p)
	}
	for _, m := range modules {
		name, err := gosmi.LoadModule(m)
		if err != nil {
			return fmt.Errorf("mib: load module %q: %w", m, err)
		}
		r.logger.Debug("mib: module loaded", "module", name)
	}
	return nil
}

// Close releases gosmi state.
func (r *Resolver) Close() {
	gosmi.Exit()
}

// Resolve returns the numeric OID for name. Numeric input is returned
// unchanged.
func (r *Resolver) Resolve(name string) (string, error) {
	if numericOID.MatchString(name) {
		return name, nil
	}
	if hit, ok := r.cache.Load(name); ok {
		return hit.(string), nil
	}

	module, object, ok := strings.Cut(name, "::")
	if !ok {
		object = name
		module = ""
	}
	// The instance suffix (".0", ".1.2") is not part of the MIB node.
	object, instance, _ := strings.Cut(object, ".")

	var (
		node gosmi.SmiNode
		err  error
	)
	if module != "" {
		var mod gosmi.SmiModule
		mod, err = gosmi.GetModule(module)
		if err != nil {
			return "", fmt.Errorf("mib: module %q: %w", module, err)
		}
		node, err = gosmi.GetNode(object, mod)
	} else {
		node, err = gosmi.GetNode(object)
	}
	if err != nil {
		return "", fmt.Errorf("mib: node %q: %w", name, err)
	}

	numeric := node.RenderNumeric()
	if instance != "" {
		numeric += "." + instance
	}
	r.cache.Store(name, numeric)
	return numeric, nil
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
