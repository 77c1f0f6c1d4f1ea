package gpu

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrNoProgram is returned when a pass is requested whose program failed to build.
var ErrNoProgram = errors.New("gpu: program unavailable")

// CompileError reports which stage of which program failed, with the driver diagnostic.
type CompileError struct {
	Program string
	Stage   Stage
	Log     string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("gpu: program %q: %s failed: %s", e.Program, e.Stage, e.Log)
}

// Program is a linked program with its resolved uniform and attribute locations.
// It is immutable once returned by Cache.
type Program struct {
	Name       string
	Handle     Handle
	Uniforms   map[string]Location
	Attributes map[string]Location
}

// Uniform returns the location of name, or Unused.
func (p *Program) Uniform(name string) Location {
	if loc, ok := p.Uniforms[name]; ok {
		return loc
	}
	return Unused
}

// Attrib returns the location of name, or Unused.
func (p *Program) Attrib(name string) Location {
	if loc, ok := p.Attributes[name]; ok {
		return loc
	}
	return Unused
}

// UnusedNames lists requested names the driver did not resolve.
func (p *Program) UnusedNames() []string {
	var out []string
	for name, loc := range p.Uniforms {
		if !loc.Valid() {
			out = append(out, name)
		}
	}
	for name, loc := range p.Attributes {
		if !loc.Valid() {
			out = append(out, name)
		}
	}
	return out
}

// Cache compiles programs and owns them until Release.
type Cache struct {
	dev      Device
	log      Logger
	programs []*Program
}

func NewCache(dev Device, log Logger) *Cache {
	if log == nil {
		log = nopLogger{}
	}
	return &Cache{dev: dev, log: log}
}

// Compile builds a program from vertex and fragment source. On any failure every stage
// already created is deleted and a *CompileError is returned.
func (c *Cache) Compile(name, vertexSrc, fragmentSrc string, uniforms, attributes []string) (*Program, error) {
	vs, err := c.dev.CompileShader(StageVertex, vertexSrc)
	if err != nil {
		return nil, &CompileError{Program: name, Stage: StageVertex, Log: err.Error()}
	}
	fs, err := c.dev.CompileShader(StageFragment, fragmentSrc)
	if err != nil {
		c.dev.DeleteShader(vs)
		return nil, &CompileError{Program: name, Stage: StageFragment, Log: err.Error()}
	}

	handle, err := c.dev.LinkProgram(vs, fs)
	// Linked programs keep their own copy of the stages.
	c.dev.DeleteShader(vs)
	c.dev.DeleteShader(fs)
	if err != nil {
		return nil, &CompileError{Program: name, Stage: StageLink, Log: err.Error()}
	}

	p := &Program{
		Name:       name,
		Handle:     handle,
		Uniforms:   make(map[string]Location, len(uniforms)),
		Attributes: make(map[string]Location, len(attributes)),
	}
	for _, u := range uniforms {
		p.Uniforms[u] = c.dev.UniformLocation(handle, u)
	}
	for _, a := range attributes {
		p.Attributes[a] = c.dev.AttribLocation(handle, a)
	}
	if unused := p.UnusedNames(); len(unused) > 0 {
		c.log.Debugf("program %s: unused inputs %v", name, unused)
	}

	c.programs = append(c.programs, p)
	return p, nil
}

// Bind compiles a program whose inputs are described by layout, a pointer to a struct
// of Location fields tagged `uniform:"name"` or `attrib:"name"`. The fields receive the
// resolved locations; on failure they are all Unused.
func (c *Cache) Bind(name, vertexSrc, fragmentSrc string, layout any) (*Program, error) {
	v := reflect.ValueOf(layout)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("gpu: Bind layout must be a pointer to a struct, got %T", layout))
	}
	v = v.Elem()
	t := v.Type()
	locType := reflect.TypeOf(Unused)

	var uniforms, attributes []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type != locType {
			continue
		}
		v.Field(i).Set(reflect.ValueOf(Unused))
		if u, ok := f.Tag.Lookup("uniform"); ok {
			uniforms = append(uniforms, u)
		} else if a, ok := f.Tag.Lookup("attrib"); ok {
			attributes = append(attributes, a)
		}
	}

	p, err := c.Compile(name, vertexSrc, fragmentSrc, uniforms, attributes)
	if err != nil {
		return nil, err
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type != locType {
			continue
		}
		if u, ok := f.Tag.Lookup("uniform"); ok {
			v.Field(i).Set(reflect.ValueOf(p.Uniform(u)))
		} else if a, ok := f.Tag.Lookup("attrib"); ok {
			v.Field(i).Set(reflect.ValueOf(p.Attrib(a)))
		}
	}
	return p, nil
}

// Len is the number of live programs.
func (c *Cache) Len() int { return len(c.programs) }

// Release deletes every program in reverse creation order. Safe to call more than once.
func (c *Cache) Release() {
	for i := len(c.programs) - 1; i >= 0; i-- {
		c.dev.DeleteProgram(c.programs[i].Handle)
	}
	c.programs = nil
}
