// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// ShaderSource is one shader stage as supplied by the caller: a name
// for diagnostics, the entry point function, and WGSL source text.
// The core treats the source as opaque input to the backend compiler;
// reflection uses the lightweight scanner below.
type ShaderSource struct {
	Name   string
	Entry  string
	Source string
}

// VertexAttribute is one vertex input attribute, declared by the
// caller and cross-validated against shader reflection.
type VertexAttribute struct {
	Name     string
	Location int
	Type     VertexType
}

// BindingSlot is one reflected resource binding: its shader name, its
// register within its [BindingKind] namespace, and for constant
// buffers the declared byte size.
type BindingSlot struct {
	Name     string
	Kind     BindingKind
	Register int

	// Size is the declared byte size for constant buffers; zero for
	// other kinds or when the layout cannot be computed.
	Size int

	// Stages is the stage visibility, filled in when bindings from
	// multiple stages are merged at pipeline creation.
	Stages ShaderStage

	// used reports whether the binding's name is referenced anywhere
	// beyond its declaration.
	used bool
}

// ShaderReflection is the reflected interface of one compiled stage:
// vertex inputs (vertex stage only) and all declared resource
// bindings, partitioned by register class.
type ShaderReflection struct {
	Stage      ShaderStage
	Attributes []VertexAttribute
	Bindings   []BindingSlot
}

// bindingsOf returns the reflected bindings of the given kind,
// in declaration order.
func (rf *ShaderReflection) bindingsOf(kind BindingKind) []BindingSlot {
	var out []BindingSlot
	for _, b := range rf.Bindings {
		if b.Kind == kind {
			out = append(out, b)
		}
	}
	return out
}

// Reflect scans WGSL source and returns the reflected interface of the
// stage rooted at the given entry point. The register convention is:
// the @binding number is the register, namespaced by binding kind
// (uniform buffers are b registers, textures t, read_write storage u,
// samplers s), mirroring HLSL register classes.
//
// The scanner understands the subset of WGSL the layer emits and
// validates: module-scope var declarations, struct layouts built from
// scalars, vectors, matrices and fixed arrays thereof, and entry
// point @location parameters.
func Reflect(stage ShaderStage, entry, source string) (*ShaderReflection, error) {
	rf := &ShaderReflection{Stage: stage}
	structs := scanStructs(source)
	lines := strings.Split(source, "\n")
	for _, ln := range lines {
		ln = strings.TrimSpace(ln)
		if !strings.Contains(ln, "@binding(") || !strings.HasPrefix(ln, "@group(") {
			continue
		}
		slot, ok := scanBindingDecl(ln, structs)
		if !ok {
			continue
		}
		slot.used = countUses(source, slot.Name) > 1
		rf.Bindings = append(rf.Bindings, slot)
	}
	if stage == VertexShader {
		attrs, err := scanVertexInputs(source, entry)
		if err != nil {
			return nil, err
		}
		rf.Attributes = attrs
	}
	return rf, nil
}

// scanBindingDecl parses one module-scope binding declaration line of
// the form "@group(g) @binding(b) var<space> name: Type;".
func scanBindingDecl(ln string, structs map[string]int) (BindingSlot, bool) {
	reg, ok := intAfter(ln, "@binding(")
	if !ok {
		return BindingSlot{}, false
	}
	vi := strings.Index(ln, "var")
	if vi < 0 {
		return BindingSlot{}, false
	}
	rest := ln[vi+3:]
	space := ""
	if strings.HasPrefix(rest, "<") {
		ci := strings.Index(rest, ">")
		if ci < 0 {
			return BindingSlot{}, false
		}
		space = rest[1:ci]
		rest = rest[ci+1:]
	}
	ci := strings.Index(rest, ":")
	if ci < 0 {
		return BindingSlot{}, false
	}
	name := strings.TrimSpace(rest[:ci])
	typ := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest[ci+1:]), ";"))

	slot := BindingSlot{Name: name, Register: reg}
	switch {
	case strings.HasPrefix(space, "uniform"):
		slot.Kind = ConstantBufferBinding
		slot.Size = typeSize(typ, structs)
	case strings.Contains(space, "read_write"):
		slot.Kind = RWResourceBinding
	case strings.HasPrefix(space, "storage"):
		// read-only storage binds like a shader resource
		slot.Kind = TextureBinding
	case typ == "sampler" || typ == "sampler_comparison":
		slot.Kind = SamplerBinding
	case strings.HasPrefix(typ, "texture_storage"):
		slot.Kind = RWResourceBinding
	case strings.HasPrefix(typ, "texture_"):
		slot.Kind = TextureBinding
	default:
		return BindingSlot{}, false
	}
	return slot, true
}

// scanVertexInputs returns the @location parameters of the given entry
// point, sorted by location.
func scanVertexInputs(source, entry string) ([]VertexAttribute, error) {
	fi := strings.Index(source, "fn "+entry)
	if fi < 0 {
		return nil, fmt.Errorf("%w: entry point %q not found", ErrShaderCompile, entry)
	}
	oi := strings.Index(source[fi:], "(")
	if oi < 0 {
		return nil, fmt.Errorf("%w: entry point %q: malformed parameter list", ErrShaderCompile, entry)
	}
	params := source[fi+oi+1:]
	// the closing paren of the list, not of a nested @location(n)
	depth := 1
	for i := 0; i < len(params); i++ {
		if params[i] == '(' {
			depth++
		} else if params[i] == ')' {
			if depth--; depth == 0 {
				params = params[:i]
				break
			}
		}
	}
	var attrs []VertexAttribute
	for part := range strings.SplitSeq(params, ",") {
		part = strings.TrimSpace(part)
		loc, ok := intAfter(part, "@location(")
		if !ok {
			continue
		}
		// strip through the closing paren of @location(n)
		pi := strings.Index(part, ")")
		decl := strings.TrimSpace(part[pi+1:])
		ci := strings.Index(decl, ":")
		if ci < 0 {
			continue
		}
		name := strings.TrimSpace(decl[:ci])
		typ := strings.TrimSpace(decl[ci+1:])
		attrs = append(attrs, VertexAttribute{
			Name:     name,
			Location: loc,
			Type:     wgslVertexType(typ),
		})
	}
	slices.SortFunc(attrs, func(a, b VertexAttribute) int { return a.Location - b.Location })
	return attrs, nil
}

// scanStructs returns the byte size of every struct declared in the
// source, for constant buffer size computation. Sizes follow scalar
// 4-byte packing; the layer requires constant buffer fields at 4-byte
// increments so this matches the shader-side layout.
func scanStructs(source string) map[string]int {
	sizes := map[string]int{}
	rest := source
	for {
		si := strings.Index(rest, "struct ")
		if si < 0 {
			return sizes
		}
		rest = rest[si+len("struct "):]
		oi := strings.Index(rest, "{")
		ci := strings.Index(rest, "}")
		if oi < 0 || ci < 0 || ci < oi {
			return sizes
		}
		name := strings.TrimSpace(rest[:oi])
		body := rest[oi+1 : ci]
		sz := 0
		for _, field := range splitFields(body) {
			fi := strings.Index(field, ":")
			if fi < 0 {
				continue
			}
			sz += typeSize(strings.TrimSpace(field[fi+1:]), sizes)
		}
		sizes[name] = sz
		rest = rest[ci+1:]
	}
}

// splitFields splits a struct body on top-level commas only, so the
// comma inside a fixed array type like array<vec4<f32>, 4> does not
// tear its field apart.
func splitFields(body string) []string {
	var fields []string
	depth, start := 0, 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				fields = append(fields, body[start:i])
				start = i + 1
			}
		}
	}
	return append(fields, body[start:])
}

// typeSize returns the byte size of a WGSL type under 4-byte scalar
// packing, or 0 if unknown.
func typeSize(typ string, structs map[string]int) int {
	typ = strings.TrimSpace(typ)
	switch {
	case typ == "f32" || typ == "i32" || typ == "u32":
		return 4
	case strings.HasPrefix(typ, "vec"):
		n := int(typ[3] - '0')
		if n < 2 || n > 4 {
			return 0
		}
		return 4 * n
	case strings.HasPrefix(typ, "mat"):
		// matCxR<f32>
		if len(typ) < 6 || typ[4] != 'x' {
			return 0
		}
		c, r := int(typ[3]-'0'), int(typ[5]-'0')
		return 4 * c * r
	case strings.HasPrefix(typ, "array<"):
		inner := typ[len("array<") : len(typ)-1]
		ci := strings.LastIndex(inner, ",")
		if ci < 0 {
			return 0 // runtime-sized
		}
		n, err := strconv.Atoi(strings.TrimSpace(inner[ci+1:]))
		if err != nil {
			return 0
		}
		return n * typeSize(inner[:ci], structs)
	default:
		return structs[typ]
	}
}

// wgslVertexType maps a WGSL parameter type to a [VertexType].
func wgslVertexType(typ string) VertexType {
	switch strings.TrimSpace(typ) {
	case "f32":
		return Float32
	case "vec2<f32>", "vec2f":
		return Float32Vector2
	case "vec3<f32>", "vec3f":
		return Float32Vector3
	case "vec4<f32>", "vec4f":
		return Float32Vector4
	case "i32":
		return Int32
	case "vec2<i32>", "vec2i":
		return Int32Vector2
	case "vec4<i32>", "vec4i":
		return Int32Vector4
	case "u32":
		return Uint32
	case "vec2<u32>", "vec2u":
		return Uint32Vector2
	case "vec4<u32>", "vec4u":
		return Uint32Vector4
	}
	return UndefinedVertexType
}

// intAfter parses the integer immediately following prefix in s.
func intAfter(s, prefix string) (int, bool) {
	i := strings.Index(s, prefix)
	if i < 0 {
		return 0, false
	}
	rest := s[i+len(prefix):]
	ci := strings.Index(rest, ")")
	if ci < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest[:ci]))
	if err != nil {
		return 0, false
	}
	return n, true
}

// countUses counts occurrences of name as a whole identifier.
func countUses(source, name string) int {
	n := 0
	for i := 0; ; {
		j := strings.Index(source[i:], name)
		if j < 0 {
			return n
		}
		j += i
		before := byte(' ')
		if j > 0 {
			before = source[j-1]
		}
		after := byte(' ')
		if j+len(name) < len(source) {
			after = source[j+len(name)]
		}
		if !identByte(before) && !identByte(after) {
			n++
		}
		i = j + len(name)
	}
}

func identByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// IncludeFS processes #include "file" statements in the given shader
// code string, using the given file system and default path to locate
// the included files. Included files may themselves not include.
func IncludeFS(fsys fs.FS, path, code string) string {
	fl := strings.Split(code, "\n")
	for li := len(fl) - 1; li >= 0; li-- {
		ln := fl[li]
		if !strings.HasPrefix(ln, `#include "`) {
			continue
		}
		fn := ln[10:]
		qi := strings.Index(fn, `"`)
		if qi < 0 {
			continue
		}
		fname := fn[:qi]
		b, err := fs.ReadFile(fsys, fname)
		if err != nil {
			b, err = fs.ReadFile(fsys, filepath.Join(path, fname))
			if err != nil {
				slog.Error("gpu.IncludeFS: included file not found", "file", fname, "path", path)
				continue
			}
		}
		ol := strings.Split(string(b), "\n")
		fl[li] = "// " + ln
		fl = slices.Insert(fl, li+1, ol...)
	}
	return strings.Join(fl, "\n")
}
