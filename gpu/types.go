// Copyright (c) 2026, Cobalt Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

// This file holds the closed enumerations shared bit-for-bit between
// resource creation and pipeline reflection validation. Any format or
// type added to one side must be added to the other.

// HeapKind is the type of a memory heap, which determines CPU
// visibility and the set of resource states its resources may use.
type HeapKind int32

const (
	// UploadHeap is CPU-writable memory used for streaming data to the
	// GPU. Resources in it are permanently in a generic read state.
	UploadHeap HeapKind = iota

	// ReadbackHeap is CPU-readable memory used for reading results back
	// from the GPU. Resources in it are permanently copy destinations.
	ReadbackHeap

	// DeviceHeap is device-local memory, not CPU accessible.
	DeviceHeap
)

func (hk HeapKind) String() string {
	switch hk {
	case UploadHeap:
		return "Upload"
	case ReadbackHeap:
		return "Readback"
	case DeviceHeap:
		return "Device"
	}
	return "Invalid"
}

// ResourceState is the GPU-visible access mode of a resource. Moving a
// resource between states requires a transition barrier, which command
// lists insert automatically.
type ResourceState int32

const (
	StateUndefined ResourceState = iota
	StateCommon
	StateCopySrc
	StateCopyDst
	StateVertexBuffer
	StateIndexBuffer
	StateConstantBuffer
	StateShaderResource
	StateUnorderedAccess
	StateRenderTarget
	StateDepthWrite
	StateGenericRead
	StatePresent
)

func (st ResourceState) String() string {
	switch st {
	case StateUndefined:
		return "Undefined"
	case StateCommon:
		return "Common"
	case StateCopySrc:
		return "CopySrc"
	case StateCopyDst:
		return "CopyDst"
	case StateVertexBuffer:
		return "VertexBuffer"
	case StateIndexBuffer:
		return "IndexBuffer"
	case StateConstantBuffer:
		return "ConstantBuffer"
	case StateShaderResource:
		return "ShaderResource"
	case StateUnorderedAccess:
		return "UnorderedAccess"
	case StateRenderTarget:
		return "RenderTarget"
	case StateDepthWrite:
		return "DepthWrite"
	case StateGenericRead:
		return "GenericRead"
	case StatePresent:
		return "Present"
	}
	return "Invalid"
}

// Usage is a bit flag set declaring how a resource may be used.
// Creation fails if an operation later requires a usage not declared.
type Usage int32

const (
	UsageCopySrc Usage = 1 << iota
	UsageCopyDst
	UsageVertex
	UsageIndex
	UsageConstant
	UsageShaderResource
	UsageUnorderedAccess
	UsageRenderTarget
	UsageDepthStencil
)

// Has reports whether all bits of u2 are set in u.
func (u Usage) Has(u2 Usage) bool { return u&u2 == u2 }

// VertexType is the data type of one vertex attribute. Only types in
// this list can appear in a vertex layout, and reflection must agree
// exactly with the caller-declared attribute types.
type VertexType int32

const (
	UndefinedVertexType VertexType = iota
	Int32
	Int32Vector2
	Int32Vector4
	Uint32
	Uint32Vector2
	Uint32Vector4
	Float32
	Float32Vector2
	Float32Vector3
	Float32Vector4
)

// VertexTypeSizes gives vertex type sizes in bytes.
var VertexTypeSizes = map[VertexType]int{
	Int32:          4,
	Int32Vector2:   8,
	Int32Vector4:   16,
	Uint32:         4,
	Uint32Vector2:  8,
	Uint32Vector4:  16,
	Float32:        4,
	Float32Vector2: 8,
	Float32Vector3: 12,
	Float32Vector4: 16,
}

// Bytes returns the number of bytes for this vertex type.
func (vt VertexType) Bytes() int { return VertexTypeSizes[vt] }

func (vt VertexType) String() string {
	switch vt {
	case Int32:
		return "Int32"
	case Int32Vector2:
		return "Int32Vector2"
	case Int32Vector4:
		return "Int32Vector4"
	case Uint32:
		return "Uint32"
	case Uint32Vector2:
		return "Uint32Vector2"
	case Uint32Vector4:
		return "Uint32Vector4"
	case Float32:
		return "Float32"
	case Float32Vector2:
		return "Float32Vector2"
	case Float32Vector3:
		return "Float32Vector3"
	case Float32Vector4:
		return "Float32Vector4"
	}
	return "Undefined"
}

// TextureFormat is the texel format of a texture.
type TextureFormat int32

const (
	UndefinedFormat TextureFormat = iota
	R8Unorm
	RG8Unorm
	RGBA8Unorm
	RGBA8Srgb
	BGRA8Unorm
	R16Float
	RG16Float
	RGBA16Float
	R32Float
	RG32Float
	RGBA32Float
	Depth32
	Depth24Stencil8
)

// TextureFormatSizes gives bytes per texel for each format.
var TextureFormatSizes = map[TextureFormat]int{
	R8Unorm:         1,
	RG8Unorm:        2,
	RGBA8Unorm:      4,
	RGBA8Srgb:       4,
	BGRA8Unorm:      4,
	R16Float:        2,
	RG16Float:       4,
	RGBA16Float:     8,
	R32Float:        4,
	RG32Float:       8,
	RGBA32Float:     16,
	Depth32:         4,
	Depth24Stencil8: 4,
}

// Bytes returns the bytes per texel for this format.
func (tf TextureFormat) Bytes() int { return TextureFormatSizes[tf] }

// IsDepth reports whether this is a depth or depth/stencil format.
func (tf TextureFormat) IsDepth() bool {
	return tf == Depth32 || tf == Depth24Stencil8
}

func (tf TextureFormat) String() string {
	switch tf {
	case R8Unorm:
		return "R8Unorm"
	case RG8Unorm:
		return "RG8Unorm"
	case RGBA8Unorm:
		return "RGBA8Unorm"
	case RGBA8Srgb:
		return "RGBA8Srgb"
	case BGRA8Unorm:
		return "BGRA8Unorm"
	case R16Float:
		return "R16Float"
	case RG16Float:
		return "RG16Float"
	case RGBA16Float:
		return "RGBA16Float"
	case R32Float:
		return "R32Float"
	case RG32Float:
		return "RG32Float"
	case RGBA32Float:
		return "RGBA32Float"
	case Depth32:
		return "Depth32"
	case Depth24Stencil8:
		return "Depth24Stencil8"
	}
	return "Undefined"
}

// CompareFunc is a depth / sampler comparison function.
type CompareFunc int32

const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

// FilterMode is a sampler min/mag filtering mode.
type FilterMode int32

const (
	FilterNearest FilterMode = iota
	FilterLinear
)

// WrapMode is a sampler addressing mode.
type WrapMode int32

const (
	WrapRepeat WrapMode = iota
	WrapClampToEdge
	WrapMirrorRepeat
)

// SamplerConfig is the full static configuration of one sampler slot.
// Samplers are static per pipeline: register i in the shader gets the
// i-th SamplerConfig from the pipeline config.
type SamplerConfig struct {
	Filter  FilterMode
	Wrap    WrapMode
	Compare CompareFunc

	// UseCompare enables comparison (shadow) sampling with Compare.
	UseCompare bool
}

// Topology is the vertex topology of a render pipeline.
type Topology int32

const (
	TriangleList Topology = iota
	TriangleStrip
	LineList
	LineStrip
	PointList
)

// CullMode is the face culling mode of a render pipeline.
type CullMode int32

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

// BlendMode is the color blend function of a render pipeline.
type BlendMode int32

const (
	NoBlend BlendMode = iota
	AlphaBlend
	AdditiveBlend
)

// ShaderStage is a bit flag set of pipeline shader stages, used for
// the stage visibility of merged bindings.
type ShaderStage int32

const (
	VertexShader ShaderStage = 1 << iota
	FragmentShader
	ComputeShader
)

func (ss ShaderStage) String() string {
	s := ""
	if ss&VertexShader != 0 {
		s += "Vertex|"
	}
	if ss&FragmentShader != 0 {
		s += "Fragment|"
	}
	if ss&ComputeShader != 0 {
		s += "Compute|"
	}
	if s == "" {
		return "None"
	}
	return s[:len(s)-1]
}

// BindingKind classifies a shader-visible resource binding, following
// the four register classes of HLSL-style binding models.
type BindingKind int32

const (
	// ConstantBufferBinding is a read-only constant buffer (b register).
	ConstantBufferBinding BindingKind = iota

	// TextureBinding is a sampled texture (t register).
	TextureBinding

	// RWResourceBinding is an unordered access resource (u register).
	RWResourceBinding

	// SamplerBinding is a sampler (s register).
	SamplerBinding
)

func (bk BindingKind) String() string {
	switch bk {
	case ConstantBufferBinding:
		return "ConstantBuffer"
	case TextureBinding:
		return "Texture"
	case RWResourceBinding:
		return "RWResource"
	case SamplerBinding:
		return "Sampler"
	}
	return "Invalid"
}
