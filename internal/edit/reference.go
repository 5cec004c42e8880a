package edit

import "strings"

// RefKind tags the source of a caller-supplied image.
type RefKind string

const (
	RefLocalPath RefKind = "path"
	RefRemoteURL RefKind = "url"
	RefInline    RefKind = "base64"
)

// Mode selects the workflow template. It is derived once from input arity
// and threaded through the pipeline, never re-derived downstream.
type Mode string

const (
	ModeSingleImage Mode = "single_image"
	ModeDualImage   Mode = "dual_image"
)

// ImageReference points at one input image. It is immutable once built;
// construct through PathReference, URLReference or InlineReference.
type ImageReference struct {
	kind  RefKind
	value string
}

func PathReference(path string) ImageReference {
	return ImageReference{kind: RefLocalPath, value: strings.TrimSpace(path)}
}

func URLReference(url string) ImageReference {
	return ImageReference{kind: RefRemoteURL, value: strings.TrimSpace(url)}
}

func InlineReference(encoded string) ImageReference {
	return ImageReference{kind: RefInline, value: strings.TrimSpace(encoded)}
}

func (r ImageReference) Kind() RefKind { return r.kind }

func (r ImageReference) Value() string { return r.value }

func (r ImageReference) IsZero() bool { return r.kind == "" && r.value == "" }
