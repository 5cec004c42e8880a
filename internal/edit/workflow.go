package edit

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

// The two graph templates are static, versioned configuration. They are
// never mutated in place: every build unmarshals a fresh copy.
var (
	//go:embed templates/single_image.json
	singleImageTemplate []byte

	//go:embed templates/dual_image.json
	dualImageTemplate []byte
)

// WorkflowNode is one node of the ComfyUI-style graph. Inputs hold either
// literal values or [node, output] connection pairs.
type WorkflowNode struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`
}

// JobPayload is the fully parameterized graph submitted to the backend.
type JobPayload struct {
	Version  string                  `json:"version"`
	Workflow map[string]WorkflowNode `json:"workflow"`
}

// ImageInput is the value injected into a load-image slot: a path on the
// backend's shared volume produced by staging, or an inline data URI.
type ImageInput struct {
	Path   string
	Inline string
}

func (i ImageInput) slotValue() (string, error) {
	if i.Path != "" {
		return i.Path, nil
	}
	if i.Inline != "" {
		return i.Inline, nil
	}
	return "", fmt.Errorf("%w: image input has neither path nor inline data", ErrInvalidParameter)
}

type slotRef struct {
	Node  string `json:"node"`
	Input string `json:"input"`
}

type workflowSlots struct {
	Image          slotRef  `json:"image"`
	Image2         *slotRef `json:"image_2"`
	Prompt         slotRef  `json:"prompt"`
	NegativePrompt slotRef  `json:"negative_prompt"`
	Seed           slotRef  `json:"seed"`
	Steps          slotRef  `json:"steps"`
	CFG            slotRef  `json:"cfg"`
	Width          slotRef  `json:"width"`
	Height         slotRef  `json:"height"`
}

type workflowTemplate struct {
	Version string                  `json:"version"`
	Graph   map[string]WorkflowNode `json:"graph"`
	Slots   workflowSlots           `json:"slots"`
}

func (t *workflowTemplate) set(slot slotRef, value any) error {
	node, ok := t.Graph[slot.Node]
	if !ok {
		return fmt.Errorf("edit: template %s has no node %q", t.Version, slot.Node)
	}
	node.Inputs[slot.Input] = value
	return nil
}

// BuildWorkflow selects a template purely by image arity, normalizes and
// validates parameters, and injects every parameter into its named slot.
// The result is deterministic for identical inputs.
func BuildWorkflow(images []ImageInput, params Parameters) (*JobPayload, error) {
	params = params.Normalized()
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var raw []byte
	switch len(images) {
	case 1:
		raw = singleImageTemplate
	case 2:
		raw = dualImageTemplate
	default:
		return nil, fmt.Errorf("%w: expected 1 or 2 images, got %d", ErrInvalidParameter, len(images))
	}

	var tmpl workflowTemplate
	if err := json.Unmarshal(raw, &tmpl); err != nil {
		return nil, fmt.Errorf("edit: parse workflow template: %w", err)
	}

	donor, err := images[0].slotValue()
	if err != nil {
		return nil, err
	}
	if err := tmpl.set(tmpl.Slots.Image, donor); err != nil {
		return nil, err
	}
	if len(images) == 2 {
		if tmpl.Slots.Image2 == nil {
			return nil, fmt.Errorf("edit: template %s has no second image slot", tmpl.Version)
		}
		canvas, err := images[1].slotValue()
		if err != nil {
			return nil, err
		}
		if err := tmpl.set(*tmpl.Slots.Image2, canvas); err != nil {
			return nil, err
		}
	}

	injections := []struct {
		slot  slotRef
		value any
	}{
		{tmpl.Slots.Prompt, params.Prompt},
		{tmpl.Slots.NegativePrompt, params.NegativePrompt},
		{tmpl.Slots.Seed, params.Seed},
		{tmpl.Slots.Steps, params.Steps},
		{tmpl.Slots.CFG, params.CFG},
		{tmpl.Slots.Width, params.Width},
		{tmpl.Slots.Height, params.Height},
	}
	for _, inj := range injections {
		if err := tmpl.set(inj.slot, inj.value); err != nil {
			return nil, err
		}
	}

	return &JobPayload{Version: tmpl.Version, Workflow: tmpl.Graph}, nil
}
