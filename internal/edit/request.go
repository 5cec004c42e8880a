package edit

import "fmt"

// Request is the caller-facing JSON shape. Exactly one of the image_*
// fields must be set; the optional *_2 trio switches the pipeline into
// dual-image mode, there is no explicit mode flag.
type Request struct {
	Prompt         string   `json:"prompt"`
	ImagePath      string   `json:"image_path,omitempty"`
	ImageURL       string   `json:"image_url,omitempty"`
	ImageBase64    string   `json:"image_base64,omitempty"`
	ImagePath2     string   `json:"image_path_2,omitempty"`
	ImageURL2      string   `json:"image_url_2,omitempty"`
	ImageBase642   string   `json:"image_base64_2,omitempty"`
	Seed           *int     `json:"seed,omitempty"`
	Width          *int     `json:"width,omitempty"`
	Height         *int     `json:"height,omitempty"`
	Steps          *int     `json:"steps,omitempty"`
	CFG            *float64 `json:"cfg,omitempty"`
	NegativePrompt *string  `json:"negative_prompt,omitempty"`
	UseLightning   bool     `json:"use_lightning,omitempty"`
}

// Item is one normalized unit of work for the pipeline: a donor image,
// an optional canvas image and fully defaulted parameters.
type Item struct {
	Mode   Mode
	Donor  ImageReference
	Canvas *ImageReference
	Params Parameters
}

// NewItem derives the workflow mode from input arity.
func NewItem(donor ImageReference, canvas *ImageReference, params Parameters) Item {
	mode := ModeSingleImage
	if canvas != nil {
		mode = ModeDualImage
	}
	return Item{Mode: mode, Donor: donor, Canvas: canvas, Params: params}
}

// Item converts the wire request into a normalized Item. Defaults are
// applied exactly once here; absent optional fields never travel further
// as zero values.
func (r Request) Item() (Item, error) {
	donor, err := pickReference(r.ImagePath, r.ImageURL, r.ImageBase64)
	if err != nil {
		return Item{}, fmt.Errorf("%w: image: %v", ErrInvalidParameter, err)
	}
	if donor == nil {
		return Item{}, fmt.Errorf("%w: one of image_path, image_url or image_base64 is required", ErrInvalidParameter)
	}
	canvas, err := pickReference(r.ImagePath2, r.ImageURL2, r.ImageBase642)
	if err != nil {
		return Item{}, fmt.Errorf("%w: image_2: %v", ErrInvalidParameter, err)
	}

	params := DefaultParameters()
	params.Prompt = r.Prompt
	if r.Seed != nil {
		params.Seed = *r.Seed
	}
	if r.Width != nil {
		params.Width = *r.Width
	}
	if r.Height != nil {
		params.Height = *r.Height
	}
	if r.Steps != nil {
		params.Steps = *r.Steps
	}
	if r.CFG != nil {
		params.CFG = *r.CFG
	}
	if r.NegativePrompt != nil {
		params.NegativePrompt = *r.NegativePrompt
	}
	params.Lightning = r.UseLightning

	return NewItem(*donor, canvas, params), nil
}

func pickReference(path, url, encoded string) (*ImageReference, error) {
	var refs []ImageReference
	if path != "" {
		refs = append(refs, PathReference(path))
	}
	if url != "" {
		refs = append(refs, URLReference(url))
	}
	if encoded != "" {
		refs = append(refs, InlineReference(encoded))
	}
	switch len(refs) {
	case 0:
		return nil, nil
	case 1:
		return &refs[0], nil
	default:
		return nil, fmt.Errorf("path, url and base64 forms are mutually exclusive")
	}
}
