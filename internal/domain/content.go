package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// BlockType identifies the kind of a content block
type BlockType string

const (
	BlockText  BlockType = "text"
	BlockImage BlockType = "image"
)

// ImageSource carries inline media for an image block
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// ContentBlock is a typed unit of turn content
type ContentBlock struct {
	Type   BlockType    `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *ImageSource `json:"source,omitempty"`
}

// TextBlock builds a text block
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ImageBlock builds a base64 image block
func ImageBlock(mediaType, data string) ContentBlock {
	return ContentBlock{
		Type: BlockImage,
		Source: &ImageSource{
			Type:      "base64",
			MediaType: mediaType,
			Data:      data,
		},
	}
}

func (b ContentBlock) validate() error {
	switch b.Type {
	case BlockText:
		return nil
	case BlockImage:
		if b.Source == nil {
			return errors.New("image block without source")
		}
		return nil
	default:
		return fmt.Errorf("unknown block type %q", b.Type)
	}
}

// Content is either a plain string or an ordered list of blocks.
// The zero value is an empty plain string.
type Content struct {
	text   string
	blocks []ContentBlock
}

// Plain wraps a bare string
func Plain(text string) Content {
	return Content{text: text}
}

// Blocks wraps an ordered block list. A nil or empty list is still structured.
func Blocks(blocks ...ContentBlock) Content {
	if blocks == nil {
		blocks = []ContentBlock{}
	}
	return Content{blocks: blocks}
}

// IsStructured reports whether the content is a block list
func (c Content) IsStructured() bool {
	return c.blocks != nil
}

// Text returns the plain string. Empty for structured content.
func (c Content) Text() string {
	return c.text
}

// BlockList returns the blocks. Nil for plain content.
func (c Content) BlockList() []ContentBlock {
	return c.blocks
}

// Flatten joins all text blocks, or returns the plain string
func (c Content) Flatten() string {
	if !c.IsStructured() {
		return c.text
	}
	var buf bytes.Buffer
	for _, b := range c.blocks {
		if b.Type != BlockText {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(b.Text)
	}
	return buf.String()
}

// MarshalJSON emits a bare string for plain content and an array otherwise
func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsStructured() {
		return json.Marshal(c.blocks)
	}
	return json.Marshal(c.text)
}

// UnmarshalJSON accepts either a JSON string or an array of blocks
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var blocks []ContentBlock
		if err := json.Unmarshal(trimmed, &blocks); err != nil {
			return err
		}
		*c = Blocks(blocks...)
		return nil
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return err
	}
	*c = Plain(text)
	return nil
}

// EncodeContent serializes content for storage. Structured content becomes a
// JSON array; plain content is stored verbatim.
func EncodeContent(c Content) (string, error) {
	if !c.IsStructured() {
		return c.text, nil
	}
	data, err := json.Marshal(c.blocks)
	if err != nil {
		return "", fmt.Errorf("failed to marshal content blocks: %w", err)
	}
	return string(data), nil
}

// DecodeResult is the outcome of decoding a stored content column.
// Structured is false when the raw value was kept as a plain string.
type DecodeResult struct {
	Content    Content
	Structured bool
	Err        error
}

// DecodeContent recovers the stored shape. Anything that is not a non-empty
// block array comes back as Plain(raw); Err is set when it looked like one.
func DecodeContent(raw string) DecodeResult {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return DecodeResult{Content: Plain(raw)}
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(trimmed, &blocks); err != nil {
		return DecodeResult{Content: Plain(raw), Err: err}
	}
	if len(blocks) == 0 {
		return DecodeResult{Content: Plain(raw)}
	}
	for _, b := range blocks {
		if err := b.validate(); err != nil {
			return DecodeResult{Content: Plain(raw), Err: err}
		}
	}

	return DecodeResult{Content: Blocks(blocks...), Structured: true}
}
