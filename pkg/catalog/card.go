// Package catalog holds the support card record, the JSON catalog store and the
// diff/merge rules that reconcile a fresh extraction with persisted state.
package catalog

import (
	"bytes"
	"encoding/json"
)

// LocalImage is the path of a downloaded card image. Valid is false until an
// asset download succeeded for the card.
type LocalImage struct {
	Path  string
	Valid bool
}

// NewLocalImage returns a valid LocalImage for path.
func NewLocalImage(path string) LocalImage {
	return LocalImage{Path: path, Valid: true}
}

// Card is one catalog entry. Name is the identity key.
type Card struct {
	Name       string
	Image      string
	Link       string
	LocalImage LocalImage
}

type cardJSON struct {
	Name       string  `json:"name"`
	Image      string  `json:"image"`
	Link       string  `json:"link"`
	LocalImage *string `json:"local_image,omitempty"`
}

// MarshalJSON writes local_image only when the card holds one. HTML characters
// are left unescaped so URLs stay readable in the catalog file.
func (c Card) MarshalJSON() ([]byte, error) {
	aux := cardJSON{Name: c.Name, Image: c.Image, Link: c.Link}
	if c.LocalImage.Valid {
		p := c.LocalImage.Path
		aux.LocalImage = &p
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(aux); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var aux cardJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Card{Name: aux.Name, Image: aux.Image, Link: aux.Link}
	if aux.LocalImage != nil {
		c.LocalImage = NewLocalImage(*aux.LocalImage)
	}
	return nil
}
