// Package encoder turns user-selected image files into the inline form the
// model API expects.
package encoder

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"physiqueAi/internal/physique"
)

// Payload is an image ready to be sent inline: base64 text plus the declared
// media type.
type Payload struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

// Encode reads r fully and base64-encodes the bytes. The media type is
// reported exactly as declared.
func Encode(r io.Reader, mimeType string) (Payload, error) {
	if r == nil {
		return Payload{}, physique.Wrap(physique.ErrRead, "encode", fmt.Errorf("nil reader"))
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return Payload{}, physique.Wrap(physique.ErrRead, "encode", err)
	}
	return Payload{
		Data:     base64.StdEncoding.EncodeToString(raw),
		MIMEType: mimeType,
	}, nil
}

// Bytes decodes the payload back to the raw image bytes.
func (p Payload) Bytes() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return raw, nil
}

// DataURI renders the payload as a data URI usable in an <img> tag.
func (p Payload) DataURI() string {
	mime := strings.TrimSpace(p.MIMEType)
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + p.Data
}
