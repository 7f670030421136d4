package types

import (
	"encoding/gob"
	"io"
)

// RenderRequest asks the runner to render Source. An empty EntryPoint selects
// the ES module pipeline; otherwise Source is run as a classic script and the
// render functions of the named global are called.
type RenderRequest struct {
	ID         string  `json:"id"`
	Source     string  `json:"source"`
	EntryPoint string  `json:"entryPoint,omitempty"`
	Params     *string `json:"params,omitempty"`
}

// RenderResponse carries either Result or Error. ErrorKind is the
// ssr.ErrorKind of a render failure and empty for runner failures.
type RenderResponse struct {
	ID        string  `json:"id"`
	Error     *string `json:"error,omitempty"`
	ErrorKind string  `json:"errorKind,omitempty"`
	Result    *string `json:"result,omitempty"`
}

// NewRenderRequestEncoder creates a new encoder for RenderRequest.
// NOTE: only one encoder should be created for a writer.
func NewRenderRequestEncoder(w io.Writer) *gob.Encoder {
	return gob.NewEncoder(w)
}

// NewRenderResponseDecoder creates a new decoder for RenderResponse.
// NOTE: only one decoder should be created for a reader.
func NewRenderResponseDecoder(r io.Reader) *gob.Decoder {
	return gob.NewDecoder(r)
}
