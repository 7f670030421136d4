package runner

import (
	"errors"

	"github.com/stumble/v8ssr/pkg/ssr"
	"github.com/stumble/v8ssr/pkg/types"
)

// errResult reports err to the client. A RenderError travels as its kind and
// bare message, which the client turns back into the same RenderError; an
// empty message is dropped by gob and the kind alone carries the error.
func errResult(id string, err error) types.RenderResponse {
	var re *ssr.RenderError
	if errors.As(err, &re) {
		msg := re.Message
		return types.RenderResponse{
			ID:        id,
			Error:     &msg,
			ErrorKind: string(re.Kind),
		}
	}
	errStr := err.Error()
	return types.RenderResponse{
		ID:    id,
		Error: &errStr,
	}
}

func htmlResult(id string, html string) types.RenderResponse {
	return types.RenderResponse{
		ID:     id,
		Result: &html,
	}
}
