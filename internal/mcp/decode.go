package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/PlayerYK/TweetSift/internal/errors"
)

// decode binds the tool arguments onto a message input. Malformed arguments
// are an INVALID_REQUEST.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var input T
	if err := req.BindArguments(&input); err != nil {
		return input, errors.NewInvalidRequest("invalid arguments: " + err.Error())
	}
	return input, nil
}
