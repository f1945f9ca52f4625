package main

import (
	"fmt"
	"io"

	"github.com/goliatone/go-bookswap/core"
	goerrors "github.com/goliatone/go-errors"
	jsoniter "github.com/json-iterator/go"
)

func writeJSON(w io.Writer, value any) error {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

// describeError renders err with its bookswap kind for scripting callers.
func describeError(err error) errorBody {
	body := errorBody{Kind: core.KindOf(err), Message: err.Error()}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil {
		body.Code = rich.Code
		if rich.Message != "" {
			body.Message = rich.Message
		}
	}
	return body
}
