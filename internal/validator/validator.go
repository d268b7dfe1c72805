package validator

import (
	"encoding/json"
	stderrors "errors" // Standard errors package
	"fmt"
	"io"
	"strings"

	"github.com/mcncl/gotyper-live/internal/errors" // Custom errors package
)

// IsValid reports whether text is exactly one JSON value, optionally
// surrounded by whitespace. It never panics.
func IsValid(text string) bool {
	return Validate(text) == nil
}

// Validate explains why text is not valid JSON, or returns nil when it is.
func Validate(text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewInvalidError(fmt.Sprintf("validator panic: %v", r), errors.ErrInvalidJSON)
		}
	}()

	if strings.TrimSpace(text) == "" {
		return errors.NewInvalidError("input is empty", errors.ErrEmptyInput)
	}

	decoder := json.NewDecoder(strings.NewReader(text))
	decoder.UseNumber()

	var value json.RawMessage
	if err := decoder.Decode(&value); err != nil {
		return describe(err)
	}

	// Anything other than whitespace after the first value is rejected.
	var trailing json.RawMessage
	err = decoder.Decode(&trailing)
	switch {
	case stderrors.Is(err, io.EOF):
		return nil
	case err != nil:
		return describe(err)
	default:
		return errors.NewInvalidError("multiple JSON values found at the root", errors.ErrMultipleJSON)
	}
}

// describe maps a decoder error into an invalid-input error with an offset
// when one is known
func describe(err error) error {
	var syntaxError *json.SyntaxError
	if stderrors.As(err, &syntaxError) {
		return errors.NewInvalidError(
			fmt.Sprintf("JSON syntax error at offset %d: %s", syntaxError.Offset, syntaxError.Error()),
			errors.ErrInvalidJSON,
		)
	}
	if stderrors.Is(err, io.ErrUnexpectedEOF) || stderrors.Is(err, io.EOF) {
		return errors.NewInvalidError("unexpected end of JSON input", errors.ErrInvalidJSON)
	}
	return errors.NewInvalidError("failed to decode JSON", errors.Wrap(errors.ErrInvalidJSON, err.Error()))
}
