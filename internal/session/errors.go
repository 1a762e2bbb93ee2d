package session

import (
	"fmt"

	"automatosx/internal/apperr"
)

func errInvalidFormat(message string) error {
	return apperr.New(apperr.CodeInvalidFormat, message)
}

func errMetadataTooLarge(sizeBytes int) error {
	return apperr.New(apperr.CodeMetadataTooLarge, fmt.Sprintf("merged metadata is %d bytes, exceeds 10 KiB", sizeBytes)).
		WithSuggestion("split large payloads into a workspace file and store only a reference")
}

func errCreationFailed(message string, cause error) error {
	return apperr.Wrap(apperr.CodeCreationFailed, message, cause)
}
