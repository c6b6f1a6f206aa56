package utils

import "errors"

var (
	ErrorRecordNotFound = errors.New("record not found")

	// ErrorPersistence wraps unexpected storage failures so the HTTP layer can
	// answer with a generic message while keeping the detail for diagnostics.
	ErrorPersistence = errors.New("persistence failure")
)

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
