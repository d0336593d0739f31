package domain

import (
	"errors"
	"testing"
)

func TestIndexingError(t *testing.T) {
	cause := errors.New("dimension 3 != 4")
	err := NewIndexingError("upsert", cause)

	for _, target := range []error{ErrIndexingFailure, cause} {
		if !errors.Is(err, target) {
			t.Errorf("errors.Is(%v) = false", target)
		}
	}
	var ie *IndexingError
	if !errors.As(err, &ie) || ie.Stage != "upsert" {
		t.Fatalf("errors.As: %+v", ie)
	}
	if got := err.Error(); got != "indexing failure at upsert: dimension 3 != 4" {
		t.Errorf("Error() = %q", got)
	}
}
