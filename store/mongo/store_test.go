package mongo

import (
	"errors"
	"testing"

	"github.com/xraph/mockprep"
)

func TestWithRevertKeepsBothErrors(t *testing.T) {
	cause := mockprep.ErrTransactionFailed
	revErr := errors.New("connection reset")

	if got := withRevert(cause, "revert balance", nil); got != cause {
		t.Errorf("nil revert error changed err to %v", got)
	}

	got := withRevert(cause, "revert balance", revErr)
	if !errors.Is(got, mockprep.ErrTransactionFailed) {
		t.Errorf("lost original error: %v", got)
	}
	if !errors.Is(got, revErr) {
		t.Errorf("lost revert error: %v", got)
	}
}
