package memory

import (
	"testing"

	"fintrack/internal/storage/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, New())
}
