package types

import (
	"fmt"

	"github.com/segmentio/ksuid"
)

// GenerateDebitID generates a unique debit ID with prefix
func GenerateDebitID() string {
	return fmt.Sprintf("deb_%s", ksuid.New().String())
}

// GenerateID generates a generic unique ID
func GenerateID() string {
	return ksuid.New().String()
}
