package domain

import (
	"errors"

	dErrors "frota/pkg/domain-errors"
)

// AccessKeyLength is the number of decimal digits in an NFe access key.
const AccessKeyLength = 44

// ErrInvalidAccessKey is wrapped by every ParseAccessKey rejection.
var ErrInvalidAccessKey = errors.New("invalid access key")

// AccessKey is the 44-digit identifier of one fiscal document.
// This is a domain primitive that enforces validity at parse time.
type AccessKey string

// ParseAccessKey validates s and returns it as an AccessKey.
// Only ASCII digits are accepted; surrounding whitespace is not trimmed.
func ParseAccessKey(s string) (AccessKey, error) {
	if len(s) != AccessKeyLength {
		return "", dErrors.Wrap(ErrInvalidAccessKey, dErrors.CodeInvalidInput,
			"access key must be a 44-digit numeric string")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", dErrors.Wrap(ErrInvalidAccessKey, dErrors.CodeInvalidInput,
				"access key must be a 44-digit numeric string")
		}
	}
	return AccessKey(s), nil
}

// String returns the string representation of the access key.
func (k AccessKey) String() string {
	return string(k)
}

// IsNil returns true if the access key is empty.
func (k AccessKey) IsNil() bool {
	return k == ""
}

// State returns the two-digit IBGE code of the issuing state.
func (k AccessKey) State() string {
	if len(k) != AccessKeyLength {
		return ""
	}
	return string(k[0:2])
}

// Model returns the two-digit document model (55 for NFe, 65 for NFCe).
func (k AccessKey) Model() string {
	if len(k) != AccessKeyLength {
		return ""
	}
	return string(k[20:22])
}
