package enums

import "fmt"

// CredentialType maps to the credential_type enum in Postgres.
type CredentialType string

const (
	CredentialTypeLicense     CredentialType = "license"
	CredentialTypeCertificate CredentialType = "certificate"
	CredentialTypeInsurance   CredentialType = "insurance"
	CredentialTypePermit      CredentialType = "permit"
	CredentialTypeOther       CredentialType = "other"
)

var validCredentialTypes = []CredentialType{
	CredentialTypeLicense,
	CredentialTypeCertificate,
	CredentialTypeInsurance,
	CredentialTypePermit,
	CredentialTypeOther,
}

// String implements fmt.Stringer.
func (c CredentialType) String() string {
	return string(c)
}

// IsValid reports whether the value matches the canonical credential_type enum.
func (c CredentialType) IsValid() bool {
	for _, candidate := range validCredentialTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCredentialType converts raw input into CredentialType.
func ParseCredentialType(value string) (CredentialType, error) {
	for _, candidate := range validCredentialTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid credential type %q", value)
}

// CredentialStatus is derived from the expiry date at read time. It is never
// persisted; the expiry classifier is the only source of truth.
type CredentialStatus string

const (
	CredentialStatusValid        CredentialStatus = "valid"
	CredentialStatusExpiringSoon CredentialStatus = "expiring_soon"
	CredentialStatusExpired      CredentialStatus = "expired"
)

// String implements fmt.Stringer.
func (c CredentialStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is one of the derived statuses.
func (c CredentialStatus) IsValid() bool {
	switch c {
	case CredentialStatusValid, CredentialStatusExpiringSoon, CredentialStatusExpired:
		return true
	}
	return false
}
