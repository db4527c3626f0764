package models

import (
	"fmt"
	"strings"
)

// AssetKind labels the two structurally identical record families
type AssetKind string

const (
	KindFile     AssetKind = "file"
	KindDocument AssetKind = "document"
)

// ParseAssetKind accepts singular or plural forms ("files", "documents")
func ParseAssetKind(s string) (AssetKind, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s") {
	case string(KindFile):
		return KindFile, nil
	case string(KindDocument):
		return KindDocument, nil
	}
	return "", fmt.Errorf("unknown asset kind %q", s)
}

// Plural returns the collection name used in routes and tables
func (k AssetKind) Plural() string {
	return string(k) + "s"
}

// AttributeType classifies a FileType and gates who may see it
type AttributeType string

const (
	AttributeNone      AttributeType = "none"
	AttributeGrower    AttributeType = "grower"
	AttributeCustomer  AttributeType = "customer"
	AttributeAdmin     AttributeType = "admin"
	AttributeSuperUser AttributeType = "super-user"
)

// ParseAttributeType maps a stored value onto the closed set. NULL and the
// empty string are both AttributeNone.
func ParseAttributeType(s string) (AttributeType, error) {
	switch AttributeType(strings.TrimSpace(s)) {
	case "", AttributeNone:
		return AttributeNone, nil
	case AttributeGrower:
		return AttributeGrower, nil
	case AttributeCustomer:
		return AttributeCustomer, nil
	case AttributeAdmin:
		return AttributeAdmin, nil
	case AttributeSuperUser:
		return AttributeSuperUser, nil
	}
	return "", fmt.Errorf("unknown attribute type %q", s)
}

// IsNone reports a public-by-default type
func (a AttributeType) IsNone() bool {
	return a == "" || a == AttributeNone
}

// FboType is the registration scheme of an FBO code
type FboType string

const (
	FboPUC   FboType = "PUC"
	FboPHC   FboType = "PHC"
	FboOther FboType = "OTHER"
)

// Valid reports whether t is a known FBO type
func (t FboType) Valid() bool {
	switch t {
	case FboPUC, FboPHC, FboOther:
		return true
	}
	return false
}

// QualityRating is the inspection outcome recorded on a file
type QualityRating string

const (
	QualitySound   QualityRating = "Sound"
	QualityUnsound QualityRating = "Unsound"
)

// Valid reports whether r is empty or a known rating
func (r QualityRating) Valid() bool {
	return r == "" || r == QualitySound || r == QualityUnsound
}
