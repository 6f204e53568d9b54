package ir

import (
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
)

// Domain prefixes for content-addressed identity. The version suffix leaves
// room for an algorithm change without colliding with stored values.
const (
	DomainDedupe   = "healthstore/dedupe/v1"
	DomainResource = "healthstore/medical-resource/v1"
)

// resourceNamespace is the UUIDv5 namespace for medical resource ids.
var resourceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte(DomainResource))

// hashWithDomain computes SHA256(domain || 0x00 || data). The separator keeps
// the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return h.Sum(nil)
}

// DedupeHash returns the content hash of a record's dedupe-defining fields.
// recordType is folded in so equal field sets of different types never
// collide.
func DedupeHash(recordType string, fields Object) ([]byte, error) {
	obj := Object{
		"record_type": String(recordType),
		"fields":      fields,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return nil, fmt.Errorf("dedupe hash: %w", err)
	}
	return hashWithDomain(DomainDedupe, canonical), nil
}

// ResourceUUID derives the stable id of a medical resource from its natural
// key. The same (resourceID, resourceType, dataSourceID) always yields the
// same UUID.
func ResourceUUID(resourceID, resourceType string, dataSourceID uuid.UUID) uuid.UUID {
	obj := Object{
		"data_source_id": String(dataSourceID.String()),
		"resource_id":    String(resourceID),
		"resource_type":  String(resourceType),
	}
	// All values are strings, so canonical marshaling cannot fail.
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		panic(err)
	}
	return uuid.NewSHA1(resourceNamespace, canonical)
}
