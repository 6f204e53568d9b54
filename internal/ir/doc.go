// Package ir provides the canonical value representation used to derive
// content-addressed identities in the health store.
//
// Two identities are derived here:
//   - DedupeHash: SHA-256 over the canonical JSON of the fields that make two
//     records "the same real-world observation".
//   - ResourceUUID: a name-based UUID over (resourceId, resourceType,
//     dataSourceId), so re-uploading a clinical resource always lands on the
//     same row.
//
// Canonical JSON follows RFC 8785: object keys ordered by UTF-16 code units,
// no HTML escaping, NFC-normalized strings. Floats are not representable; callers
// convert measurement values with Float, which renders the shortest decimal
// string that round-trips.
//
// ir imports nothing internal.
package ir
