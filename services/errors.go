package services

import "errors"

var (
	// ErrGeocode: the reverse geocoder failed or returned no usable address.
	ErrGeocode = errors.New("reverse geocoding failed")
	// ErrManifestParse: the oracle reply could not be parsed, even after repairs.
	ErrManifestParse = errors.New("manifest reply unparsable")
	// ErrNoCandidates marks an empty selection pool. Selectors never return it;
	// they return an empty selection instead.
	ErrNoCandidates = errors.New("no candidate animals")
	// ErrNotFound: the referenced region or user challenge does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmptyCatalog: the animal catalog has no entries to build a manifest from.
	ErrEmptyCatalog = errors.New("animal catalog is empty")
)
