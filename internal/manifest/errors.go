package manifest

import "fmt"

// ManifestError is a fatal manifest defect: a missing field or attribute,
// malformed encoding, or an empty variant/segment set.
type ManifestError struct {
	Detail string
	Err    error
}

func (e *ManifestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("manifest error: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("manifest error: %s", e.Detail)
}

func (e *ManifestError) Unwrap() error { return e.Err }
