package island

import "fmt"

// FetchError is a transport or HTTP failure while reading a collection
// from the island API. Status is zero when the request never got a
// response.
type FetchError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// MalformedRecordError marks a record that is missing its declared key
// field. Such records are dropped during indexing; the rest of the
// collection is still used.
type MalformedRecordError struct {
	Endpoint string
	Index    int
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("%s: record %d is missing its key field", e.Endpoint, e.Index)
}
