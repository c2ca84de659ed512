package archive

import "errors"

var (
	// ErrTitleNotFound means the title is absent from the manifest index.
	ErrTitleNotFound = errors.New("title not found in archive index")
	// ErrPageNotFoundInChunk means the chunk decompressed cleanly but held no
	// page record with the requested title.
	ErrPageNotFoundInChunk = errors.New("page not found in chunk")
	// ErrMalformedManifest means a manifest line did not parse as offset:id:title.
	ErrMalformedManifest = errors.New("malformed manifest line")
)
