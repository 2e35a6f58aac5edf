package domain

import "errors"

var (
	// ErrMissingImage means the request carried neither a file nor an image URL.
	ErrMissingImage = errors.New("no image provided")

	// ErrInvalidImageSource means the image URL could not be fetched or decoded.
	ErrInvalidImageSource = errors.New("invalid image source")

	// ErrStorageWriteFailed means the image store could not write the image.
	ErrStorageWriteFailed = errors.New("image storage write failed")

	// ErrPersistenceFailed means the product table could not be read or written.
	ErrPersistenceFailed = errors.New("product persistence failed")

	// ErrNotFound means no product has the requested id.
	ErrNotFound = errors.New("product not found")
)
