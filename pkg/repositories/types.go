package repositories

type ErrNotFound struct {
}

func (e *ErrNotFound) Error() string {
	return "not found"
}

func IsNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}

// ErrUnsupportedURL is returned by NewRepository for an unknown scheme.
type ErrUnsupportedURL struct {
	URL string
}

func (e *ErrUnsupportedURL) Error() string {
	return "unsupported repository url: " + e.URL
}
