//go:build !unix

package memory

func mapWords(n int) ([]uint64, func() error, error) {
	if n <= 0 {
		return nil, nil, ErrOutOfRange
	}
	return make([]uint64, n), func() error {
		return nil
	}, nil
}
