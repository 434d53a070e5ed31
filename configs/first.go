package configs

import (
	"errors"
	"fmt"
)

// First decodes the value at path from the first source defining it. A missing
// value yields the zero T; any other failure is a configuration defect and panics.
func First[T any](loader Loader, path string) (value T) {
	if err := loader.AssignFirst(path, &value); err != nil {
		if errors.Is(err, ErrValueNotFound) {
			return
		}
		panic(fmt.Errorf("config %s: %w", path, err))
	}
	return
}
