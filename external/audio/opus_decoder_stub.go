//go:build !opus

package audio

import (
	"errors"
	"io"
)

func decodeOggOpus(_ io.Reader) ([]int16, int, error) {
	return nil, 0, errors.New("opus support not compiled in; rebuild with -tags opus")
}
