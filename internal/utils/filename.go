package utils

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const filenameAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewImageFilename returns image-<unix nanos>-<random>.png.  The random
// suffix makes collisions between concurrent saves in the same nanosecond
// negligible; it is not a uniqueness guarantee.
func NewImageFilename(now time.Time) (string, error) {
	suffix, err := gonanoid.Generate(filenameAlphabet, 10)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("image-%d-%s.png", now.UnixNano(), suffix), nil
}
