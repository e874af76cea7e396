package confloader

import (
	"errors"

	"github.com/knadh/koanf/maps"
)

var errMapReadBytes = errors.New("confloader: map provider has no byte form")

// mapProvider feeds a map of dotted keys ("server.port") to koanf. koanf
// calls Read for providers loaded without a parser.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errMapReadBytes
}

func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(m, "."), nil
}
