package runner

import "github.com/oklog/ulid/v2"

// IDGenerator produces run IDs.
type IDGenerator interface {
	Generate() string
}

// ulidGenerator produces lexically sortable ULID run IDs.
type ulidGenerator struct{}

func (ulidGenerator) Generate() string {
	return ulid.Make().String()
}
