package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/achilleasa/nimbus/types"
)

// Parse a vector given as "x,y,z".
func parseVec3(value string) (types.Vec3, error) {
	var v types.Vec3
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("invalid vector %q: expected 3 comma separated components", value)
	}
	for idx, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return v, fmt.Errorf("invalid vector %q: %w", value, err)
		}
		v[idx] = float32(f)
	}
	return v, nil
}
