package sqlxrepos

import (
	"strconv"
	"strings"

	"github.com/trezcool/peergrade/core"
)

func itoa(n int) string { return strconv.Itoa(n) }

// orderBy renders an ORDER BY clause from the requested ordering, falling
// back to `def` when none is given.
func orderBy(ordering []core.DBOrdering, def string) string {
	if len(ordering) == 0 {
		if def == "" {
			return ""
		}
		return " ORDER BY " + def
	}
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		parts = append(parts, ord.String())
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
