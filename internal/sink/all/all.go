// Package all links every sink backend. Blank-import it from a binary to
// make all kinds selectable via config.
package all

import (
	_ "staffimport/internal/sink/postgres"
	_ "staffimport/internal/sink/sqlite"
)
