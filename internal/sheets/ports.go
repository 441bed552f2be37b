package sheets

import (
	"context"
	"errors"

	"expensetracker/internal/core"
)

// ErrRejected marks an export the spreadsheet refused for a reason retrying
// will not fix, such as a malformed range or a missing permission.
var ErrRejected = errors.New("export rejected")

// Exporter mirrors stored expenses into an external spreadsheet.
type Exporter interface {
	// Export writes one expense row and returns a reference to it. Exporting
	// an expense that is already present must not add a second row.
	Export(ctx context.Context, e core.Expense) (rowRef string, err error)
}
