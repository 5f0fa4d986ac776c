package seriesservice

import (
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/errs"
)

// ErrNoSeriesMatches is surfaced when accounts resolved and had history but
// no match was common to every participant in the window. Distinct from
// the no-accounts case so the rendered message tells the user what to fix.
func ErrNoSeriesMatches() *errs.UserFacing {
	return errs.Warning("no matches found for the series", errs.ActionRetry)
}
