package identityservice

import (
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/errs"
)

// ErrNoAccountsMatched is surfaced when no participant resolves to a
// retrievable account. It carries the connect-account action so the user
// can fix their association and retry.
func ErrNoAccountsMatched() *errs.UserFacing {
	return errs.Warning("no accounts matched", errs.ActionConnectAccount)
}
