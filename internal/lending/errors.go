package lending

import (
	"fmt"

	"github.com/mvidmar/knjiznica/internal/model"
)

// Engine failures. All wrap the shared taxonomy in internal/model so callers
// can classify with errors.Is; state is never mutated on a rejected operation.
var (
	ErrInactiveAccount   = fmt.Errorf("%w: account is inactive", model.ErrInvalidState)
	ErrAlreadyBorrowed   = fmt.Errorf("%w: item already borrowed and not yet returned", model.ErrInvalidState)
	ErrNoCopiesAvailable = fmt.Errorf("%w: no copies available", model.ErrInvalidState)
	ErrNoOpenLoan        = fmt.Errorf("%w: no open loan for this member and item", model.ErrInvalidState)
)
