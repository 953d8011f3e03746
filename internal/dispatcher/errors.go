package dispatcher

import "fmt"

// errPoolNotFound reports that a dispatched AMM call named a pool id the
// engine has no record of.
func errPoolNotFound(id string) error {
	return fmt.Errorf("dispatcher: unknown pool %q", id)
}
