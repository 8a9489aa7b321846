// Package instance identifies the bot installation across restarts.
package instance

import (
	"github.com/denisbrodbeck/machineid"
)

// ID fetches a stable identifier for this bot instance. The id is derived
// from the host machine, so restarts and redeploys keep the same identity.
func ID() (string, error) {
	return machineid.ProtectedID("trading-bot")
}
