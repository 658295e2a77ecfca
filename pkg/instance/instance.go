package instance

import "github.com/angelmondragon/scoopshop-backend/pkg/env"

// ID identifies the running process in logs. Dyno names win over the host
// name so platform restarts stay recognizable.
func ID() string {
	return env.First("local", "DYNO", "HOSTNAME")
}
