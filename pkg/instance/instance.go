package instance

import "github.com/angelmondragon/consultly-backend/pkg/env"

// GetID identifies the running process in logs. Explicit configuration wins
// over the platform's dyno name and the container hostname.
func GetID() string {
	return env.First("local", "CONSULTLY_INSTANCE_ID", "DYNO", "HOSTNAME")
}
