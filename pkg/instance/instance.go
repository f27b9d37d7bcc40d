package instance

import "os"

// GetID returns the process instance identifier used in startup logs.
// Heroku's DYNO wins over WORKER_ID; local runs report "local".
func GetID() string {
	for _, key := range []string{"DYNO", "WORKER_ID"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
