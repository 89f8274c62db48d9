package routes

import "path"

const (
	apiVersion = "v0"

	// SessionParam is the path parameter naming a session.
	SessionParam = "session_id"

	HealthPath   = "/health"
	SessionsPath = "/sessions"
)

func Version() string {
	return apiVersion
}

// Base is the prefix every versioned endpoint is mounted under.
func Base() string {
	return "/api/" + apiVersion
}

func Sessions() string {
	return Base() + SessionsPath
}

// Session returns the path of one session, optionally followed by a
// sub-resource such as "document" or "messages".
func Session(id string, sub ...string) string {
	return path.Join(append([]string{Sessions(), id}, sub...)...)
}

func HealthVersioned() string {
	return Base() + HealthPath
}
