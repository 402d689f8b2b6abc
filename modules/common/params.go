package common

// Bounds on poll specifications.
const (
	MAX_TOPIC_LENGTH  = 200
	MAX_QUESTIONS     = 10
	MAX_OPTIONS       = 10
	MAX_OPTION_LENGTH = 100
)

// Ledger address namespaces.
const (
	NAMESPACE_POLL  = "poll"
	NAMESPACE_VAULT = "vault"
	NAMESPACE_TOKEN = "token"
	NAMESPACE_CLAIM = "claim"
)

const DEFAULT_TIMEZONE = "UTC"
