package apperror

type Kind string

var (
	// --- caller facing ---
	Configuration Kind = "configuration"
	InvalidInput  Kind = "invalid_input"
	AlreadyExists Kind = "already_exist"
	NotFound      Kind = "not_found"
	Unauthorised  Kind = "unauthorised"

	// --- absorbed, surfaced as warnings ---
	Internal    Kind = "internal"
	Persistence Kind = "persistence"
	Delivery    Kind = "delivery"
)
