package chat

// Fixed user-facing messages. Internal error detail never reaches the
// stream; these are the only texts shown for failure categories.
const (
	// unconfiguredMessage is streamed when no model provider is available.
	unconfiguredMessage = "The assistant is not configured with a language model yet. Please contact your administrator."

	// apologyMessage is streamed when the loop fails mid-exchange and no
	// partial content was produced.
	apologyMessage = "Sorry, something went wrong while processing your request. Please try again."
)
