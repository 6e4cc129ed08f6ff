package greeting

// Name is the display name embedded in the greeting.
const Name = "Babar 🥰"

// Message is the greeting body returned by GET /. The leading space and the
// spelling are part of the public contract.
const Message = " Well Come " + Name

// contentType pins the response format. Setting it skips huma's Accept
// negotiation, so every client gets the same bytes.
const contentType = "application/json"

// Output is the response for GET /. The body is a bare string rather than an
// object, so clients receive a JSON string literal.
type Output struct {
	ContentType string `header:"Content-Type"`
	Body        string `doc:"Greeting text" example:" Well Come Babar 🥰"`
}
