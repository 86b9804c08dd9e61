package protocol

// Request is a command and its unquoted arguments.
type Request struct {
	Command Command
	Args    []string

	quoted []bool
}

// Arg returns the i-th argument, or "" when there are fewer arguments.
func (r *Request) Arg(i int) string {
	if i < 0 || i >= len(r.Args) {
		return ""
	}

	return r.Args[i]
}

// Quoted reports whether the i-th argument was quoted on the wire. It is only
// known for requests built by DecodeRequest.
func (r *Request) Quoted(i int) bool {
	return i >= 0 && i < len(r.quoted) && r.quoted[i]
}

// Encode renders the request as a frame, terminator included.
func (r *Request) Encode() []byte {
	return EncodeRequest(r.Command, r.Args...)
}
