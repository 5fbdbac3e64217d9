package action

import "net/http"

// ReplyKind tells the caller how to answer the exchange that triggered an
// action.
type ReplyKind int

const (
	// ReplyNone lets the caller continue normally.
	ReplyNone ReplyKind = iota
	// ReplyHTTP asks for a bare response with StatusCode.
	ReplyHTTP
	// ReplyRedirect asks for a GET redirect to URL.
	ReplyRedirect
	// ReplyPostRedirect asks for a form POST of Fields to URL.
	ReplyPostRedirect
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyNone:
		return "none"
	case ReplyHTTP:
		return "http"
	case ReplyRedirect:
		return "redirect"
	case ReplyPostRedirect:
		return "post_redirect"
	default:
		return "unknown"
	}
}

// Reply short-circuits the caller's normal processing when Kind is not
// ReplyNone.
type Reply struct {
	Kind       ReplyKind
	StatusCode int
	URL        string
	Fields     map[string]string
}

// HTTPReply asks the caller to answer with a bare status code.
func HTTPReply(code int) Reply {
	return Reply{Kind: ReplyHTTP, StatusCode: code}
}

// RedirectReply builds a redirect reply. POST redirects carry form fields.
func RedirectReply(method, url string, fields map[string]string) Reply {
	if method == http.MethodPost {
		return Reply{Kind: ReplyPostRedirect, StatusCode: http.StatusOK, URL: url, Fields: fields}
	}
	return Reply{Kind: ReplyRedirect, StatusCode: http.StatusFound, URL: url}
}

// Interrupts reports whether the caller must stop and answer with the reply.
func (r Reply) Interrupts() bool {
	return r.Kind != ReplyNone
}
