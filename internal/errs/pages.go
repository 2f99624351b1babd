package errs

// The three fixed HTML documents the server ever shows a client. Kept as
// plain string constants built from one small envelope template, matching
// the original implementation's head_begin/head_end/bottom macros.

const (
	pageHead = "<!DOCTYPE html>\n<html lang=\"en\">\n    <head>\n        <meta charset=\"UTF-8\"/>\n        <title>"
	pageMid  = "</title>\n    </head>\n    <body>\n"
	pageTail = "\n    </body>\n</html>"
)

func envelope(title, body string) []byte {
	return []byte(pageHead + title + pageMid + body + pageTail)
}

var (
	page404 = envelope("Nothing", "<h1>The page you are looking for does not exist.</h1>")
	page500 = envelope("Error", "<h1>The file you requested exists, but could not be served to you due to some error.</h1>")
	page503 = envelope("Server Busy", "<h1>Server too busy to serve response. Sorry.</h1>")
)

// PageFor returns the fixed HTML document for the given status code,
// defaulting to the 500 page for any status this server does not define
// a custom document for.
func PageFor(status int) []byte {
	switch status {
	case 404:
		return page404
	case 503:
		return page503
	default:
		return page500
	}
}
