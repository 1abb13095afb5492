package vars

import (
	"sort"
	"strconv"
	"strings"
)

const (
	ServerName    = "SERVER_NAME"
	ServerPort    = "SERVER_PORT"
	RequestMethod = "REQUEST_METHOD"
	RequestURI    = "REQUEST_URI"
	PathInfo      = "PATH_INFO"
	QueryString   = "QUERY_STRING"
	ContentType   = "CONTENT_TYPE"
	ContentLength = "CONTENT_LENGTH"
	RemoteAddr    = "REMOTE_ADDR"
	HTTPHost      = "HTTP_HOST"

	headerPrefix = "HTTP_"
	defaultHost  = "localhost"
)

// unprefixed lists header-derived names that are passed without the HTTP_ prefix.
var unprefixed = map[string]struct{}{
	"QUERY_STRING":    {},
	"REQUEST_METHOD":  {},
	"CONTENT_TYPE":    {},
	"CONTENT_LENGTH":  {},
	"REQUEST_URI":     {},
	"PATH_INFO":       {},
	"DOCUMENT_ROOT":   {},
	"SERVER_PROTOCOL": {},
	"REQUEST_SCHEME":  {},
	"HTTPS":           {},
	"REMOTE_ADDR":     {},
	"REMOTE_PORT":     {},
	"SERVER_PORT":     {},
	"SERVER_NAME":     {},
}

// Server carries the connection-derived values.
type Server struct {
	Hostname string
	Host     string
	Port     int
}

// Request carries the request metadata a packet is built from.
type Request struct {
	Method     string
	RawPath    string
	Headers    map[string]string
	BodyLength int
	// PassThrough names headers copied verbatim under their external spelling.
	PassThrough []string
}

// Encode builds the variable mapping for one request.
//
// Connection and request-line values are written first. Header-derived values
// only fill names that are still missing or empty, and pass-through headers
// overwrite last.
func Encode(srv Server, req Request) *Vars {
	v := New()

	v.Set(ServerName, serverName(srv))
	v.Set(ServerPort, strconv.Itoa(srv.Port))

	path, query := SplitPath(req.RawPath)

	if host, ok := HeaderValue(req.Headers, "host"); ok {
		v.Set(HTTPHost, host)
	} else {
		v.Set(HTTPHost, serverName(srv))
	}
	v.SetIfEmpty(RequestMethod, req.Method)
	v.SetIfEmpty(RequestURI, req.RawPath)
	v.SetIfEmpty(PathInfo, path)
	v.SetIfEmpty(QueryString, query)
	v.SetIfEmpty(ContentType, "")
	if req.BodyLength > 0 {
		v.Set(ContentLength, strconv.Itoa(req.BodyLength))
	} else {
		v.SetIfEmpty(ContentLength, "")
	}
	realIP, _ := HeaderValue(req.Headers, "x-real-ip")
	v.SetIfEmpty(RemoteAddr, realIP)

	keys := make([]string, 0, len(req.Headers))
	for k := range req.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.SetIfEmpty(NormalizeHeader(k), req.Headers[k])
	}

	for _, name := range req.PassThrough {
		if val, ok := HeaderValue(req.Headers, strings.ToLower(name)); ok && val != "" {
			v.Set(name, val)
		}
	}
	return v
}

// NormalizeHeader maps an HTTP header name to its variable name.
func NormalizeHeader(name string) string {
	n := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	if _, ok := unprefixed[n]; ok {
		return n
	}
	return headerPrefix + n
}

// SplitPath separates rawPath into its path and query components.
// Only the literal %20 escape is decoded in the path; other escapes pass through.
func SplitPath(rawPath string) (path, query string) {
	if i := strings.IndexByte(rawPath, '#'); i >= 0 {
		rawPath = rawPath[:i]
	}
	path = rawPath
	if i := strings.IndexByte(rawPath, '?'); i >= 0 {
		path, query = rawPath[:i], rawPath[i+1:]
	}
	return strings.ReplaceAll(path, "%20", " "), query
}

func serverName(srv Server) string {
	if srv.Hostname != "" {
		return srv.Hostname
	}
	if srv.Host != "" {
		return srv.Host
	}
	return defaultHost
}
