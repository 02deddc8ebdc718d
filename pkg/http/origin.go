package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	errors2 "github.com/assetnote/fetchgo/pkg/errors"
)

// Origin is the (scheme, hostname, port) triple every agent is bound
// to. An agent and all requests dispatched to it must share one
// origin; any cross-origin request is rejected with OriginMismatch.
type Origin struct {
	Scheme   string
	Hostname string
	Port     int
}

// String returns the canonical origin key used by Client to index its
// per-origin pools, e.g. "https://example.com:443".
func (o Origin) String() string {
	return fmt.Sprintf("%s://%s:%d", o.Scheme, o.Hostname, o.Port)
}

// IsSecure reports whether this origin should be dialed over TLS.
func (o Origin) IsSecure() bool { return o.Scheme == "https" }

// Equal compares two origins for the scheme/hostname/port triple.
func (o Origin) Equal(other Origin) bool {
	return o.Scheme == other.Scheme && o.Hostname == other.Hostname && o.Port == other.Port
}

// OriginFromURL derives the Origin for an absolute URL, validating
// the scheme is http or https, failing with UnsupportedProtocol otherwise.
func OriginFromURL(rawurl string) (Origin, *url.URL, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return Origin{}, nil, errors2.Wrap(errors2.UnsupportedProtocol, "parsing url "+rawurl, err)
	}
	return originFromParsed(u)
}

func originFromParsed(u *url.URL) (Origin, *url.URL, error) {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Origin{}, nil, errors2.New(errors2.UnsupportedProtocol, "scheme must be http or https, got "+u.Scheme)
	}
	if u.Hostname() == "" {
		return Origin{}, nil, errors2.New(errors2.UnsupportedProtocol, "url is missing a hostname")
	}

	port := defaultPortForScheme(scheme)
	if p := u.Port(); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil {
			return Origin{}, nil, errors2.Wrap(errors2.UnsupportedProtocol, "invalid port "+p, err)
		}
		port = parsed
	}

	return Origin{Scheme: scheme, Hostname: u.Hostname(), Port: port}, u, nil
}

func defaultPortForScheme(scheme string) int {
	if scheme == "https" {
		return 443
	}
	return 80
}

// hostHeaderValue returns the value the Host header should take for
// this origin: "hostname" alone when the port is the scheme's
// default, "hostname:port" otherwise.
func (o Origin) hostHeaderValue() string {
	if o.Port == defaultPortForScheme(o.Scheme) {
		return o.Hostname
	}
	return fmt.Sprintf("%s:%d", o.Hostname, o.Port)
}

// dialAddress returns the "host:port" string suitable for net.Dial.
func (o Origin) dialAddress() string {
	return fmt.Sprintf("%s:%d", o.Hostname, o.Port)
}
