/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package api

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// LocalIP returns the first non-loopback IPv4 address of this host, so
// phones on the same network can reach the server. Falls back to
// "localhost".
func LocalIP() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "localhost"
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip4 := ip.To4(); ip4 != nil && !ip4.IsLoopback() {
				return ip4.String()
			}
		}
	}

	return "localhost"
}

func isLoopbackHost(host string) bool {
	if host == "" || strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// joinURL is the link a second device opens to land in roomID. When the
// request came in over loopback the LAN address is used instead.
func (a *API) joinURL(r *http.Request, roomID string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	host := r.Host
	hostname, _, err := net.SplitHostPort(host)
	if err != nil {
		hostname = host
	}
	if isLoopbackHost(hostname) {
		host = net.JoinHostPort(a.localIP(), strconv.Itoa(a.port))
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     a.prefix + "/",
		RawQuery: url.Values{"room": {roomID}}.Encode(),
	}

	return u.String()
}
