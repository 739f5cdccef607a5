package registrations

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	nameMinLen        = 3
	nameMaxLen        = 200
	descriptionMaxLen = 1000
	toolNameMaxLen    = 50
)

// validateSubmit checks submit input against the registration rules and
// returns nil or a ValidationError enumerating every violation.
func validateSubmit(in SubmitInput) *ValidationError {
	fields := make(map[string]string)

	if msg := validateEndpointURL(in.EndpointURL); msg != "" {
		fields["endpoint_url"] = msg
	}
	if n := utf8.RuneCountInString(in.EndpointName); n < nameMinLen || n > nameMaxLen {
		fields["endpoint_name"] = fmt.Sprintf("must be %d-%d characters", nameMinLen, nameMaxLen)
	}
	if utf8.RuneCountInString(in.Description) > descriptionMaxLen {
		fields["description"] = fmt.Sprintf("must be at most %d characters", descriptionMaxLen)
	}
	if strings.TrimSpace(in.OwnerContact) == "" {
		fields["owner_contact"] = "must not be empty"
	}
	for i, tool := range in.Tools {
		name := strings.TrimSpace(tool.Name)
		if name == "" {
			fields[fmt.Sprintf("available_tools[%d].name", i)] = "must not be empty"
		} else if utf8.RuneCountInString(name) > toolNameMaxLen {
			fields[fmt.Sprintf("available_tools[%d].name", i)] = fmt.Sprintf("must be at most %d characters", toolNameMaxLen)
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// validateEndpointURL requires an absolute http(s) URL with a non-empty,
// non-loopback host. Returns "" when valid.
func validateEndpointURL(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "must not be empty"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "must be a valid URL"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "must use http or https"
	}
	host := u.Hostname()
	if host == "" {
		return "must include a host"
	}
	if isLoopbackHost(host) {
		return "must not be a loopback address"
	}
	return ""
}

func isLoopbackHost(host string) bool {
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback() || ip.IsUnspecified()
	}
	return false
}
