package validation

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// AspectRegex validates service aspect path segments
	AspectRegex = regexp.MustCompile(`^[a-z0-9_]+(/[a-z0-9_]+)*$`)

	// AppNameRegex validates announced application names
	AppNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateAppName validates the announced application name
func ValidateAppName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("app name is required")
	}
	if len(name) > 50 {
		return fmt.Errorf("app name is too long (max 50 characters)")
	}
	if !AppNameRegex.MatchString(name) {
		return fmt.Errorf("app name contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidateAspect validates a service aspect path such as
// "video_stream/ad_feed"
func ValidateAspect(aspect string) error {
	aspect = strings.TrimSpace(aspect)
	if aspect == "" {
		return fmt.Errorf("aspect is required")
	}
	if len(aspect) > 100 {
		return fmt.Errorf("aspect is too long (max 100 characters)")
	}
	if !AspectRegex.MatchString(aspect) {
		return fmt.Errorf("aspect must be lowercase segments separated by /")
	}
	return nil
}

// ValidateNickname validates the display name carried in announcement
// metadata. Separator characters would corrupt the wire form.
func ValidateNickname(nickname string) error {
	if nickname == "" {
		return fmt.Errorf("nickname is required")
	}
	if !utf8.ValidString(nickname) {
		return fmt.Errorf("nickname is not valid UTF-8")
	}
	if utf8.RuneCountInString(nickname) > 64 {
		return fmt.Errorf("nickname is too long (max 64 characters)")
	}
	if strings.ContainsAny(nickname, ";:") {
		return fmt.Errorf("nickname must not contain ; or :")
	}
	return nil
}

// ValidateHostPort validates a listen or multicast address in
// host:port form. An empty host is allowed for wildcard binds.
func ValidateHostPort(addr string) error {
	if addr == "" {
		return fmt.Errorf("address is required")
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %v", addr, err)
	}
	if port == "" {
		return fmt.Errorf("address %q has no port", addr)
	}
	return nil
}

// ValidateMulticastAddress validates the discovery group address and
// checks the IP actually is a multicast group.
func ValidateMulticastAddress(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid multicast address %q: %v", addr, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("multicast address %q is not an IP address", addr)
	}
	if !ip.IsMulticast() {
		return fmt.Errorf("address %q is not in a multicast range", addr)
	}
	return nil
}
