package domain

import "strings"

// ServiceAddress identifies a discoverable capability.
type ServiceAddress struct {
	AppName string
	Aspect  string
}

func (a ServiceAddress) String() string {
	return a.AppName + "/" + a.Aspect
}

// Announcement is an ephemeral record of a producer making itself
// known. It is consumed immediately by the discovery state machine
// and never persisted.
type Announcement struct {
	Source   AddressHash
	AppName  string
	Aspects  []string
	Metadata map[string]string
	// Endpoint is the dialable transport address carried alongside the
	// announcement so consumers can open a link back to the producer.
	Endpoint string
}

// HasAspect reports whether the announcement advertises the given aspect.
func (a *Announcement) HasAspect(aspect string) bool {
	for _, asp := range a.Aspects {
		if asp == aspect {
			return true
		}
	}
	return false
}

// Nickname returns the announced display name, or a fallback.
func (a *Announcement) Nickname() string {
	if n, ok := a.Metadata["nickname"]; ok && n != "" {
		return n
	}
	return "Unknown Server"
}

// EncodeMetadata renders metadata in the key:value;key:value wire form.
// Keys are emitted in a fixed order so announcements are stable.
func EncodeMetadata(md map[string]string) string {
	order := []string{"nickname", "res", "fps"}
	parts := make([]string, 0, len(md))
	seen := make(map[string]bool, len(md))
	for _, k := range order {
		if v, ok := md[k]; ok {
			parts = append(parts, k+":"+v)
			seen[k] = true
		}
	}
	for k, v := range md {
		if !seen[k] {
			parts = append(parts, k+":"+v)
		}
	}
	return strings.Join(parts, ";")
}

// ParseMetadata parses the key:value;key:value wire form. Malformed
// segments are skipped; a malformed payload yields an empty map, not
// an error, since announcements are best-effort.
func ParseMetadata(s string) map[string]string {
	md := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(part, ":")
		if !ok || k == "" {
			continue
		}
		md[k] = v
	}
	return md
}
