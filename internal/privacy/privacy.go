// Package privacy scrubs camera URLs, phone numbers and addresses before
// they reach logs or error telemetry.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"net/netip"
	"net/url"
	"regexp"
	"strings"
)

var (
	urlPattern   = regexp.MustCompile(`\b(?:https?|rtsp|rtsps|rtmp|tcp|ssl)://\S+`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+\d{7,15}`)
)

// ScrubMessage replaces URLs, email addresses and E.164 phone numbers in message.
func ScrubMessage(message string) string {
	message = urlPattern.ReplaceAllStringFunc(message, AnonymizeURL)
	message = emailPattern.ReplaceAllStringFunc(message, RedactEmail)
	return phonePattern.ReplaceAllStringFunc(message, RedactPhone)
}

// AnonymizeURL converts a URL into a stable opaque token that still groups by
// scheme, host category, port and path shape.
func AnonymizeURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		hash := sha256.Sum256([]byte(rawURL))
		return fmt.Sprintf("url-hash-%x", hash[:8])
	}

	var normalizedParts []string
	if parsedURL.Scheme != "" {
		normalizedParts = append(normalizedParts, parsedURL.Scheme)
	}
	if host := parsedURL.Hostname(); host != "" {
		normalizedParts = append(normalizedParts, categorizeHost(host))
	}
	if parsedURL.Port() != "" {
		normalizedParts = append(normalizedParts, "port-"+parsedURL.Port())
	}
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		normalizedParts = append(normalizedParts, anonymizePath(parsedURL.Path))
	}

	hash := sha256.Sum256([]byte(strings.Join(normalizedParts, ":")))
	return fmt.Sprintf("url-%x", hash[:12])
}

// SanitizeStreamURL strips credentials, path and query from a stream URL,
// keeping scheme and host:port for display. Plain file paths are returned unchanged.
func SanitizeStreamURL(source string) string {
	if !strings.Contains(source, "://") {
		return source
	}
	parsedURL, err := url.Parse(source)
	if err != nil || parsedURL.Host == "" {
		return source
	}
	return parsedURL.Scheme + "://" + parsedURL.Host
}

// RedactPhone keeps the country prefix and the last two digits of a phone number.
func RedactPhone(number string) string {
	if len(number) <= 5 {
		return strings.Repeat("*", len(number))
	}
	return number[:3] + strings.Repeat("*", len(number)-5) + number[len(number)-2:]
}

// RedactEmail keeps the first character of the local part and the domain.
func RedactEmail(address string) string {
	at := strings.LastIndex(address, "@")
	if at <= 0 {
		return "***"
	}
	return address[:1] + "***" + address[at:]
}

// categorizeHost anonymizes hostnames while preserving useful categorization
func categorizeHost(host string) string {
	if host == "localhost" {
		return "localhost"
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		switch {
		case addr.IsLoopback():
			return "localhost"
		case addr.IsPrivate(), addr.IsLinkLocalUnicast():
			return "private-ip"
		default:
			return "public-ip"
		}
	}

	// For domain names, preserve TLD only
	if parts := strings.Split(host, "."); len(parts) >= 2 {
		return "domain-" + parts[len(parts)-1]
	}

	return "unknown-host"
}

// anonymizePath creates a structure-preserving but privacy-safe path representation
func anonymizePath(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return "root"
	}

	var anonymizedSegments []string
	for segment := range strings.SplitSeq(path, "/") {
		if segment == "" {
			continue
		}

		switch {
		case isCommonStreamName(segment):
			anonymizedSegments = append(anonymizedSegments, "stream")
		case isNumeric(segment):
			anonymizedSegments = append(anonymizedSegments, "numeric")
		default:
			hash := sha256.Sum256([]byte(segment))
			anonymizedSegments = append(anonymizedSegments, fmt.Sprintf("seg-%x", hash[:4]))
		}
	}

	return strings.Join(anonymizedSegments, "/")
}

// isCommonStreamName checks if a path segment is a common, non-sensitive stream name
func isCommonStreamName(segment string) bool {
	segment = strings.ToLower(segment)
	for _, name := range []string{"stream", "live", "video", "feed", "cam", "channel", "h264"} {
		if strings.Contains(segment, name) {
			return true
		}
	}
	return false
}

// isNumeric checks if a string is purely numeric
func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
