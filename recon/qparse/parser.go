package qparse

import (
	"regexp"
	"strconv"

	"github.com/vulnwatch/go-recon/recon"
)

var (
	hostBlockPattern      = regexp.MustCompile(`(?is)<HOST(?:\s[^>]*)?>(.*?)</HOST>`)
	detectionBlockPattern = regexp.MustCompile(`(?is)<DETECTION(?:\s[^>]*)?>(.*?)</DETECTION>`)
)

// ParseDetections flattens a detection-list blob into one Detection per
// detection block, each carrying its enclosing host's descriptor. Hosts with
// no detection blocks contribute nothing. Malformed fragments degrade to
// empty fields; empty input yields an empty slice.
func ParseDetections(blob string) []recon.Detection {
	var detections []recon.Detection

	for _, hostMatch := range hostBlockPattern.FindAllStringSubmatch(blob, -1) {
		hostBlock := hostMatch[1]
		host := parseHost(hostBlock)

		for _, detMatch := range detectionBlockPattern.FindAllStringSubmatch(hostBlock, -1) {
			detections = append(detections, parseDetection(detMatch[1], host))
		}
	}

	return detections
}

func parseHost(block string) recon.HostDescriptor {
	host := recon.HostDescriptor{
		IP:         StripCDATA(ExtractTag(block, "IP")),
		DNS:        StripCDATA(ExtractTag(block, "DNS")),
		Hostname:   StripCDATA(ExtractTag(block, "NETBIOS")),
		TrackingID: StripCDATA(ExtractTag(block, "ID")),
		OS:         StripCDATA(ExtractTag(block, "OS")),
	}
	// Some scan profiles omit the NetBIOS name entirely; the DNS name is the
	// next best handle for directory matching.
	if host.Hostname == "" {
		host.Hostname = host.DNS
	}
	return host
}

func parseDetection(block string, host recon.HostDescriptor) recon.Detection {
	severity, _ := strconv.Atoi(ExtractTag(block, "SEVERITY"))
	return recon.Detection{
		QID:        StripCDATA(ExtractTag(block, "QID")),
		Severity:   severity,
		Status:     StripCDATA(ExtractTag(block, "STATUS")),
		FirstFound: StripCDATA(ExtractTag(block, "FIRST_FOUND_DATETIME")),
		LastFound:  StripCDATA(ExtractTag(block, "LAST_FOUND_DATETIME")),
		Host:       host,
	}
}
