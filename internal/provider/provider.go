// Package provider classifies the cloud dialect of a billing export.
package provider

import "strings"

// Provider identifies the cloud that produced a billing export.
type Provider string

const (
	AWS     Provider = "aws"
	Azure   Provider = "azure"
	GCP     Provider = "gcp"
	Generic Provider = "generic"
)

// Markers are matched case-sensitively against the raw header row. AWS CUR
// columns carry the lineItem/ namespace, Azure exports a subscription id
// column, GCP BigQuery exports a project id column.
const (
	awsMarker = "lineItem/"
)

var azureMarkers = []string{"SubscriptionId", "subscriptionId", "SubscriptionGuid"}

var gcpMarkers = []string{"project.id", "project_id"}

// Detect classifies the exporting cloud from the raw header row. Priority is
// aws > azure > gcp regardless of column order; unrecognized exports are
// treated as generic FOCUS-style files.
func Detect(headers []string) Provider {
	for _, h := range headers {
		if strings.Contains(h, awsMarker) {
			return AWS
		}
	}
	for _, h := range headers {
		if matchesAny(h, azureMarkers) {
			return Azure
		}
	}
	for _, h := range headers {
		if matchesAny(h, gcpMarkers) {
			return GCP
		}
	}
	return Generic
}

func matchesAny(header string, markers []string) bool {
	for _, marker := range markers {
		if header == marker {
			return true
		}
	}
	return false
}

func (p Provider) String() string { return string(p) }
