// Package ingestion defines the raw record shapes accepted from documentation
// generators and the Kafka event schema used to push payload reloads.
package ingestion

import "time"

// RawEntry is one record of a documentation search payload as emitted by the
// generator. Pointer fields distinguish an absent field from an empty one.
type RawEntry struct {
	Location *string `json:"location"`
	Page     *string `json:"page"`
	Title    *string `json:"title"`
	Text     *string `json:"text"`
	Category *string `json:"category"`
}

// Envelope is the object form of a payload: {"docs": [...]}.
type Envelope struct {
	Docs []RawEntry `json:"docs"`
}

// ReloadEvent is the Kafka message asking a search node to rebuild the index
// of one documentation version. Payload holds the file verbatim, so the
// JavaScript wrapper form is carried as-is. When Payload is empty the node
// fetches Source instead, which keeps large indexes off the broker.
type ReloadEvent struct {
	Version     string    `json:"version"`
	Payload     string    `json:"payload,omitempty"`
	Source      string    `json:"source,omitempty"`
	Digest      string    `json:"digest,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// ReloadResponse is returned by the reload HTTP endpoint.
type ReloadResponse struct {
	Version    string `json:"version"`
	Generation uint64 `json:"generation"`
	Entries    int    `json:"entries"`
	Terms      int    `json:"terms"`
	Pages      int    `json:"pages"`
	Status     string `json:"status"`
}

// Str is a small helper for building RawEntry literals.
func Str(s string) *string {
	return &s
}
