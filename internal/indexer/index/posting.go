package index

// Field identifies which part of an entry a term occurrence came from.
type Field uint8

const (
	FieldTitle Field = iota
	FieldText
)

func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldText:
		return "text"
	default:
		return "unknown"
	}
}

// Posting records the occurrences of one term in one field of one entry.
type Posting struct {
	Ordinal   int
	Field     Field
	Frequency int
	Positions []int
}

// PostingList is ordered by (Ordinal, Field).
type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}

// Stats summarises an index.
type Stats struct {
	Entries  int `json:"entries"`
	Terms    int `json:"terms"`
	Postings int `json:"postings"`
	Pages    int `json:"pages"`
}
