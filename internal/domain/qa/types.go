package qa

import "github.com/telembed/telembed/internal/domain/embedding"

// Entity is an opaque rich-text annotation over a span of the text,
// carried through storage untouched.
type Entity struct {
	Type     string `json:"type"`
	Offset   int    `json:"offset"`
	Length   int    `json:"length"`
	URL      string `json:"url,omitempty"`
	Language string `json:"language,omitempty"`
}

// FormattedText is plain text plus its formatting entities.
type FormattedText struct {
	Text     string   `json:"text"`
	Entities []Entity `json:"entities,omitempty"`
}

// Entry is one curated question/answer pair. Identity is derived, not
// stored: the SHA-256 hash of the question text is its natural key.
type Entry struct {
	Question FormattedText `json:"question"`
	Answer   FormattedText `json:"answer"`
}

// Hash returns the entry's content hash.
func (e Entry) Hash() string {
	return QuestionHash(e.Question.Text)
}

// Match is a successful nearest-neighbor lookup.
type Match struct {
	Entry      Entry
	Similarity float64
}

// Vector aliases the embedding vector type for readability in this package.
type Vector = embedding.Vector
