package codec

// PostingsWriter encodes the doc ids, frequencies and positions of one term
// at a time. The terms dictionary drives it: SetField, then for every term
// StartTerm, the PostingsConsumer calls, and FinishTerm.
type PostingsWriter interface {
	PostingsConsumer
	SetField(field *FieldInfo)
	StartTerm() error
	// FinishTerm returns the metadata the dictionary stores for the term.
	FinishTerm(stats TermStats) ([]byte, error)
	Close() error
}

type PostingsReader interface {
	Postings(field *FieldInfo, state *TermState) (PostingsEnum, error)
	Close() error
}

// TermIndexWriter samples the terms written by the dictionary.
type TermIndexWriter interface {
	AddField(field *FieldInfo) (FieldIndexWriter, error)
	Close() error
}

type FieldIndexWriter interface {
	// CheckIndexTerm is called once per term, in order. When it returns
	// true the dictionary starts a new block and calls Add for the term.
	CheckIndexTerm(term []byte, stats TermStats) bool
	Add(term []byte, termsFilePointer uint64) error
	Finish(termsFilePointer uint64) error
}

type TermIndexReader interface {
	// Field returns ErrFieldNotFound if the field was never indexed.
	Field(field *FieldInfo) (FieldIndexReader, error)
	// Interval is the sampling interval recorded by the writer.
	Interval() int
	Close() error
}

type FieldIndexReader interface {
	// Seek returns the dictionary offset of the greatest indexed term <=
	// term. ok is false when term sorts before every indexed term.
	Seek(term []byte) (offset uint64, ok bool)
	NumIndexTerms() int
}
