package codec

// FieldsConsumer receives the postings of a segment at flush time, one field
// at a time. Fields may arrive in any order; terms within a field arrive in
// strictly increasing UnsignedByteOrder.
type FieldsConsumer interface {
	AddField(field *FieldInfo) (TermsConsumer, error)
	Close() error
}

// Caller calls in order:
// - StartTerm()
// - StartDoc(), AddPosition()..., FinishDoc()
// - ...
// - FinishTerm()
// - StartTerm()
// - ...
// - Finish()
type TermsConsumer interface {
	StartTerm(term []byte) (PostingsConsumer, error)
	FinishTerm(term []byte, stats TermStats) error
	// Finish completes the field. Field statistics are derived from the
	// terms and docs that were written.
	Finish() error
}

type PostingsConsumer interface {
	// StartDoc is called with strictly increasing doc ids within a term.
	StartDoc(docId DocumentId, freq uint32) error
	AddPosition(position uint32) error
	FinishDoc() error
}

// FieldsProducer is the read side of a segment's postings. Once returned by
// a postings format it is immutable and safe for concurrent use.
type FieldsProducer interface {
	Fields() []string
	Terms(field string) (Terms, error)
	Close() error
}

type Terms interface {
	// Size is the number of distinct terms.
	Size() uint64
	DocCount() uint32
	SumDocFreq() uint64
	SumTotalTermFreq() uint64
	// Postings returns ErrTermNotFound when term does not exist.
	Postings(term []byte) (PostingsEnum, error)
	Iterator() TermsEnum
}

type SeekStatus int

const (
	SeekFound SeekStatus = iota
	SeekNotFound
	SeekEnd
)

func (s SeekStatus) String() string {
	switch s {
	case SeekFound:
		return "found"
	case SeekNotFound:
		return "not-found"
	default:
		return "end"
	}
}

type TermsEnum interface {
	// Next returns nil once the enum is exhausted. The empty term is a
	// non-nil empty slice.
	Next() ([]byte, error)
	// SeekCeil positions the enum on the smallest term >= target.
	SeekCeil(target []byte) (SeekStatus, error)
	Term() []byte
	DocFreq() uint32
	TotalTermFreq() uint64
	Postings() (PostingsEnum, error)
}

type PostingsEnum interface {
	NextDoc() (DocumentId, error)
	// Advance moves to the first doc >= target.
	Advance(target DocumentId) (DocumentId, error)
	DocID() DocumentId
	Freq() uint32
	NextPosition() (uint32, error)
}
