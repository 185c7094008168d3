package ledger

// Journal records undo steps for ledger mutations. A nil *Journal is valid
// and records nothing.
type Journal struct {
	undo []func()
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) record(fn func()) {
	if j == nil {
		return
	}
	j.undo = append(j.undo, fn)
}

// Len returns the number of recorded mutations.
func (j *Journal) Len() int {
	if j == nil {
		return 0
	}
	return len(j.undo)
}

// Revert undoes every recorded mutation, newest first.
func (j *Journal) Revert() {
	if j == nil {
		return
	}
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// Commit drops the undo log; recorded mutations become permanent.
func (j *Journal) Commit() {
	if j == nil {
		return
	}
	j.undo = nil
}
