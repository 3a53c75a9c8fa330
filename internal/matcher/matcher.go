// Package matcher pairs uploaded PDF files with XML files by shared base
// filename.  It performs no I/O; callers feed it in-memory file contents
// and receive either a complete list of pairs or a typed error describing
// the first file that broke the batch.  Pairing is all-or-nothing: a
// single unmatched or duplicated name rejects the whole upload so that no
// partial transaction is ever created from it.
package matcher

import (
    "errors"
    "fmt"
    "path/filepath"
    "strings"
)

// File is an uploaded file: its original filename and raw contents.
type File struct {
    Name string
    Data []byte
}

// Pair is one matched PDF/XML couple keyed by the shared base name.
type Pair struct {
    BaseName string
    PDF      []byte
    XML      []byte
}

// ErrNoDocuments is returned when a batch contains neither uploaded PDFs
// nor linked invoice IDs.
var ErrNoDocuments = errors.New("no documents provided")

// UnmatchedError reports a PDF (or invoice filename) with no XML file of
// the same base name in the batch.
type UnmatchedError struct {
    Filename string
}

func (e *UnmatchedError) Error() string {
    return fmt.Sprintf("no matching xml for %q", e.Filename)
}

// DuplicateBaseNameError reports two files in one batch that normalize to
// the same base name.  Duplicates are rejected rather than silently
// shadowed so the uploader can fix the batch.
type DuplicateBaseNameError struct {
    BaseName string
}

func (e *DuplicateBaseNameError) Error() string {
    return fmt.Sprintf("duplicate base name %q in batch", e.BaseName)
}

// BaseName strips the extension from a filename, trims surrounding
// whitespace and lower-cases the result.  It is the sole pairing key
// between PDF and XML uploads.
func BaseName(name string) string {
    name = strings.TrimSpace(name)
    ext := filepath.Ext(name)
    return strings.ToLower(strings.TrimSuffix(name, ext))
}

// Index maps normalized base names to XML file contents.
type Index map[string][]byte

// NewIndex builds an Index over the given XML files.  Two XML files that
// normalize to the same base name produce a DuplicateBaseNameError.
func NewIndex(xmls []File) (Index, error) {
    idx := make(Index, len(xmls))
    for _, f := range xmls {
        base := BaseName(f.Name)
        if _, ok := idx[base]; ok {
            return nil, &DuplicateBaseNameError{BaseName: base}
        }
        idx[base] = f.Data
    }
    return idx, nil
}

// Lookup returns the XML contents stored under the base name of the given
// filename.  It is used both for uploaded PDFs and for the stored
// filenames of pre-existing invoices.
func (idx Index) Lookup(name string) ([]byte, bool) {
    data, ok := idx[BaseName(name)]
    return data, ok
}

// MatchPDFs pairs every uploaded PDF against the XML index.  The result
// preserves the order of the PDF inputs.  A PDF whose base name is absent
// from the index yields an UnmatchedError; two PDFs sharing a base name
// yield a DuplicateBaseNameError.  Callers that also link pre-existing
// invoices should pass the taken set returned here into MatchInvoice so
// cross-source duplicates are caught as well.
func MatchPDFs(pdfs []File, idx Index) ([]Pair, error) {
    pairs := make([]Pair, 0, len(pdfs))
    seen := make(map[string]struct{}, len(pdfs))
    for _, f := range pdfs {
        base := BaseName(f.Name)
        if _, dup := seen[base]; dup {
            return nil, &DuplicateBaseNameError{BaseName: base}
        }
        seen[base] = struct{}{}
        xml, ok := idx[base]
        if !ok {
            return nil, &UnmatchedError{Filename: f.Name}
        }
        pairs = append(pairs, Pair{BaseName: base, PDF: f.Data, XML: xml})
    }
    return pairs, nil
}

// Taken returns the set of base names consumed by the given pairs, for
// duplicate checks against additional document sources.
func Taken(pairs []Pair) map[string]struct{} {
    taken := make(map[string]struct{}, len(pairs))
    for _, p := range pairs {
        taken[p.BaseName] = struct{}{}
    }
    return taken
}

// MatchInvoice resolves the XML for a pre-existing invoice by its stored
// filename.  The taken set carries base names already consumed by the
// batch; reusing one is a DuplicateBaseNameError.  The set is updated on
// success.
func MatchInvoice(storedFilename string, idx Index, taken map[string]struct{}) (Pair, error) {
    base := BaseName(storedFilename)
    if _, dup := taken[base]; dup {
        return Pair{}, &DuplicateBaseNameError{BaseName: base}
    }
    xml, ok := idx[base]
    if !ok {
        return Pair{}, &UnmatchedError{Filename: storedFilename}
    }
    taken[base] = struct{}{}
    return Pair{BaseName: base, XML: xml}, nil
}
