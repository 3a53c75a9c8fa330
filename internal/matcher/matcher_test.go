package matcher

import (
    "errors"
    "testing"
)

func TestBaseName(t *testing.T) {
    cases := []struct {
        in   string
        want string
    }{
        {"invoice1.pdf", "invoice1"},
        {"Invoice1.XML", "invoice1"},
        {"  spaced.pdf  ", "spaced"},
        {"no-extension", "no-extension"},
        {"dotted.name.pdf", "dotted.name"},
    }
    for _, c := range cases {
        if got := BaseName(c.in); got != c.want {
            t.Errorf("BaseName(%q) = %q, want %q", c.in, got, c.want)
        }
    }
}

func TestMatchPDFsComplete(t *testing.T) {
    idx, err := NewIndex([]File{
        {Name: "invoice1.xml", Data: []byte("<x1/>")},
        {Name: "Invoice2.XML", Data: []byte("<x2/>")},
        {Name: "spare.xml", Data: []byte("<spare/>")},
    })
    if err != nil {
        t.Fatalf("NewIndex: %v", err)
    }
    pdfs := []File{
        {Name: "invoice1.pdf", Data: []byte("%PDF-1")},
        {Name: "invoice2.pdf", Data: []byte("%PDF-2")},
    }
    pairs, err := MatchPDFs(pdfs, idx)
    if err != nil {
        t.Fatalf("MatchPDFs: %v", err)
    }
    if len(pairs) != 2 {
        t.Fatalf("got %d pairs, want 2", len(pairs))
    }
    if pairs[0].BaseName != "invoice1" || string(pairs[0].XML) != "<x1/>" {
        t.Errorf("pair 0 = %q/%q", pairs[0].BaseName, pairs[0].XML)
    }
    if pairs[1].BaseName != "invoice2" || string(pairs[1].XML) != "<x2/>" {
        t.Errorf("pair 1 = %q/%q", pairs[1].BaseName, pairs[1].XML)
    }
}

func TestMatchPDFsUnmatched(t *testing.T) {
    idx, err := NewIndex([]File{{Name: "other.xml", Data: []byte("<o/>")}})
    if err != nil {
        t.Fatalf("NewIndex: %v", err)
    }
    _, err = MatchPDFs([]File{{Name: "orphan.pdf"}}, idx)
    var unmatched *UnmatchedError
    if !errors.As(err, &unmatched) {
        t.Fatalf("got %v, want UnmatchedError", err)
    }
    if unmatched.Filename != "orphan.pdf" {
        t.Errorf("offending filename = %q, want orphan.pdf", unmatched.Filename)
    }
}

func TestNewIndexDuplicateXML(t *testing.T) {
    _, err := NewIndex([]File{
        {Name: "invoice1.xml"},
        {Name: "INVOICE1.xml"},
    })
    var dup *DuplicateBaseNameError
    if !errors.As(err, &dup) {
        t.Fatalf("got %v, want DuplicateBaseNameError", err)
    }
    if dup.BaseName != "invoice1" {
        t.Errorf("duplicate base = %q, want invoice1", dup.BaseName)
    }
}

func TestMatchPDFsDuplicatePDF(t *testing.T) {
    idx, err := NewIndex([]File{{Name: "invoice1.xml"}})
    if err != nil {
        t.Fatalf("NewIndex: %v", err)
    }
    _, err = MatchPDFs([]File{
        {Name: "invoice1.pdf"},
        {Name: "Invoice1.PDF"},
    }, idx)
    var dup *DuplicateBaseNameError
    if !errors.As(err, &dup) {
        t.Fatalf("got %v, want DuplicateBaseNameError", err)
    }
}

func TestMatchInvoice(t *testing.T) {
    idx, err := NewIndex([]File{
        {Name: "inv-9.xml", Data: []byte("<nine/>")},
    })
    if err != nil {
        t.Fatalf("NewIndex: %v", err)
    }
    taken := map[string]struct{}{}
    pair, err := MatchInvoice("inv-9.pdf", idx, taken)
    if err != nil {
        t.Fatalf("MatchInvoice: %v", err)
    }
    if pair.BaseName != "inv-9" || string(pair.XML) != "<nine/>" {
        t.Errorf("pair = %q/%q", pair.BaseName, pair.XML)
    }
    // Linking the same stem twice must be rejected.
    if _, err := MatchInvoice("inv-9.pdf", idx, taken); err == nil {
        t.Fatal("expected duplicate error on second link")
    }
    // Unknown stem must be rejected.
    var unmatched *UnmatchedError
    if _, err := MatchInvoice("missing.pdf", idx, taken); !errors.As(err, &unmatched) {
        t.Fatalf("got %v, want UnmatchedError", err)
    }
}
