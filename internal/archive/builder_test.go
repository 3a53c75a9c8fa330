package archive

import (
    "archive/zip"
    "bytes"
    "io"
    "testing"

    "github.com/iliyamo/invoice-signing/internal/model"
)

func readAll(t *testing.T, data []byte) map[string][]byte {
    t.Helper()
    zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
    if err != nil {
        t.Fatalf("open archive: %v", err)
    }
    out := make(map[string][]byte, len(zr.File))
    for _, f := range zr.File {
        rc, err := f.Open()
        if err != nil {
            t.Fatalf("open %s: %v", f.Name, err)
        }
        b, err := io.ReadAll(rc)
        rc.Close()
        if err != nil {
            t.Fatalf("read %s: %v", f.Name, err)
        }
        out[f.Name] = b
    }
    return out
}

func TestBuildMixedStates(t *testing.T) {
    docs := []model.Document{
        {Filename: "inv1", PDFFile: []byte("pdf-1"), XMLFile: []byte("<one/>"),
            XMLSigned: []byte("<signed-one/>"), Status: model.DocumentSigned},
        {Filename: "inv2", PDFFile: []byte("pdf-2"), XMLFile: []byte("<two/>"),
            XMLSigned: []byte("<signed-two/>"), Status: model.DocumentSigned},
        {Filename: "inv3", PDFFile: []byte("pdf-3"), XMLFile: []byte("<three/>"),
            Status: model.DocumentCreated},
    }
    data, err := Build(docs)
    if err != nil {
        t.Fatalf("Build: %v", err)
    }
    entries := readAll(t, data)
    if len(entries) != 6 {
        t.Fatalf("got %d entries, want 6", len(entries))
    }
    if string(entries["inv1.xml"]) != "<signed-one/>" || string(entries["inv2.xml"]) != "<signed-two/>" {
        t.Error("signed documents must contribute their signed xml")
    }
    if string(entries["inv3.xml"]) != "<three/>" {
        t.Error("unsigned document must contribute its original xml")
    }
    for i, want := range []string{"pdf-1", "pdf-2", "pdf-3"} {
        name := "inv" + string(rune('1'+i)) + ".pdf"
        if string(entries[name]) != want {
            t.Errorf("%s = %q, want %q", name, entries[name], want)
        }
    }
}

func TestBuildAllUnsigned(t *testing.T) {
    docs := []model.Document{
        {Filename: "only", PDFFile: []byte("pdf"), XMLFile: []byte("<o/>"), Status: model.DocumentCreated},
    }
    data, err := Build(docs)
    if err != nil {
        t.Fatalf("Build: %v", err)
    }
    entries := readAll(t, data)
    if string(entries["only.xml"]) != "<o/>" || string(entries["only.pdf"]) != "pdf" {
        t.Errorf("unexpected entries: %v", entries)
    }
}

func TestBuildEmpty(t *testing.T) {
    data, err := Build(nil)
    if err != nil {
        t.Fatalf("Build: %v", err)
    }
    if entries := readAll(t, data); len(entries) != 0 {
        t.Errorf("empty transaction should produce an empty archive, got %d entries", len(entries))
    }
}
