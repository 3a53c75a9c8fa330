// Package archive assembles a zip of all documents in a transaction for
// download by the owning user.  The archive reflects the current signing
// state: signed documents contribute their signed XML, unsigned ones the
// original, and the PDF is always the original bytes.
package archive

import (
    "archive/zip"
    "bytes"
    "fmt"

    "github.com/iliyamo/invoice-signing/internal/model"
)

// Build returns zip bytes containing <basename>.pdf and <basename>.xml
// per document.  A transaction with zero signed documents yields an
// archive of originals; a mid-batch mix of signed and unsigned documents
// is valid and expected.
func Build(docs []model.Document) ([]byte, error) {
    var buf bytes.Buffer
    zw := zip.NewWriter(&buf)
    for _, d := range docs {
        if err := addEntry(zw, d.Filename+".pdf", d.PDFFile); err != nil {
            return nil, err
        }
        xml := d.XMLFile
        if d.Status == model.DocumentSigned && d.XMLSigned != nil {
            xml = d.XMLSigned
        }
        if err := addEntry(zw, d.Filename+".xml", xml); err != nil {
            return nil, err
        }
    }
    if err := zw.Close(); err != nil {
        return nil, fmt.Errorf("close archive: %w", err)
    }
    return buf.Bytes(), nil
}

func addEntry(zw *zip.Writer, name string, data []byte) error {
    w, err := zw.Create(name)
    if err != nil {
        return fmt.Errorf("create entry %s: %w", name, err)
    }
    if _, err := w.Write(data); err != nil {
        return fmt.Errorf("write entry %s: %w", name, err)
    }
    return nil
}
