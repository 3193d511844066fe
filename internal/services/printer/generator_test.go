package printer

import (
	"bytes"
	"testing"
)

func TestGenerateLabelsPDF(t *testing.T) {
	gen := NewGenerator("DUKA")

	labels := []Label{
		{TagID: "DK-0000000001", Caption: "Maize Flour"},
		{TagID: "DK-0000000002"},
	}

	data, err := gen.GenerateLabelsPDF(labels, DefaultSheetConfig())
	if err != nil {
		t.Fatalf("Failed to generate PDF: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("PDF output should not be empty")
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("Output should start with a PDF header")
	}
}

func TestGenerateLabelsPDFMultiplePages(t *testing.T) {
	gen := NewGenerator("")

	// More labels than fit one sheet forces a second page.
	cfg := SheetConfig{Cols: 2, Rows: 2, MarginTop: 10, MarginLeft: 10, GapX: 2, GapY: 2}
	labels := make([]Label, 5)
	for i := range labels {
		labels[i] = Label{TagID: "DK-00000000" + string(rune('0'+i))}
	}

	data, err := gen.GenerateLabelsPDF(labels, cfg)
	if err != nil {
		t.Fatalf("Failed to generate PDF: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("PDF output should not be empty")
	}
}

func TestGenerateLabelsPDFInvalidConfigFallsBack(t *testing.T) {
	gen := NewGenerator("DUKA")

	data, err := gen.GenerateLabelsPDF([]Label{{TagID: "DK-1"}}, SheetConfig{})
	if err != nil {
		t.Fatalf("Failed to generate PDF: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("PDF output should not be empty")
	}
}
