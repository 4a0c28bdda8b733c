package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestValidateHeader(t *testing.T) {
	tests := []struct {
		name      string
		header    []string
		wantErr   bool
		missing   []string
		extra     []string
		orderOnly bool
	}{
		{
			name:   "exact header",
			header: []string{"id", "room_id/id", "noted_date", "temp", "out/in"},
		},
		{
			name:   "whitespace and BOM tolerated",
			header: []string{"\ufeffid", " room_id/id", "noted_date ", "temp", "out/in"},
		},
		{
			name:    "BOM inside a name is kept",
			header:  []string{"id", "room_id/id", "noted_date", "te\ufeffmp", "out/in"},
			wantErr: true,
			missing: []string{"temp"},
			extra:   []string{"te\ufeffmp"},
		},
		{
			name:      "permutation is order only",
			header:    []string{"room_id/id", "id", "noted_date", "temp", "out/in"},
			wantErr:   true,
			orderOnly: true,
		},
		{
			name:    "missing temp",
			header:  []string{"id", "room_id/id", "noted_date", "out/in"},
			wantErr: true,
			missing: []string{"temp"},
		},
		{
			name:    "case is significant",
			header:  []string{"ID", "room_id/id", "noted_date", "temp", "out/in"},
			wantErr: true,
			missing: []string{"id"},
			extra:   []string{"ID"},
		},
		{
			name:    "unmappable names",
			header:  []string{"id", "room", "date", "temp", "inout"},
			wantErr: true,
			missing: []string{"room_id/id", "noted_date", "out/in"},
			extra:   []string{"room", "date", "inout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHeader(tt.header)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("ValidateHeader() error = %v", err)
				}
				return
			}

			var mismatch *HeaderMismatchError
			if !errors.As(err, &mismatch) {
				t.Fatalf("ValidateHeader() error = %v, want *HeaderMismatchError", err)
			}
			if !slices.Equal(mismatch.Missing, tt.missing) {
				t.Errorf("Missing = %v, want %v", mismatch.Missing, tt.missing)
			}
			if !slices.Equal(mismatch.Extra, tt.extra) {
				t.Errorf("Extra = %v, want %v", mismatch.Extra, tt.extra)
			}
			if mismatch.OrderOnly != tt.orderOnly {
				t.Errorf("OrderOnly = %v, want %v", mismatch.OrderOnly, tt.orderOnly)
			}
			if Classify(err) != ReasonCSVFormat {
				t.Errorf("Classify() = %q, want %q", Classify(err), ReasonCSVFormat)
			}
		})
	}
}

func TestValidateHeader_Empty(t *testing.T) {
	for _, header := range [][]string{nil, {}} {
		if err := ValidateHeader(header); !errors.Is(err, ErrHeaderMissing) {
			t.Errorf("ValidateHeader(%v) error = %v, want ErrHeaderMissing", header, err)
		}
	}
}

func TestReadHeader(t *testing.T) {
	dir := t.TempDir()

	withBOM := filepath.Join(dir, "bom.csv")
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("id,room_id/id,noted_date,temp,out/in\n1,r,d,20,In\n")...)
	if err := os.WriteFile(withBOM, content, 0o644); err != nil {
		t.Fatal(err)
	}
	header, err := ReadHeader(withBOM)
	if err != nil {
		t.Fatalf("ReadHeader() error = %v", err)
	}
	if !slices.Equal(header, ExpectedHeader) {
		t.Errorf("ReadHeader() = %q, want %q", header, ExpectedHeader)
	}

	empty := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadHeader(empty); !errors.Is(err, ErrHeaderMissing) {
		t.Errorf("ReadHeader(empty) error = %v, want ErrHeaderMissing", err)
	}

	_, err = ReadHeader(filepath.Join(dir, "absent.csv"))
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Errorf("ReadHeader(absent) error = %v, want *IOError", err)
	}
}
