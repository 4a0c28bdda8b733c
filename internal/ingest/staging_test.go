package ingest

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"id", "id"},
		{" Room ID ", "room_id"},
		{"\ufeffTemp", "temp"},
		{"Te\ufeffmp", "te\ufeffmp"},
		{"Out/In", "out/in"},
		{"Noted Date", "noted_date"},
	}

	for _, tt := range tests {
		if got := NormalizeHeader(tt.in); got != tt.want {
			t.Errorf("NormalizeHeader(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMapHeaders(t *testing.T) {
	tests := []struct {
		name    string
		header  []string
		want    []int
		missing []string
	}{
		{
			name:   "canonical header",
			header: ExpectedHeader,
			want:   []int{0, 1, 2, 3, 4},
		},
		{
			name:   "historical aliases in another order",
			header: []string{"Location", "Temperature", "Date", "Room ID", "ID"},
			want:   []int{4, 3, 2, 1, 0},
		},
		{
			name:   "first alias wins",
			header: []string{"id", "room_id", "room_id/id", "date", "noted_date", "temp", "in/out"},
			want:   []int{0, 1, 3, 5, 6},
		},
		{
			name:    "no date column",
			header:  []string{"id", "room_id/id", "temp", "out/in"},
			missing: []string{"noted_date_raw"},
		},
		{
			name:    "nothing maps",
			header:  []string{"id", "room", "when", "t", "inout"},
			missing: []string{"location_raw", "noted_date_raw", "room_id_raw", "temp_raw"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MapHeaders(tt.header)
			if tt.missing != nil {
				var mce *MissingColumnsError
				if !errors.As(err, &mce) {
					t.Fatalf("MapHeaders() error = %v, want *MissingColumnsError", err)
				}
				if !slices.Equal(mce.Columns, tt.missing) {
					t.Errorf("Columns = %v, want %v", mce.Columns, tt.missing)
				}
				return
			}
			if err != nil {
				t.Fatalf("MapHeaders() error = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("MapHeaders() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSanitizeCell(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  29 ", "29"},
		{"a\x00b", "ab"},
		{"\x00 In \x00", "In"},
		{"ok\xffok", "ok\uFFFDok"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := SanitizeCell(tt.in); got != tt.want {
			t.Errorf("SanitizeCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func drain(t *testing.T, src *StagingSource) [][]any {
	t.Helper()
	var rows [][]any
	for src.Next() {
		v, err := src.Values()
		require.NoError(t, err)
		rows = append(rows, v)
	}
	require.NoError(t, src.Err())
	return rows
}

func TestStagingSource_RowCounts(t *testing.T) {
	header := "id,room_id/id,noted_date,temp,out/in\n"
	row := "__export__.temp_log_1,Room Admin,08-12-2018 09:30,29,In\n"

	for _, n := range []int{0, 1, 25} {
		input := header + strings.Repeat(row, n)
		src, err := NewStagingSource("run-1", "f.csv", strings.NewReader(input))
		require.NoError(t, err)

		rows := drain(t, src)
		assert.Len(t, rows, n)
		assert.Equal(t, int64(n), src.Rows())
	}
}

func TestStagingSource_Values(t *testing.T) {
	input := "\xEF\xBB\xBFID,Room ID,Date,Temperature,Location\n" +
		"a1, r\x001 ,01-01-2020 00:00,\x0020\x00,Out\n" +
		"a2,r2\n"

	src, err := NewStagingSource("run-7", "sensors.csv", strings.NewReader(input))
	require.NoError(t, err)

	rows := drain(t, src)
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"run-7", "sensors.csv", "a1", "r1", "01-01-2020 00:00", "20", "Out"}, rows[0])
	assert.Equal(t, []any{"run-7", "sensors.csv", "a2", "r2", "", "", ""}, rows[1])
}

func TestNewStagingSource_Errors(t *testing.T) {
	_, err := NewStagingSource("r", "f.csv", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrHeaderMissing)

	_, err = NewStagingSource("r", "f.csv", strings.NewReader("id,room,temp\n1,2,3\n"))
	var mce *MissingColumnsError
	require.ErrorAs(t, err, &mce)
	assert.Equal(t, ReasonCSVFormat, Classify(err))
}
