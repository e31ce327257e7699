package bytesize

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		// Plain numbers
		{"plain zero", "0", 0, false},
		{"plain bytes", "4096", 4096, false},

		// Bytes suffix
		{"bytes B", "512B", 512, false},
		{"bytes b lowercase", "512b", 512, false},

		// Binary units
		{"kibibytes Ki", "1Ki", 1024, false},
		{"kibibytes KiB", "1KiB", 1024, false},
		{"mebibytes Mi", "64Mi", 64 * 1024 * 1024, false},
		{"gibibytes GiB", "2GiB", 2 * 1024 * 1024 * 1024, false},
		{"tebibytes Ti", "1Ti", 1024 * 1024 * 1024 * 1024, false},

		// Decimal units
		{"kilobytes KB", "1KB", 1000, false},
		{"megabytes MB", "100MB", 100 * 1000 * 1000, false},
		{"gigabytes G", "1G", 1000 * 1000 * 1000, false},

		// Case and whitespace
		{"lowercase mi", "64mi", 64 * 1024 * 1024, false},
		{"uppercase MI", "64MI", 64 * 1024 * 1024, false},
		{"padded", "  1Ki  ", 1024, false},
		{"space before unit", "1 Ki", 1024, false},

		// Fractions
		{"float mebibytes", "1.5Mi", ByteSize(1.5 * 1024 * 1024), false},

		// Errors
		{"empty", "", 0, true},
		{"unit only", "Mi", 0, true},
		{"unknown unit", "1Xi", 0, true},
		{"negative", "-1Ki", 0, true},
		{"garbage", "lots", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestUnmarshalText(t *testing.T) {
	var b ByteSize
	if err := b.UnmarshalText([]byte("16Mi")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if b != 16*MiB {
		t.Errorf("UnmarshalText() = %d, want %d", b, 16*MiB)
	}

	if err := b.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("UnmarshalText() accepted garbage")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		in   ByteSize
		want string
	}{
		{512, "512B"},
		{2 * KiB, "2.00KiB"},
		{64 * MiB, "64.00MiB"},
		{3 * GiB, "3.00GiB"},
		{2 * TiB, "2.00TiB"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("(%d).String() = %q, want %q", uint64(tt.in), got, tt.want)
		}
	}
}
