package update

import "testing"

func TestSelectAsset(t *testing.T) {
	assets := []Asset{
		{Name: "checksums.txt", Size: 512},
		{Name: "nooltools_1.5.0_linux_amd64.tar.gz", Size: 9 << 20},
		{Name: "nooltools_1.5.0_linux_arm64.tar.gz", Size: 8 << 20},
		{Name: "nooltools_1.5.0_Darwin_x86_64.zip", Size: 9 << 20},
		{Name: "nooltools_1.5.0_windows_x86.zip", Size: 7 << 20},
		{Name: "NoolTools.exe", Size: 10 << 20},
	}

	tests := []struct {
		name   string
		names  []string
		goos   string
		goarch string
		want   string
	}{
		{"linux amd64", nil, "linux", "amd64", "nooltools_1.5.0_linux_amd64.tar.gz"},
		{"linux arm64", nil, "linux", "arm64", "nooltools_1.5.0_linux_arm64.tar.gz"},
		{"darwin alias", nil, "darwin", "amd64", "nooltools_1.5.0_Darwin_x86_64.zip"},
		{"x86_64 is not 386", nil, "darwin", "386", ""},
		{"windows 386", nil, "windows", "386", "nooltools_1.5.0_windows_x86.zip"},
		{"explicit name wins", []string{"nooltools.exe"}, "linux", "amd64", "NoolTools.exe"},
		{"fallback explicit name", []string{"missing.exe", "nooltools.exe"}, "windows", "amd64", "NoolTools.exe"},
		{"unsupported platform", nil, "plan9", "amd64", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectAsset(assets, tt.names, tt.goos, tt.goarch)
			if tt.want == "" {
				if ok {
					t.Errorf("expected no match, got %q", got.Name)
				}
				return
			}
			if !ok || got.Name != tt.want {
				t.Errorf("got %q (ok=%v), want %q", got.Name, ok, tt.want)
			}
		})
	}
}

func TestSelectAsset_OSOnlyName(t *testing.T) {
	assets := []Asset{{Name: "nooltools-linux.tar.gz", Size: 1}}
	if got, ok := SelectAsset(assets, nil, "linux", "arm64"); !ok || got.Name != "nooltools-linux.tar.gz" {
		t.Errorf("got %q, %v", got.Name, ok)
	}

	withArch := []Asset{{Name: "nooltools-linux-amd64.tar.gz", Size: 1}}
	if _, ok := SelectAsset(withArch, nil, "linux", "arm64"); ok {
		t.Error("asset for another arch must not match")
	}
}

func TestSelectAsset_Extensions(t *testing.T) {
	tests := []struct {
		name  string
		asset string
		match bool
	}{
		{"tarball", "nooltools-linux-amd64.tar.gz", true},
		{"bare binary", "nooltools-linux-amd64", true},
		{"versioned bare binary", "nooltools_1.5.0_linux_amd64", true},
		{"version suffix", "nooltools-linux-amd64-v1.2", true},
		{"torrent", "nooltools-linux-amd64.torrent", false},
		{"signature", "nooltools-linux-amd64.tar.gz.sig", false},
		{"checksum", "nooltools-linux-amd64.sha256", false},
		{"sbom", "nooltools-linux-amd64.sbom", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := SelectAsset([]Asset{{Name: tt.asset, Size: 1}}, nil, "linux", "amd64")
			if ok != tt.match {
				t.Errorf("SelectAsset(%q) matched = %v, want %v", tt.asset, ok, tt.match)
			}
		})
	}
}

func TestHasAsset(t *testing.T) {
	assets := []Asset{{Name: "Checksums.txt"}}
	if !HasAsset(assets, "checksums.txt") {
		t.Error("HasAsset should be case-insensitive")
	}
	if HasAsset(assets, "SHA256SUMS") {
		t.Error("unexpected match")
	}
}
