package env

import "testing"

func TestDetectVersion(t *testing.T) {
	cases := []struct {
		name    string
		data    []byte
		want    Environment
		wantErr bool
	}{
		{"150 only", []byte("junk sdk_version: 4.4.0 more junk"), X150, false},
		{"160 only", []byte("junk sdk_version: 7.3.2 more junk"), X160, false},
		{"neither", []byte("nothing here"), 0, true},
		{"both", []byte("sdk_version: 4.4.0 and sdk_version: 7.3.2"), 0, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := DetectVersion(c.data)
			if c.wantErr {
				if err == nil {
					t.Fatalf("expected error, got version %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Errorf("got %s, want %s", got, c.want)
			}
		})
	}
}
