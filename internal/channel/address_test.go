package channel

import "testing"

func TestParseScheme(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Scheme
		ok   bool
	}{
		{"global", SchemeGlobal, true},
		{"route", SchemeRoute, true},
		{"driver", SchemeDriver, true},
		{"", SchemeGlobal, false},
		{"Driver", SchemeGlobal, false},
	} {
		got, err := ParseScheme(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseScheme(%q) error = %v, want ok=%v", tt.in, err, tt.ok)
			continue
		}
		if tt.ok && got != tt.want {
			t.Errorf("ParseScheme(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAddress(t *testing.T) {
	base := "ws://feed.example.com"

	tests := []struct {
		name   string
		scheme Scheme
		scope  Scope
		want   string
	}{
		{
			name:   "global ignores scope",
			scheme: SchemeGlobal,
			scope:  Scope{Role: "driver", RouteID: "silver", DriverID: "silver-1"},
			want:   "ws://feed.example.com/ws/location/",
		},
		{
			name:   "route scopes role and route",
			scheme: SchemeRoute,
			scope:  Scope{Role: "user", RouteID: "silver"},
			want:   "ws://feed.example.com/ws/location/user/silver/",
		},
		{
			name:   "driver scheme for a driver",
			scheme: SchemeDriver,
			scope:  Scope{Role: "driver", RouteID: "silver", DriverID: "silver-1"},
			want:   "ws://feed.example.com/ws/location/driver/silver/silver-1/",
		},
		{
			name:   "driver scheme for a rider falls back to route address",
			scheme: SchemeDriver,
			scope:  Scope{Role: "user", RouteID: "silver"},
			want:   "ws://feed.example.com/ws/location/user/silver/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Address(base, tt.scheme, tt.scope)
			if got != tt.want {
				t.Errorf("Address() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddress_TrimsTrailingSlash(t *testing.T) {
	got := Address("ws://localhost:8080/", SchemeGlobal, Scope{})
	want := "ws://localhost:8080/ws/location/"
	if got != want {
		t.Errorf("Address() = %q, want %q", got, want)
	}
}
