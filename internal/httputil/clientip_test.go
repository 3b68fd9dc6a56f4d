package httputil

import (
	"net/http"
	"testing"
)

// TestClientIP covers the key the search and stream limiters bucket on,
// with and without a trusted load balancer in front.
func TestClientIP(t *testing.T) {
	const balancer = "172.16.4.2:40112"

	tests := []struct {
		name    string
		trusted bool
		remote  string
		headers map[string]string
		want    string
	}{
		{name: "direct ipv4", remote: "203.0.113.7:51000", want: "203.0.113.7"},
		{name: "direct ipv6", remote: "[2001:db8::42]:443", want: "2001:db8::42"},
		{name: "direct without port", remote: "203.0.113.7", want: "203.0.113.7"},
		{
			name:    "untrusted forwarded headers are ignored",
			remote:  balancer,
			headers: map[string]string{"X-Forwarded-For": "198.51.100.9", "X-Real-IP": "198.51.100.10"},
			want:    "172.16.4.2",
		},
		{
			name:    "trusted forwarded chain keeps the caller",
			trusted: true,
			remote:  balancer,
			headers: map[string]string{"X-Forwarded-For": "198.51.100.9, 172.16.4.1"},
			want:    "198.51.100.9",
		},
		{
			name:    "trusted forwarded wins over real ip",
			trusted: true,
			remote:  balancer,
			headers: map[string]string{"X-Forwarded-For": "198.51.100.9", "X-Real-IP": "198.51.100.10"},
			want:    "198.51.100.9",
		},
		{
			name:    "trusted real ip",
			trusted: true,
			remote:  balancer,
			headers: map[string]string{"X-Real-IP": "198.51.100.10"},
			want:    "198.51.100.10",
		},
		{
			name:    "trusted empty forwarded entry",
			trusted: true,
			remote:  balancer,
			headers: map[string]string{"X-Forwarded-For": " , 172.16.4.1"},
			want:    "172.16.4.2",
		},
		{name: "trusted without headers", trusted: true, remote: balancer, want: "172.16.4.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &http.Request{RemoteAddr: tt.remote, Header: http.Header{}}
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r, tt.trusted); got != tt.want {
				t.Errorf("ClientIP(trusted=%v) = %q, want %q", tt.trusted, got, tt.want)
			}
		})
	}
}

func TestClientIPStripsPorts(t *testing.T) {
	r := &http.Request{RemoteAddr: "10.0.0.1:1234", Header: http.Header{}}
	r.Header.Set("X-Forwarded-For", "1.2.3.4:5555, 10.0.0.2")
	if got := ClientIP(r, true); got != "1.2.3.4" {
		t.Errorf("got %q, want 1.2.3.4", got)
	}

	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-IP", " 5.6.7.8:80 ")
	if got := ClientIP(r, true); got != "5.6.7.8" {
		t.Errorf("got %q, want 5.6.7.8", got)
	}
}
