package probe

import (
	"context"
	"net"
	"testing"
)

type fakeResolver struct {
	ips   []net.IP
	ipErr error
	cname string
	ns    []*net.NS
}

func (f *fakeResolver) LookupIP(ctx context.Context, network, host string) ([]net.IP, error) {
	return f.ips, f.ipErr
}

func (f *fakeResolver) LookupCNAME(ctx context.Context, host string) (string, error) {
	if f.cname == "" {
		return host + ".", nil
	}
	return f.cname, nil
}

func (f *fakeResolver) LookupNS(ctx context.Context, name string) ([]*net.NS, error) {
	if len(f.ns) == 0 {
		return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
	}
	return f.ns, nil
}

func TestCheckDNS_Classes(t *testing.T) {
	notFound := &net.DNSError{Err: "no such host", Name: "x", IsNotFound: true}
	cases := []struct {
		name   string
		domain string
		r      *fakeResolver
		want   string
	}{
		{"resolves", "example.com", &fakeResolver{ips: []net.IP{net.IPv4(127, 0, 0, 1)}, cname: "edge.example.net."}, "RESOLVES"},
		{"nxdomain", "nope.invalid", &fakeResolver{ipErr: notFound}, "NXDOMAIN"},
		{"ns_only", "example.org", &fakeResolver{ipErr: notFound, ns: []*net.NS{{Host: "ns1.example.org."}}}, "NO_A_RECORD"},
		{"temporary", "slow.example", &fakeResolver{ipErr: &net.DNSError{Err: "timeout", IsTemporary: true}}, "SERVFAIL_or_TIMEOUT"},
		{"invalid", "https://example.com", &fakeResolver{}, "INVALID_NAME"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := CheckDNS(context.Background(), c.r, c.domain)
			if got.Class != c.want {
				t.Fatalf("want %s, got %+v", c.want, got)
			}
		})
	}
}

func TestCheckDNS_CNAMEAndNameservers(t *testing.T) {
	r := &fakeResolver{
		ips:   []net.IP{net.IPv4(10, 0, 0, 1)},
		cname: "edge.example.net.",
		ns:    []*net.NS{{Host: "ns1.example.com."}, {Host: "ns2.example.com."}},
	}
	got := CheckDNS(context.Background(), r, "www.example.com")
	if got.CNAME != "edge.example.net" {
		t.Fatalf("want trimmed CNAME, got %q", got.CNAME)
	}
	if len(got.Nameservers) != 2 || got.Nameservers[0] != "ns1.example.com" {
		t.Fatalf("unexpected nameservers: %v", got.Nameservers)
	}
}

func TestHostOf(t *testing.T) {
	if got := HostOf("https://www.google.com/"); got != "www.google.com" {
		t.Fatalf("got %q", got)
	}
	if got := HostOf("not a url"); got != "not a url" {
		t.Fatalf("got %q", got)
	}
}
