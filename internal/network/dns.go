package network

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/olekukonko/tablewriter"
)

type (
	// Resolver is satisfied by *net.Resolver.
	Resolver interface {
		LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
	}

	DNSResult struct {
		Host      string
		Addresses []string
		Err       error
	}
)

// CheckDNS resolves the IPv4 addresses of every distinct endpoint host.
// IP literals resolve to themselves.
func CheckDNS(ctx context.Context, resolver Resolver, endpoints []Endpoint) []DNSResult {
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	seen := make(map[string]struct{}, len(endpoints))
	results := make([]DNSResult, 0, len(endpoints))
	for _, endpoint := range endpoints {
		host := endpoint.Host()
		if host == "" {
			results = append(results, DNSResult{Host: endpoint.URL, Err: fmt.Errorf("no host in URL '%s'", endpoint.URL)})
			continue
		}
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}

		ips, err := resolver.LookupIP(ctx, "ip4", host)
		if err != nil {
			results = append(results, DNSResult{Host: host, Err: err})
			continue
		}

		addresses := make([]string, 0, len(ips))
		for _, ip := range ips {
			addresses = append(addresses, ip.String())
		}
		results = append(results, DNSResult{Host: host, Addresses: addresses})
	}

	return results
}

func RenderDNS(w io.Writer, results []DNSResult) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Host", "Status", "Addresses / Error"})

	for _, result := range results {
		row := []string{result.Host, "ok", strings.Join(result.Addresses, ", ")}
		if result.Err != nil {
			row[1] = "failed"
			row[2] = result.Err.Error()
		}
		table.Append(row)
	}

	table.Render()
	return nil
}
