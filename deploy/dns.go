package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/webalive/deployer/config"
)

// hostResolver is the slice of net.Resolver the validator needs.
type hostResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// DNSResult reports whether a domain currently routes to this server.
// Valid=false with a message means "not pointed here yet", which the
// caller can show to the user; it is not an infrastructure failure.
type DNSResult struct {
	Valid   bool
	Message string
}

// DNSValidator confirms a hostname resolves to the platform before any
// resource is committed to it.
type DNSValidator struct {
	config   *config.Config
	resolver hostResolver
}

func NewDNSValidator(config *config.Config) *DNSValidator {
	return &DNSValidator{
		config:   config,
		resolver: net.DefaultResolver,
	}
}

// Validate checks that domainName points at ServerIP. Domains under the
// platform's wildcard are edge-routed and accepted without a lookup. A
// domain that does not resolve, or resolves elsewhere, yields
// Valid=false with a nil error; only resolver infrastructure failures
// (timeouts, servfail) return an error.
func (v *DNSValidator) Validate(ctx context.Context, domainName string) (DNSResult, error) {
	if v.coveredByWildcard(domainName) {
		slog.Debug("Domain covered by wildcard", "domain", domainName, "wildcard", v.config.WildcardDomain)
		return DNSResult{
			Valid:   true,
			Message: fmt.Sprintf("%s is covered by wildcard %s", domainName, v.config.WildcardDomain),
		}, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, v.config.DNSTimeout)
	defer cancel()

	addrs, err := v.resolver.LookupHost(lookupCtx, domainName)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return DNSResult{
				Valid:   false,
				Message: fmt.Sprintf("%s does not resolve; create an A record pointing to %s", domainName, v.config.ServerIP),
			}, nil
		}
		return DNSResult{}, fmt.Errorf("resolving %s: %w", domainName, err)
	}

	for _, addr := range addrs {
		if addr == v.config.ServerIP {
			return DNSResult{
				Valid:   true,
				Message: fmt.Sprintf("%s resolves to %s", domainName, addr),
			}, nil
		}
	}

	return DNSResult{
		Valid: false,
		Message: fmt.Sprintf("%s resolves to %s, expected %s",
			domainName, strings.Join(addrs, ", "), v.config.ServerIP),
	}, nil
}

// coveredByWildcard reports whether domainName is the wildcard apex or a
// direct subdomain of it. Wildcard DNS records only cover one label, so
// deeper subdomains still need their own record.
func (v *DNSValidator) coveredByWildcard(domainName string) bool {
	wildcard := v.config.WildcardDomain
	if wildcard == "" {
		return false
	}
	if domainName == wildcard {
		return true
	}
	rest, found := strings.CutSuffix(domainName, "."+wildcard)
	return found && rest != "" && !strings.Contains(rest, ".")
}
