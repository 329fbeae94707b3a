package deploy

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webalive/deployer/config"
)

type fakeResolver struct {
	lookupFunc func(ctx context.Context, host string) ([]string, error)
	lookups    int
	sawTimeout bool
}

func (r *fakeResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	r.lookups++
	if _, ok := ctx.Deadline(); ok {
		r.sawTimeout = true
	}
	if r.lookupFunc != nil {
		return r.lookupFunc(ctx, host)
	}
	return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
}

func newDNSTestValidator(resolver *fakeResolver) *DNSValidator {
	return &DNSValidator{
		config: &config.Config{
			ServerIP:       "203.0.113.10",
			WildcardDomain: "alive.example",
			DNSTimeout:     5 * time.Second,
		},
		resolver: resolver,
	}
}

func TestDNSValidator_WildcardCoverage(t *testing.T) {
	tests := []struct {
		name          string
		domain        string
		coveredNoDNS  bool
		resolvedAddrs []string
		wantValid     bool
	}{
		{
			name:         "wildcard apex",
			domain:       "alive.example",
			coveredNoDNS: true,
			wantValid:    true,
		},
		{
			name:         "direct subdomain",
			domain:       "notion.alive.example",
			coveredNoDNS: true,
			wantValid:    true,
		},
		{
			name:          "nested subdomain needs its own record",
			domain:        "deep.notion.alive.example",
			resolvedAddrs: []string{"203.0.113.10"},
			wantValid:     true,
		},
		{
			name:          "suffix without dot boundary is not covered",
			domain:        "evilalive.example",
			resolvedAddrs: []string{"198.51.100.7"},
			wantValid:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &fakeResolver{
				lookupFunc: func(ctx context.Context, host string) ([]string, error) {
					return tt.resolvedAddrs, nil
				},
			}
			v := newDNSTestValidator(resolver)

			result, err := v.Validate(context.Background(), tt.domain)

			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, result.Valid)
			if tt.coveredNoDNS {
				assert.Equal(t, 0, resolver.lookups, "wildcard coverage must not hit the resolver")
			} else {
				assert.Equal(t, 1, resolver.lookups)
			}
		})
	}
}

func TestDNSValidator_ResolvesToServer(t *testing.T) {
	resolver := &fakeResolver{
		lookupFunc: func(ctx context.Context, host string) ([]string, error) {
			return []string{"198.51.100.7", "203.0.113.10"}, nil
		},
	}
	v := newDNSTestValidator(resolver)

	result, err := v.Validate(context.Background(), "custom.example.net")

	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Contains(t, result.Message, "203.0.113.10")
}

func TestDNSValidator_ResolvesElsewhere(t *testing.T) {
	resolver := &fakeResolver{
		lookupFunc: func(ctx context.Context, host string) ([]string, error) {
			return []string{"198.51.100.7"}, nil
		},
	}
	v := newDNSTestValidator(resolver)

	result, err := v.Validate(context.Background(), "custom.example.net")

	// Wrong target is a user problem, not an infrastructure error.
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Message, "198.51.100.7")
	assert.Contains(t, result.Message, "203.0.113.10")
}

func TestDNSValidator_NXDomain(t *testing.T) {
	resolver := &fakeResolver{} // default: IsNotFound
	v := newDNSTestValidator(resolver)

	result, err := v.Validate(context.Background(), "unregistered.example.net")

	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Message, "does not resolve")
	assert.Contains(t, result.Message, "203.0.113.10", "message tells the user what record to create")
}

func TestDNSValidator_InfrastructureError(t *testing.T) {
	resolver := &fakeResolver{
		lookupFunc: func(ctx context.Context, host string) ([]string, error) {
			return nil, &net.DNSError{Err: "server misbehaving", Name: host, IsTemporary: true}
		},
	}
	v := newDNSTestValidator(resolver)

	_, err := v.Validate(context.Background(), "custom.example.net")

	require.Error(t, err)
	assert.ErrorContains(t, err, "custom.example.net")
}

func TestDNSValidator_LookupIsBounded(t *testing.T) {
	resolver := &fakeResolver{
		lookupFunc: func(ctx context.Context, host string) ([]string, error) {
			return []string{"203.0.113.10"}, nil
		},
	}
	v := newDNSTestValidator(resolver)

	_, err := v.Validate(context.Background(), "custom.example.net")

	require.NoError(t, err)
	assert.True(t, resolver.sawTimeout, "lookup context must carry the configured timeout")
}

func TestDNSValidator_ContextCancellation(t *testing.T) {
	resolver := &fakeResolver{
		lookupFunc: func(ctx context.Context, host string) ([]string, error) {
			return nil, ctx.Err()
		},
	}
	v := newDNSTestValidator(resolver)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := v.Validate(ctx, "custom.example.net")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDNSValidator_NoWildcardConfigured(t *testing.T) {
	resolver := &fakeResolver{
		lookupFunc: func(ctx context.Context, host string) ([]string, error) {
			return []string{"203.0.113.10"}, nil
		},
	}
	v := newDNSTestValidator(resolver)
	v.config = &config.Config{ServerIP: "203.0.113.10", DNSTimeout: time.Second}

	result, err := v.Validate(context.Background(), "anything.example.net")

	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 1, resolver.lookups, "without a wildcard every domain is looked up")
}

func TestNewDNSValidator_UsesSystemResolver(t *testing.T) {
	v := NewDNSValidator(&config.Config{})
	require.NotNil(t, v)
	assert.NotNil(t, v.resolver)
}

func TestDNSValidator_WrappedNotFound(t *testing.T) {
	resolver := &fakeResolver{
		lookupFunc: func(ctx context.Context, host string) ([]string, error) {
			return nil, errors.Join(&net.DNSError{Err: "no such host", Name: host, IsNotFound: true})
		},
	}
	v := newDNSTestValidator(resolver)

	result, err := v.Validate(context.Background(), "unregistered.example.net")

	require.NoError(t, err)
	assert.False(t, result.Valid)
}
