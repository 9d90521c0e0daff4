// Package telemetry is opt-in, anonymous command telemetry: which
// subcommand ran, which repository-backend type and storage backend were
// in play, never flag values or repository/session identifiers. A client
// is either a real PostHog-backed sender or a NoopClient, chosen once at
// CLI startup from the resolved config, the same opt-in/opt-out shape
// teacher's own telemetry package uses for command tracking.
package telemetry

import (
	"net"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/posthog/posthog-go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// APIKey is overridden at build time for production sends.
	APIKey = "phc_development_key"
	// Endpoint is overridden at build time for production sends.
	Endpoint = "https://eu.i.posthog.com"
)

// optOutEnvVar disables telemetry regardless of config when set to any
// non-empty value.
const optOutEnvVar = "SESSIONCTL_TELEMETRY_OPTOUT"

// Client records command executions. TrackCommand must never block CLI
// exit waiting on network I/O.
type Client interface {
	TrackCommand(cmd *cobra.Command, backendType, storageDriver string)
	Close()
}

// NoopClient discards every event. It is the default when telemetry is
// disabled, opted out via environment, or the PostHog client failed to
// construct.
type NoopClient struct{}

func (NoopClient) TrackCommand(*cobra.Command, string, string) {}
func (NoopClient) Close()                                       {}

type silentLogger struct{}

func (silentLogger) Logf(string, ...any)   {}
func (silentLogger) Debugf(string, ...any) {}
func (silentLogger) Warnf(string, ...any)  {}
func (silentLogger) Errorf(string, ...any) {}

// PostHogClient sends command-execution events to PostHog.
type PostHogClient struct {
	mu         sync.RWMutex
	client     posthog.Client
	machineID  string
	cliVersion string
}

// NewClient builds a Client for the resolved enabled setting. enabled is a
// tri-state: nil means "not configured", which defaults to disabled.
//
//nolint:ireturn // factory returns either concrete implementation by design
func NewClient(cliVersion string, enabled *bool, optOutEnv string) Client {
	if optOutEnv != "" {
		return NoopClient{}
	}
	if enabled == nil || !*enabled {
		return NoopClient{}
	}

	id, err := machineid.ProtectedID("sessionctl")
	if err != nil {
		return NoopClient{}
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 100 * time.Millisecond,
		}).DialContext,
		TLSHandshakeTimeout:   100 * time.Millisecond,
		ResponseHeaderTimeout: 100 * time.Millisecond,
	}

	client, err := posthog.NewWithConfig(APIKey, posthog.Config{
		Endpoint:           Endpoint,
		ShutdownTimeout:    100 * time.Millisecond,
		BatchUploadTimeout: 200 * time.Millisecond,
		Transport:          transport,
		Logger:             silentLogger{},
		DisableGeoIP:       posthog.Ptr(true),
		DefaultEventProperties: posthog.NewProperties().
			Set("cli_version", cliVersion).
			Set("os", runtime.GOOS).
			Set("arch", runtime.GOARCH),
	})
	if err != nil {
		return NoopClient{}
	}

	return &PostHogClient{client: client, machineID: id, cliVersion: cliVersion}
}

// TrackCommand records a command's execution path, registered backend type,
// and storage driver. Flag names (never values) are included for shape,
// following the same privacy posture teacher's telemetry package applies.
func (p *PostHogClient) TrackCommand(cmd *cobra.Command, backendType, storageDriver string) {
	if cmd == nil || cmd.Hidden {
		return
	}

	p.mu.RLock()
	id, c := p.machineID, p.client
	p.mu.RUnlock()
	if c == nil {
		return
	}

	var flags []string
	cmd.Flags().Visit(func(f *pflag.Flag) {
		flags = append(flags, f.Name)
	})

	props := posthog.NewProperties().
		Set("command", cmd.CommandPath()).
		Set("repo_backend", backendType).
		Set("storage_driver", storageDriver)
	if len(flags) > 0 {
		props.Set("flags", strings.Join(flags, ","))
	}

	//nolint:errcheck // best-effort telemetry, failures must not affect the CLI
	_ = c.Enqueue(posthog.Capture{
		DistinctId: id,
		Event:      "cli_command_executed",
		Properties: props,
	})
}

// Close flushes any pending events. Call it on CLI exit.
func (p *PostHogClient) Close() {
	p.mu.RLock()
	c := p.client
	p.mu.RUnlock()
	if c != nil {
		_ = c.Close()
	}
}
