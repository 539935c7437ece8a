package root

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/docker/agentos-client/pkg/agentos"
	"github.com/docker/agentos-client/pkg/userconfig"
)

// resolveProfile returns the profile selected by --profile, with --base-url
// applied on top.
func (f *rootFlags) resolveProfile() (*userconfig.Profile, error) {
	cfg, err := userconfig.Load()
	if err != nil {
		return nil, fmt.Errorf("loading user config: %w", err)
	}

	profile, err := cfg.Resolve(f.profile)
	if err != nil {
		return nil, err
	}
	if f.baseURL != "" {
		profile.BaseURL = f.baseURL
	}
	return profile, nil
}

// newClient connects to the server of the selected profile.
func (f *rootFlags) newClient() (*agentos.Client, *userconfig.Profile, error) {
	profile, err := f.resolveProfile()
	if err != nil {
		return nil, nil, err
	}

	client, err := agentos.NewClient(profile.Connection(), agentos.WithTracer(otel.Tracer(AppName)))
	if err != nil {
		return nil, nil, err
	}

	slog.Debug("Using AgentOS server", "base_url", profile.Connection().URL, "profile", profileLabel(f.profile))
	return client, profile, nil
}

func profileLabel(name string) string {
	if name == "" {
		return "(current)"
	}
	return name
}
