package phishing

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/qvkare/metaguard-snap/internal/validation"
)

// blocklistFile is the on-disk YAML shape of an ops-maintained blocklist.
type blocklistFile struct {
	Addresses []string `yaml:"addresses"`
}

// BlocklistSource checks addresses against a local YAML blocklist. It is the
// only source with no network dependency, so it keeps answering during
// upstream outages.
type BlocklistSource struct {
	addresses map[string]struct{}
}

// NewBlocklistSource loads the blocklist at path. Addresses are normalized
// at load time so lookups are a set probe.
func NewBlocklistSource(path string) (*BlocklistSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading blocklist: %w", err)
	}

	var file blocklistFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing blocklist: %w", err)
	}

	addrs := make(map[string]struct{}, len(file.Addresses))
	for _, a := range file.Addresses {
		addrs[validation.NormalizeAddress(a)] = struct{}{}
	}
	return &BlocklistSource{addresses: addrs}, nil
}

// Name implements Source.
func (s *BlocklistSource) Name() string { return "local-blocklist" }

// Check implements Source.
func (s *BlocklistSource) Check(_ context.Context, address string) (Result, error) {
	if _, ok := s.addresses[validation.NormalizeAddress(address)]; ok {
		return Result{IsPhishing: true, Confidence: 1.0, Reason: "Address is in local blocklist"}, nil
	}
	return Result{IsPhishing: false, Confidence: 0.9}, nil
}
