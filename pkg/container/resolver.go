package container

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jacobweinstock/wpci/pkg/errs"
)

// Inspector is the read-only part of a container runtime.
type Inspector interface {
	// ListRunning returns the IDs of all running containers.
	ListRunning(ctx context.Context) ([]string, error)
	// Inspect returns a JSON array with one inspect document per ID.
	// It is called even when ids is empty.
	Inspect(ctx context.Context, ids ...string) ([]byte, error)
}

// Resolver finds containers by DNS name. It holds no state between calls.
type Resolver struct {
	Runtime Inspector
}

// FindByDNSName returns the first network attachment, in runtime order, with a
// DNS name containing match. Errors are *errs.TransportError when the runtime
// could not be queried, *errs.ParseError for malformed inspect output and
// *errs.NotFoundError when nothing matched.
func (r *Resolver) FindByDNSName(ctx context.Context, match string) (*NetworkMatch, error) {
	ids, err := r.Runtime.ListRunning(ctx)
	if err != nil {
		return nil, &errs.TransportError{Op: "list running containers", Err: err}
	}
	raw, err := r.Runtime.Inspect(ctx, ids...)
	if err != nil {
		return nil, &errs.TransportError{Op: "inspect containers", Err: err}
	}
	infos, err := ParseInspect(raw)
	if err != nil {
		return nil, err
	}
	if m, ok := FindByDNSName(infos, match); ok {
		return m, nil
	}
	return nil, &errs.NotFoundError{Match: match}
}

// ParseInspect decodes a batch inspect response.
func ParseInspect(raw []byte) ([]Info, error) {
	var infos []Info
	if err := json.Unmarshal(raw, &infos); err != nil {
		return nil, &errs.ParseError{Data: string(raw), Err: err}
	}
	return infos, nil
}

// FindByDNSName scans containers, then their networks, then DNS names, and
// returns the first attachment with a name containing match.
func FindByDNSName(infos []Info, match string) (*NetworkMatch, bool) {
	for _, info := range infos {
		for _, network := range info.NetworkSettings.Networks {
			for _, name := range network.DNSNames {
				if strings.Contains(name, match) {
					return &NetworkMatch{
						NetworkName:   network.Name,
						DNSNames:      network.DNSNames,
						ContainerInfo: info,
					}, true
				}
			}
		}
	}
	return nil, false
}

// ParseIDs splits newline-delimited container IDs, dropping blank lines.
func ParseIDs(out string) []string {
	var ids []string
	for _, line := range strings.Split(out, "\n") {
		if id := strings.TrimSpace(line); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
