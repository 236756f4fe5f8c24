// Package container finds running containers by the DNS names they are
// reachable under on their networks.
package container

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NetworkInfo is a container's attachment to a single network.
type NetworkInfo struct {
	DNSNames []string `json:"DNSNames"`
}

// Attachment is a named NetworkInfo.
type Attachment struct {
	Name string
	NetworkInfo
}

// Networks holds a container's network attachments in the order the runtime listed them.
type Networks []Attachment

// UnmarshalJSON decodes the runtime's NetworkName -> NetworkInfo object,
// keeping key order.
func (n *Networks) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*n = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("networks: expected a JSON object, got %v", tok)
	}
	var out Networks
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("networks: expected a network name, got %v", tok)
		}
		var info NetworkInfo
		if err := dec.Decode(&info); err != nil {
			return fmt.Errorf("networks: %v: %w", name, err)
		}
		out = append(out, Attachment{Name: name, NetworkInfo: info})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*n = out
	return nil
}

// MarshalJSON encodes the attachments as a NetworkName -> NetworkInfo object in order.
func (n Networks) MarshalJSON() ([]byte, error) {
	if n == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range n {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(a.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(a.NetworkInfo)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// NetworkSettings is the subset of a container's network settings used here.
type NetworkSettings struct {
	Networks Networks `json:"Networks"`
}

// Info is one container from the runtime's inspect output.
type Info struct {
	ID              string          `json:"Id"`
	Name            string          `json:"Name,omitempty"`
	NetworkSettings NetworkSettings `json:"NetworkSettings"`
}

// NetworkMatch is the result of FindByDNSName: the matched network, all of the
// container's DNS names on it, and the container itself.
type NetworkMatch struct {
	NetworkName   string   `json:"NetworkName"`
	DNSNames      []string `json:"DNSNames"`
	ContainerInfo Info     `json:"ContainerInfo"`
}
