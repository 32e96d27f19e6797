// Package config loads and validates the cluster configuration format of
// the replicated store's external interface: the replica list and the
// read/write quorum sizes, plus the protocol discriminator that selects
// between the ABD and Blocking coordinators.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/relab/quorumkv/internal/errs"
)

// Protocol selects the coordination protocol a client/server pair uses.
type Protocol int

const (
	// ProtocolABD selects the wait-free quorum protocol.
	ProtocolABD Protocol = iota
	// ProtocolBlocking selects the lock/lease based protocol.
	ProtocolBlocking
)

func (p Protocol) String() string {
	switch p {
	case ProtocolABD:
		return "abd"
	case ProtocolBlocking:
		return "blocking"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the protocol as its wire string.
func (p Protocol) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes "abd" or "blocking" into a Protocol.
func (p *Protocol) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "abd":
		*p = ProtocolABD
	case "blocking":
		*p = ProtocolBlocking
	default:
		return fmt.Errorf("unrecognized protocol %q: want %q or %q", s, "abd", "blocking")
	}
	return nil
}

// ServerAddr is one replica descriptor.
type ServerAddr struct {
	ID   int32  `json:"id"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns the host:port dial string for this replica.
func (s ServerAddr) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Cluster is the validated, in-memory form of the configuration record:
// the replica list, the protocol discriminator, and the read/write quorum
// sizes. Treated as immutable after Load returns.
type Cluster struct {
	Servers      []ServerAddr `json:"servers"`
	Protocol     Protocol     `json:"protocol"`
	ReadQuorum   int          `json:"read_quorum"`
	WriteQuorum  int          `json:"write_quorum"`
	NumReplicas  int          `json:"num_replicas,omitempty"`
}

// N returns the number of replicas in the cluster.
func (c *Cluster) N() int { return len(c.Servers) }

// Load decodes a JSON configuration record from r and validates it. Hard
// failures (empty server list, non-positive quorum, duplicate ids,
// quorum exceeding the replica count) are returned as errs.ConfigError.
// R+W<=N and a mismatched num_replicas are warnings only, logged via
// logger (slog.Default() if nil) and not treated as failures.
func Load(r io.Reader, logger *slog.Logger) (*Cluster, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var c Cluster
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return nil, errs.ConfigError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	if err := c.validate(logger); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Cluster) validate(logger *slog.Logger) error {
	if len(c.Servers) == 0 {
		return errs.ConfigError{Reason: "servers list must not be empty"}
	}

	seen := make(map[int32]struct{}, len(c.Servers))
	for _, s := range c.Servers {
		if _, dup := seen[s.ID]; dup {
			return errs.ConfigError{Reason: fmt.Sprintf("duplicate server id %d", s.ID)}
		}
		seen[s.ID] = struct{}{}
	}

	n := len(c.Servers)
	if c.ReadQuorum <= 0 || c.ReadQuorum > n {
		return errs.ConfigError{Reason: fmt.Sprintf("read_quorum %d must be positive and <= %d", c.ReadQuorum, n)}
	}
	if c.WriteQuorum <= 0 || c.WriteQuorum > n {
		return errs.ConfigError{Reason: fmt.Sprintf("write_quorum %d must be positive and <= %d", c.WriteQuorum, n)}
	}

	if c.NumReplicas != 0 && c.NumReplicas != n {
		logger.Warn("num_replicas does not match server count", "num_replicas", c.NumReplicas, "servers", n)
	}
	if c.ReadQuorum+c.WriteQuorum <= n {
		logger.Warn("read_quorum+write_quorum does not exceed replica count; linearizability is not guaranteed",
			"read_quorum", c.ReadQuorum, "write_quorum", c.WriteQuorum, "n", n)
	}
	if c.WriteQuorum*2 <= n {
		logger.Warn("write_quorum does not exceed half the replica count; linearizability is not guaranteed",
			"write_quorum", c.WriteQuorum, "n", n)
	}
	return nil
}
