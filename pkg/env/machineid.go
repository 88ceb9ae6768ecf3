package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

const nodeIDLen = 12

// MachineID retrieves a short ID identifying the machine, derived from
// the OS machine ID. It falls back to the hostname.
func MachineID() string {
	id, err := machineid.ProtectedID("pktlink")
	if err == nil {
		if len(id) > nodeIDLen {
			id = id[:nodeIDLen]
		}
		return id
	}
	glog.Warningf("machine id unavailable: %v", err)
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "pktlink"
}
