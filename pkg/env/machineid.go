package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// MachineID retrieves an ID identifying the machine, derived from the OS
// machine id so the raw id isn't published. Hostname is used if the
// machine id is not available.
func MachineID() string {
	id, err := machineid.ProtectedID("rawlog")
	if err == nil && len(id) >= 12 {
		return id[:12]
	}
	glog.V(2).Infof("machine id unavailable: %v", err)
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "unknown"
}
